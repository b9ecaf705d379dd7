package hubclient

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/BioHazard786/meshroom/internal/signaling"
)

var (
	ErrClosed   = errors.New("hub connection closed")
	ErrRoomFull = errors.New("room is full")
)

// Signal is an offer, answer or ICE candidate relayed by the hub.
type Signal struct {
	Kind    string
	From    signaling.ParticipantID
	Payload json.RawMessage
}

// Handler routes incoming hub frames to typed channels.
type Handler struct {
	client *Client
	log    *slog.Logger

	Welcome      chan signaling.ParticipantID
	Members      chan []signaling.ParticipantID
	OfferRequest chan signaling.ParticipantID
	Signal       chan Signal
	Chat         chan signaling.ChatEntry
	History      chan []signaling.ChatEntry
	UserLeft     chan signaling.ParticipantID
	RoomFull     chan struct{}
	Error        chan string
}

// NewHandler creates a new frame handler.
func NewHandler(client *Client, log *slog.Logger) *Handler {
	return &Handler{
		client:       client,
		log:          log,
		Welcome:      make(chan signaling.ParticipantID, 1),
		Members:      make(chan []signaling.ParticipantID, 8),
		OfferRequest: make(chan signaling.ParticipantID, 8),
		Signal:       make(chan Signal, 64),
		Chat:         make(chan signaling.ChatEntry, 32),
		History:      make(chan []signaling.ChatEntry, 1),
		UserLeft:     make(chan signaling.ParticipantID, 8),
		RoomFull:     make(chan struct{}, 1),
		Error:        make(chan string, 4),
	}
}

// Start routes frames until the connection ends or the client is closed.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		if err := h.route(msg); err != nil {
			h.log.Warn("Dropping malformed frame", "type", msg.Type, "error", err)
		}
	}
}

func (h *Handler) route(msg *signaling.Message) error {
	switch msg.Type {
	case signaling.TypeWelcome:
		var p signaling.WelcomePayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		emit(h, h.Welcome, p.ID)

	case signaling.TypeUsersInRoom:
		var p signaling.MembersPayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		emit(h, h.Members, p.Members)

	case signaling.TypeOfferRequest:
		var p signaling.OfferRequestPayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		emit(h, h.OfferRequest, p.From)

	case signaling.TypeOffer, signaling.TypeAnswer, signaling.TypeICECandidate:
		var p signaling.SignalPayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		emit(h, h.Signal, Signal{Kind: msg.Type, From: p.From, Payload: p.Payload})

	case signaling.TypeChatMessage:
		var entry signaling.ChatEntry
		if err := decode(msg.Payload, &entry); err != nil {
			return err
		}
		emit(h, h.Chat, entry)

	case signaling.TypeChatHistory:
		var entries []signaling.ChatEntry
		if err := decode(msg.Payload, &entries); err != nil {
			return err
		}
		emit(h, h.History, entries)

	case signaling.TypeUserLeft:
		var p signaling.UserLeftPayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		emit(h, h.UserLeft, p.Participant)

	case signaling.TypeRoomFull:
		emit(h, h.RoomFull, struct{}{})

	case signaling.TypeError:
		var p signaling.ErrorPayload
		if err := decode(msg.Payload, &p); err != nil {
			emit(h, h.Error, "Unknown error from server")
			return nil
		}
		emit(h, h.Error, p.Error)

	default:
		h.log.Debug("Ignoring frame", "type", msg.Type)
	}
	return nil
}

// emit blocks until the frame is consumed or the client is closed, so
// per-connection order is preserved on every channel.
func emit[T any](h *Handler, ch chan T, v T) {
	select {
	case ch <- v:
	case <-h.client.Done():
	}
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(payload, v)
}
