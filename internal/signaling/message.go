package signaling

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is an inbound websocket frame. The payload is decoded lazily
// once the type is known.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is an outbound websocket frame. Payload is marshalled by the
// connection's write pump.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Message type constants.
const (
	// Client to hub.
	TypeJoinRoom  = "join_room"
	TypeLeaveRoom = "leave_room"

	// Hub to client.
	TypeWelcome      = "me"
	TypeRoomFull     = "room_full"
	TypeUsersInRoom  = "users_in_room"
	TypeOfferRequest = "offer_request"
	TypeChatHistory  = "chat_history"
	TypeUserLeft     = "user_left"
	TypeError        = "error"

	// Both directions.
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice_candidate"
	TypeChatMessage  = "chat_message"
)

// ParticipantID identifies one connection for its whole lifetime.
type ParticipantID string

// NewParticipantID returns a fresh identifier. Identifiers are never reused.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

// SystemSender is the sender attributed to join and leave notices.
const SystemSender = "system"

// ChatEntry is one immutable line of a room's history.
type ChatEntry struct {
	Sender    string    `json:"from"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"time"`
}

// JoinRequest is the payload of join_room.
type JoinRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

// SignalRequest is the payload of an inbound offer, answer or ice_candidate.
type SignalRequest struct {
	To      ParticipantID   `json:"to" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// SignalPayload is the payload of a forwarded offer, answer or ice_candidate.
type SignalPayload struct {
	From    ParticipantID   `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// ChatRequest is the payload of an inbound chat_message.
type ChatRequest struct {
	RoomID  string `json:"roomId,omitempty"`
	Content string `json:"content" validate:"required"`
}

type WelcomePayload struct {
	ID ParticipantID `json:"id"`
}

type MembersPayload struct {
	Members []ParticipantID `json:"members"`
}

type OfferRequestPayload struct {
	From ParticipantID `json:"from"`
}

type UserLeftPayload struct {
	Participant ParticipantID `json:"participant"`
}

// ErrorPayload describes a rejected frame.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Delivery pairs a target connection with the frame it should receive.
type Delivery struct {
	To  ParticipantID
	Msg Envelope
}

// Outcome is what every controller returns: the frames to deliver, in
// order, and the classification of the event.
type Outcome struct {
	Deliveries []Delivery
	Err        error
}

func (o *Outcome) add(d ...Delivery) {
	o.Deliveries = append(o.Deliveries, d...)
}

func unicast(to ParticipantID, msgType string, payload any) Delivery {
	return Delivery{To: to, Msg: Envelope{Type: msgType, Payload: payload}}
}
