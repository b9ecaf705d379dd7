package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

// Limits bounds the size of client supplied fields.
type Limits struct {
	MaxRoomIDLength  int
	MaxContentLength int
}

func DefaultLimits() Limits {
	return Limits{MaxRoomIDLength: 64, MaxContentLength: 2000}
}

// Lifecycle binds connections to rooms and maps every connection event to
// exactly one controller call.
type Lifecycle struct {
	registry   *Registry
	conns      *Connections
	membership *MembershipController
	router     *NegotiationRouter
	chat       *ChatRelay

	validate *validator.Validate
	limits   Limits
	log      *slog.Logger
}

// NewLifecycle wires the registry and the three controllers together. now
// stamps chat entries; nil means time.Now.
func NewLifecycle(log *slog.Logger, limits Limits, now func() time.Time) *Lifecycle {
	registry := NewRegistry()
	conns := NewConnections()
	chat := NewChatRelay(registry, conns, now)
	router := NewNegotiationRouter(conns)

	return &Lifecycle{
		registry:   registry,
		conns:      conns,
		membership: NewMembershipController(registry, conns, chat, router),
		router:     router,
		chat:       chat,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		limits:     limits,
		log:        log,
	}
}

// Connect registers p and tells it its own identifier.
func (l *Lifecycle) Connect(p ParticipantID) Outcome {
	l.conns.Connect(p)
	l.log.Info("Participant connected", "participant", p, "connections", l.conns.Len())
	return Outcome{Deliveries: []Delivery{
		unicast(p, TypeWelcome, WelcomePayload{ID: p}),
	}}
}

// Disconnect drives the leave path for p and forgets the connection. It is
// safe to call after an explicit leave.
func (l *Lifecycle) Disconnect(p ParticipantID) Outcome {
	out := l.contain(p, nil, func() Outcome {
		return l.membership.Leave(p)
	})
	if errors.Is(out.Err, ErrInternal) {
		l.evict(p)
	}
	l.conns.Disconnect(p)

	l.logOutcome(p, "disconnect", out)
	return out
}

// HandleFrame decodes one raw websocket frame and handles it.
func (l *Lifecycle) HandleFrame(p ParticipantID, data []byte) Outcome {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return l.reject(p, "frame", err)
	}
	return l.Handle(p, msg)
}

// Handle processes one inbound message from p.
func (l *Lifecycle) Handle(p ParticipantID, msg Message) Outcome {
	var out Outcome

	switch msg.Type {
	case TypeJoinRoom:
		var req JoinRequest
		if err := l.decode(msg.Payload, &req); err != nil {
			return l.reject(p, msg.Type, err)
		}
		if err := l.checkLength(req.RoomID, l.limits.MaxRoomIDLength); err != nil {
			return l.reject(p, msg.Type, err)
		}
		out = l.contain(p, []string{req.RoomID}, func() Outcome {
			return l.membership.Join(p, req.RoomID)
		})

	case TypeLeaveRoom:
		out = l.contain(p, nil, func() Outcome {
			return l.membership.Leave(p)
		})

	case TypeOffer, TypeAnswer, TypeICECandidate:
		var req SignalRequest
		if err := l.decode(msg.Payload, &req); err != nil {
			return l.reject(p, msg.Type, err)
		}
		out = l.contain(p, nil, func() Outcome {
			switch msg.Type {
			case TypeOffer:
				return l.router.ForwardOffer(p, req.To, req.Payload)
			case TypeAnswer:
				return l.router.ForwardAnswer(p, req.To, req.Payload)
			default:
				return l.router.ForwardIceCandidate(p, req.To, req.Payload)
			}
		})

	case TypeChatMessage:
		var req ChatRequest
		if err := l.decode(msg.Payload, &req); err != nil {
			return l.reject(p, msg.Type, err)
		}
		if err := l.checkLength(req.Content, l.limits.MaxContentLength); err != nil {
			return l.reject(p, msg.Type, err)
		}
		out = l.contain(p, nil, func() Outcome {
			if current, _ := l.conns.RoomOf(p); req.RoomID != "" && req.RoomID != current {
				return Outcome{Err: ErrNotInRoom}
			}
			return l.chat.Send(p, req.Content)
		})

	default:
		out = Outcome{Err: fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)}
	}

	l.logOutcome(p, msg.Type, out)
	return out
}

// Rooms lists every room with its members.
func (l *Lifecycle) Rooms() []RoomInfo {
	return l.registry.Snapshot()
}

// contain runs fn with every room it may touch checkpointed. A panic
// restores the checkpoint and is reported as ErrInternal.
func (l *Lifecycle) contain(p ParticipantID, rooms []string, fn func() Outcome) (out Outcome) {
	if current, ok := l.conns.RoomOf(p); ok {
		rooms = append(rooms, current)
	}
	roomsBefore := l.registry.checkpoint(rooms...)
	connBefore := l.conns.checkpoint(p)

	defer func() {
		if r := recover(); r != nil {
			l.registry.restore(roomsBefore)
			l.conns.restore(connBefore)
			l.log.Error("Event handling panicked, state restored", "participant", p, "panic", r)
			out = Outcome{Err: fmt.Errorf("%w: %v", ErrInternal, r)}
		}
	}()

	return fn()
}

// evict removes p from its room without notifying anyone. Only used when
// the regular leave path failed for a connection that is going away.
func (l *Lifecycle) evict(p ParticipantID) {
	roomID, ok := l.conns.RoomOf(p)
	if !ok {
		return
	}
	if room, ok := l.registry.Get(roomID); ok {
		room.remove(p)
		l.registry.RemoveIfEmpty(roomID)
	}
	l.conns.Unbind(p)
}

func (l *Lifecycle) decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return err
	}
	return l.validate.Struct(v)
}

func (l *Lifecycle) checkLength(value string, limit int) error {
	if limit <= 0 {
		return nil
	}
	return l.validate.Var(value, fmt.Sprintf("max=%d", limit))
}

func (l *Lifecycle) reject(p ParticipantID, msgType string, err error) Outcome {
	l.log.Warn("Rejected frame", "participant", p, "type", msgType, "error", err)
	return Outcome{
		Deliveries: []Delivery{unicast(p, TypeError, ErrorPayload{
			Error: fmt.Sprintf("invalid %s payload", msgType),
		})},
		Err: fmt.Errorf("%w: %v", ErrInvalidPayload, err),
	}
}

func (l *Lifecycle) logOutcome(p ParticipantID, msgType string, out Outcome) {
	room, _ := l.conns.RoomOf(p)
	attrs := []any{"participant", p, "type", msgType, "room", room, "deliveries", len(out.Deliveries)}

	switch {
	case out.Err == nil && (msgType == TypeJoinRoom || msgType == TypeLeaveRoom || msgType == "disconnect"):
		l.log.Info("Membership changed", attrs...)
	case out.Err == nil:
		l.log.Debug("Event handled", attrs...)
	case errors.Is(out.Err, ErrRoomFull):
		l.log.Info("Join rejected, room is full", attrs...)
	case errors.Is(out.Err, ErrInternal):
		// already logged by contain
	case errors.Is(out.Err, ErrUnknownMessage):
		l.log.Warn("Unknown message type", attrs...)
	default:
		l.log.Debug("Event dropped", append(attrs, "reason", out.Err)...)
	}
}
