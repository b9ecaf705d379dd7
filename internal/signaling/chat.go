package signaling

import "time"

// ChatRelay appends to a room's bounded history and computes who hears it.
type ChatRelay struct {
	registry *Registry
	conns    *Connections
	now      func() time.Time
}

func NewChatRelay(registry *Registry, conns *Connections, now func() time.Time) *ChatRelay {
	if now == nil {
		now = time.Now
	}
	return &ChatRelay{registry: registry, conns: conns, now: now}
}

// Send appends a message from p to its room and fans it out to every other
// member. Messages from unbound connections are dropped.
func (c *ChatRelay) Send(p ParticipantID, content string) Outcome {
	roomID, ok := c.conns.RoomOf(p)
	if !ok {
		return Outcome{Err: ErrNotInRoom}
	}
	room, ok := c.registry.Get(roomID)
	if !ok {
		return Outcome{Err: ErrNotInRoom}
	}
	return Outcome{Deliveries: c.append(room, string(p), content, p)}
}

// announce appends a system notice and fans it out to every member except skip.
func (c *ChatRelay) announce(room *Room, content string, skip ParticipantID) []Delivery {
	return c.append(room, SystemSender, content, skip)
}

func (c *ChatRelay) append(room *Room, sender, content string, skip ParticipantID) []Delivery {
	entry := ChatEntry{Sender: sender, Content: content, Timestamp: c.now().UTC()}
	room.history.Append(entry)

	others := room.Others(skip)
	out := make([]Delivery, 0, len(others))
	for _, m := range others {
		out = append(out, unicast(m, TypeChatMessage, entry))
	}
	return out
}
