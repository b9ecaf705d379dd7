package signaling

import "fmt"

// MembershipController enforces the join, leave and capacity rules and
// computes the notifications each transition requires.
type MembershipController struct {
	registry *Registry
	conns    *Connections
	chat     *ChatRelay
	router   *NegotiationRouter
}

func NewMembershipController(registry *Registry, conns *Connections, chat *ChatRelay, router *NegotiationRouter) *MembershipController {
	return &MembershipController{
		registry: registry,
		conns:    conns,
		chat:     chat,
		router:   router,
	}
}

// Join adds p to roomID.
//
// Deliveries, in order: the membership snapshot to every member including
// the joiner, the "joined" notice to the other members, the history to the
// joiner (when there is any), and one offer_request per existing member.
func (m *MembershipController) Join(p ParticipantID, roomID string) Outcome {
	// Capacity is checked first, so a member re-joining its own full room
	// is told room_full like anyone else.
	if room, ok := m.registry.Get(roomID); ok && room.Full() {
		return Outcome{
			Deliveries: []Delivery{unicast(p, TypeRoomFull, nil)},
			Err:        ErrRoomFull,
		}
	}

	current, bound := m.conns.RoomOf(p)
	if bound && current == roomID {
		return Outcome{Err: ErrDuplicateJoin}
	}

	var out Outcome

	// Switching rooms goes through the one leave path.
	if bound {
		out.add(m.Leave(p).Deliveries...)
	}

	room := m.registry.GetOrCreate(roomID)
	existing := room.Members()
	history := room.History()

	room.add(p)
	m.conns.Bind(p, roomID)

	members := room.Members()
	for _, member := range members {
		out.add(unicast(member, TypeUsersInRoom, MembersPayload{Members: members}))
	}

	out.add(m.chat.announce(room, fmt.Sprintf("%s joined", p), p)...)

	if len(history) > 0 {
		out.add(unicast(p, TypeChatHistory, history))
	}

	out.add(m.router.Bootstrap(p, existing)...)

	return out
}

// Leave removes p from its room. Explicit leave and disconnect both end up
// here; an unbound connection is a no-op, which makes a second call harmless.
func (m *MembershipController) Leave(p ParticipantID) Outcome {
	roomID, ok := m.conns.RoomOf(p)
	if !ok {
		return Outcome{Err: ErrNotInRoom}
	}
	m.conns.Unbind(p)

	room, ok := m.registry.Get(roomID)
	if !ok {
		return Outcome{Err: ErrNotInRoom}
	}
	room.remove(p)

	var out Outcome
	out.add(m.chat.announce(room, fmt.Sprintf("%s left", p), p)...)

	remaining := room.Members()
	for _, member := range remaining {
		out.add(unicast(member, TypeUserLeft, UserLeftPayload{Participant: p}))
	}
	for _, member := range remaining {
		out.add(unicast(member, TypeUsersInRoom, MembersPayload{Members: remaining}))
	}

	m.registry.RemoveIfEmpty(roomID)
	return out
}
