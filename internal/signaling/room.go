package signaling

import "github.com/samber/lo"

const (
	// MaxMembers is the capacity of a room.
	MaxMembers = 3

	// HistoryLimit is the number of chat entries a room keeps.
	HistoryLimit = 50
)

// Room represents a capacity-bounded group of participants and their chat log.
type Room struct {
	// ID is the externally supplied, case-sensitive room identifier.
	ID string

	// members is kept in join order.
	members []ParticipantID

	history *History
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		history: NewHistory(HistoryLimit),
	}
}

// Members returns a copy of the membership in join order.
func (r *Room) Members() []ParticipantID {
	return append([]ParticipantID(nil), r.members...)
}

// Others returns every member except p, in join order.
func (r *Room) Others(p ParticipantID) []ParticipantID {
	return lo.Without(r.members, p)
}

func (r *Room) Len() int { return len(r.members) }

func (r *Room) Full() bool { return len(r.members) >= MaxMembers }

func (r *Room) Empty() bool { return len(r.members) == 0 }

func (r *Room) Has(p ParticipantID) bool { return lo.Contains(r.members, p) }

// History returns the chat log oldest first.
func (r *Room) History() []ChatEntry { return r.history.Entries() }

func (r *Room) add(p ParticipantID) bool {
	if r.Full() || r.Has(p) {
		return false
	}
	r.members = append(r.members, p)
	return true
}

func (r *Room) remove(p ParticipantID) bool {
	if !r.Has(p) {
		return false
	}
	r.members = lo.Without(r.members, p)
	return true
}

func (r *Room) clone() *Room {
	return &Room{
		ID:      r.ID,
		members: r.Members(),
		history: r.history.clone(),
	}
}

// History is a fixed-capacity ring of chat entries. Appending to a full
// ring evicts the oldest entry.
type History struct {
	entries []ChatEntry
	start   int
	size    int
}

func NewHistory(limit int) *History {
	return &History{entries: make([]ChatEntry, limit)}
}

func (h *History) Append(e ChatEntry) {
	if len(h.entries) == 0 {
		return
	}
	if h.size < len(h.entries) {
		h.entries[(h.start+h.size)%len(h.entries)] = e
		h.size++
		return
	}
	h.entries[h.start] = e
	h.start = (h.start + 1) % len(h.entries)
}

func (h *History) Len() int { return h.size }

// Entries returns a copy of the log in append order.
func (h *History) Entries() []ChatEntry {
	out := make([]ChatEntry, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.entries[(h.start+i)%len(h.entries)])
	}
	return out
}

func (h *History) clone() *History {
	c := &History{
		entries: make([]ChatEntry, len(h.entries)),
		start:   h.start,
		size:    h.size,
	}
	copy(c.entries, h.entries)
	return c
}
