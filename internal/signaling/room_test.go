package signaling

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistory_Keeps_Most_Recent_Entries_In_Order(t *testing.T) {
	req := require.New(t)
	h := NewHistory(HistoryLimit)

	// When more entries than the limit are appended
	for i := 0; i < HistoryLimit+7; i++ {
		h.Append(ChatEntry{Sender: "a", Content: fmt.Sprintf("m%d", i)})
	}

	// Then only the most recent ones remain, oldest first
	entries := h.Entries()
	req.Len(entries, HistoryLimit)
	req.Equal(HistoryLimit, h.Len())
	req.Equal("m7", entries[0].Content)
	req.Equal(fmt.Sprintf("m%d", HistoryLimit+6), entries[HistoryLimit-1].Content)
	for i := 1; i < len(entries); i++ {
		req.Equal(fmt.Sprintf("m%d", i+7), entries[i].Content)
	}
}

func TestHistory_Below_Capacity(t *testing.T) {
	req := require.New(t)
	h := NewHistory(3)

	req.Empty(h.Entries())

	h.Append(ChatEntry{Content: "one"})
	h.Append(ChatEntry{Content: "two"})

	req.Equal([]string{"one", "two"}, contents(h.Entries()))
}

func TestHistory_Entries_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	h := NewHistory(2)
	h.Append(ChatEntry{Content: "one"})

	entries := h.Entries()
	entries[0].Content = "changed"

	req.Equal("one", h.Entries()[0].Content)
}

func TestHistory_Zero_Capacity_Drops_Everything(t *testing.T) {
	req := require.New(t)
	h := NewHistory(0)

	h.Append(ChatEntry{Content: "one"})

	req.Equal(0, h.Len())
	req.Empty(h.Entries())
}

func TestRoom_Add_Respects_Capacity_And_Duplicates(t *testing.T) {
	req := require.New(t)
	room := newRoom("r1")

	req.True(room.add("a"))
	req.False(room.add("a"))
	req.True(room.add("b"))
	req.True(room.add("c"))

	// Given a full room, a fourth member is refused
	req.True(room.Full())
	req.False(room.add("d"))
	req.Equal([]ParticipantID{"a", "b", "c"}, room.Members())
}

func TestRoom_Remove_Keeps_Join_Order(t *testing.T) {
	req := require.New(t)
	room := newRoom("r1")
	room.add("a")
	room.add("b")
	room.add("c")

	req.True(room.remove("b"))
	req.False(room.remove("b"))

	req.Equal([]ParticipantID{"a", "c"}, room.Members())
	req.Equal([]ParticipantID{"c"}, room.Others("a"))
}

func TestRoom_Clone_Is_Independent(t *testing.T) {
	req := require.New(t)
	room := newRoom("r1")
	room.add("a")
	room.history.Append(ChatEntry{Content: "hi"})

	clone := room.clone()
	room.add("b")
	room.history.Append(ChatEntry{Content: "again"})

	req.Equal([]ParticipantID{"a"}, clone.Members())
	req.Equal([]string{"hi"}, contents(clone.History()))
}

func contents(entries []ChatEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Content)
	}
	return out
}
