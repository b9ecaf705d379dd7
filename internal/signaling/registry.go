package signaling

import (
	"slices"

	"github.com/samber/lo"
)

// Registry owns every Room. It performs no messaging.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room with the given id, creating an empty one if needed.
func (r *Registry) GetOrCreate(id string) *Room {
	room, ok := r.rooms[id]
	if !ok {
		room = newRoom(id)
		r.rooms[id] = room
	}
	return room
}

func (r *Registry) Get(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// RemoveIfEmpty deletes the room iff it has no members. It reports whether
// a room was deleted.
func (r *Registry) RemoveIfEmpty(id string) bool {
	room, ok := r.rooms[id]
	if !ok || !room.Empty() {
		return false
	}
	delete(r.rooms, id)
	return true
}

func (r *Registry) Len() int { return len(r.rooms) }

// RoomInfo is the read-only view of a room served by the query surface.
type RoomInfo struct {
	ID      string          `json:"id"`
	Count   int             `json:"count"`
	Members []ParticipantID `json:"members"`
}

// Snapshot lists every room sorted by id.
func (r *Registry) Snapshot() []RoomInfo {
	ids := lo.Keys(r.rooms)
	slices.Sort(ids)
	return lo.Map(ids, func(id string, _ int) RoomInfo {
		room := r.rooms[id]
		return RoomInfo{ID: id, Count: room.Len(), Members: room.Members()}
	})
}

// roomCheckpoint holds copies of rooms as they were before an event. A nil
// entry means the room did not exist.
type roomCheckpoint map[string]*Room

func (r *Registry) checkpoint(ids ...string) roomCheckpoint {
	cp := make(roomCheckpoint, len(ids))
	for _, id := range lo.Uniq(ids) {
		if id == "" {
			continue
		}
		if room, ok := r.rooms[id]; ok {
			cp[id] = room.clone()
		} else {
			cp[id] = nil
		}
	}
	return cp
}

func (r *Registry) restore(cp roomCheckpoint) {
	for id, room := range cp {
		if room == nil {
			delete(r.rooms, id)
			continue
		}
		r.rooms[id] = room
	}
}
