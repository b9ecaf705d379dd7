package signaling

import "errors"

// None of these are fatal. Each one classifies a single event and stops there.
var (
	ErrRoomFull          = errors.New("room is full")
	ErrTargetUnreachable = errors.New("target participant is not connected")
	ErrNotInRoom         = errors.New("participant is not in a room")
	ErrDuplicateJoin     = errors.New("participant already in room")

	ErrInvalidPayload = errors.New("invalid payload")
	ErrUnknownMessage = errors.New("unknown message type")
	ErrInternal       = errors.New("internal error")
)

// ErrHubStopped is returned by queries made after the hub loop exited.
var ErrHubStopped = errors.New("hub stopped")
