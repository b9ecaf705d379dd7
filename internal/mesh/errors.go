package mesh

import (
	"errors"
	"fmt"

	"github.com/BioHazard786/meshroom/internal/signaling"
)

var (
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrUnexpectedSignal = errors.New("unexpected signal type")
	ErrChannelNotOpen   = errors.New("channel not open")
	ErrClosed           = errors.New("mesh closed")
)

// Error records the operation and the peer it failed for.
type Error struct {
	Op   string
	Peer signaling.ParticipantID
	Err  error
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func NewPeerError(op string, peer signaling.ParticipantID, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}
