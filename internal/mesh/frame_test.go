package mesh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame_Ping_Survives_The_Wire(t *testing.T) {
	req := require.New(t)

	f, err := NewFrame(FramePing, PingPayload{Sent: 1234567890})
	req.NoError(err)
	data, err := f.Marshal()
	req.NoError(err)

	got, err := ParseFrame(data)
	req.NoError(err)
	req.Equal(FramePing, got.Type)

	var ping PingPayload
	req.NoError(got.DecodePayload(&ping))
	req.Equal(int64(1234567890), ping.Sent)
}

func TestParseFrame_Rejects_Garbage(t *testing.T) {
	_, err := ParseFrame([]byte{0xc1})
	require.Error(t, err)
}

func TestError_Wraps(t *testing.T) {
	req := require.New(t)

	err := NewPeerError("apply answer", "p1", ErrUnknownPeer)
	req.ErrorIs(err, ErrUnknownPeer)
	req.Equal("apply answer p1: unknown peer", err.Error())

	var meshErr *Error
	req.True(errors.As(error(err), &meshErr))
	req.Equal("apply answer", meshErr.Op)

	req.Equal("connect: mesh closed", NewError("connect", ErrClosed).Error())
}
