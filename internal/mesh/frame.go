package mesh

import "github.com/vmihailenco/msgpack/v5"

// Data channel frame types.
const (
	FrameHello = "hello"
	FramePing  = "ping"
	FramePong  = "pong"
)

// Frame is every message sent over a peer data channel.
type Frame struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// HelloPayload is sent by both sides once the channel opens.
type HelloPayload struct {
	ID      string `msgpack:"id"`
	Version string `msgpack:"version"`
}

// PingPayload carries the sender's clock; the pong echoes it back.
type PingPayload struct {
	Sent int64 `msgpack:"sent"`
}

// DecodePayload decodes the frame payload into v
func (f Frame) DecodePayload(v any) error {
	return msgpack.Unmarshal(f.Payload, v)
}

// NewFrame creates a Frame with the given type and payload
func NewFrame(t string, payload any) (Frame, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Payload: b}, nil
}

// Marshal encodes a frame for the wire.
func (f Frame) Marshal() ([]byte, error) {
	return msgpack.Marshal(f)
}

// ParseFrame decodes one data channel message.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	err := msgpack.Unmarshal(data, &f)
	return f, err
}
