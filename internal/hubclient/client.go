package hubclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/meshroom/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the signaling hub.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *signaling.Message
	outgoing  chan *signaling.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new hub client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *signaling.Message, 16),
		outgoing:  make(chan *signaling.Envelope, 16),
		done:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection to the hub.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads frames from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes frames to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Flush what is already queued, leave_room in particular.
			for {
				select {
				case msg := <-c.outgoing:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteJSON(msg); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues one frame for the hub. It reports false once the client is closed.
func (c *Client) Send(msgType string, payload any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outgoing <- &signaling.Envelope{Type: msgType, Payload: payload}:
		return true
	case <-c.done:
		return false
	}
}

// JoinRoom asks the hub to add us to roomID.
func (c *Client) JoinRoom(roomID string) bool {
	return c.Send(signaling.TypeJoinRoom, signaling.JoinRequest{RoomID: roomID})
}

// LeaveRoom asks the hub to remove us from the current room.
func (c *Client) LeaveRoom() bool {
	return c.Send(signaling.TypeLeaveRoom, nil)
}

// Chat sends a chat line to the current room.
func (c *Client) Chat(content string) bool {
	return c.Send(signaling.TypeChatMessage, signaling.ChatRequest{Content: content})
}

// Signal sends an opaque negotiation blob of the given kind to one participant.
func (c *Client) Signal(kind string, to signaling.ParticipantID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if !c.Send(kind, signaling.SignalRequest{To: to, Payload: raw}) {
		return ErrClosed
	}
	return nil
}

// Incoming returns the channel for receiving frames. It is closed when the
// connection ends.
func (c *Client) Incoming() <-chan *signaling.Message {
	return c.incoming
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
