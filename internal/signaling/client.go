package signaling

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// PumpSettings controls the keepalive and size limits of one connection.
type PumpSettings struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Maximum message size allowed from peer.
	MaxMessageSize int64
}

func DefaultPumpSettings() PumpSettings {
	return PumpSettings{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024, // enough for SDP blobs
	}
}

// Send pings to peer with this period. Must be less than PongWait.
func (s PumpSettings) pingPeriod() time.Duration {
	return (s.PongWait * 9) / 10
}

// Client is a wrapper for a single websocket connection (a participant).
type Client struct {
	// ID is assigned on upgrade and never reused.
	ID ParticipantID

	// Send is a buffered channel for all outbound frames. Only the hub
	// writes to it and only the hub closes it.
	Send chan *Envelope

	hub      *Hub
	conn     *websocket.Conn
	settings PumpSettings
	log      *slog.Logger
}

// NewClient wraps conn with a fresh participant identifier.
func NewClient(hub *Hub, conn *websocket.Conn, settings PumpSettings, sendBuffer int) *Client {
	id := NewParticipantID()
	return &Client{
		ID:       id,
		Send:     make(chan *Envelope, sendBuffer),
		hub:      hub,
		conn:     conn,
		settings: settings,
		log:      hub.log.With("participant", id),
	}
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	// A closed read side is the disconnect event.
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.settings.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Connection closed unexpectedly", "error", err)
			}
			return
		}

		if !c.hub.submit(&Inbound{client: c, data: data}) {
			return
		}
	}
}

// WritePump pumps frames from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.settings.pingPeriod())

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Warn("Write failed", "type", msg.Type, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
