package signaling

import (
	"context"
	"log/slog"
	"slices"
)

// Inbound is one frame read from a client's connection.
type Inbound struct {
	client *Client
	data   []byte
}

// Hub is the central brain of the signaling server.
// Run is the single goroutine that owns all room state, so every event is
// processed to completion before the next one starts.
type Hub struct {
	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for clients whose connection ended.
	Unregister chan *Client

	// Inbound carries every frame read from any client.
	Inbound chan *Inbound

	queries chan chan []RoomInfo
	done    chan struct{}

	clients   map[ParticipantID]*Client
	lifecycle *Lifecycle
	log       *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub(log *slog.Logger, lifecycle *Lifecycle) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Inbound),
		queries:    make(chan chan []RoomInfo),
		done:       make(chan struct{}),
		clients:    make(map[ParticipantID]*Client),
		lifecycle:  lifecycle,
		log:        log,
	}
}

// Run starts the hub's main processing loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Hub stopping", "clients", len(h.clients))
			return

		case client := <-h.Register:
			h.clients[client.ID] = client
			h.deliver(h.lifecycle.Connect(client.ID))

		case client := <-h.Unregister:
			h.drop(client)

		case in := <-h.Inbound:
			if _, ok := h.clients[in.client.ID]; !ok {
				continue
			}
			h.deliver(h.lifecycle.HandleFrame(in.client.ID, in.data))

		case reply := <-h.queries:
			reply <- h.lifecycle.Rooms()
		}
	}
}

// Attach registers a client. It reports false once the hub has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) submit(in *Inbound) bool {
	select {
	case h.Inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

// Rooms returns the current room listing. It is answered by the Run loop.
func (h *Hub) Rooms(ctx context.Context) ([]RoomInfo, error) {
	reply := make(chan []RoomInfo, 1)
	select {
	case h.queries <- reply:
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rooms := <-reply:
		return rooms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliver hands each frame to its target's send buffer. Delivery never
// blocks the loop: a client whose buffer is full has fallen behind the mesh,
// so it gets nothing more from out and is disconnected once out is delivered.
func (h *Hub) deliver(out Outcome) {
	var behind []*Client
	for _, d := range out.Deliveries {
		client, ok := h.clients[d.To]
		if !ok || slices.Contains(behind, client) {
			continue
		}
		msg := d.Msg
		select {
		case client.Send <- &msg:
		default:
			h.log.Warn("Send buffer full, dropping client", "participant", d.To, "type", d.Msg.Type)
			behind = append(behind, client)
		}
	}
	for _, client := range behind {
		h.drop(client)
	}
}

// drop disconnects a client from inside the loop. Its read pump's later
// Unregister finds nothing to do.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
	h.deliver(h.lifecycle.Disconnect(client.ID))
}

func (h *Hub) closeAll() {
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
}
