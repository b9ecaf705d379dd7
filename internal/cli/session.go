package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/hubclient"
	"github.com/BioHazard786/meshroom/internal/mesh"
	"github.com/BioHazard786/meshroom/internal/signaling"
	"github.com/BioHazard786/meshroom/internal/ui"
)

const joinTimeout = 15 * time.Second

// roomSession is one joined room: the hub connection, its frame router and
// the first membership snapshot.
type roomSession struct {
	RoomID  string
	Self    signaling.ParticipantID
	Members []signaling.ParticipantID

	client  *hubclient.Client
	handler *hubclient.Handler
	hubGone chan struct{}
	log     *slog.Logger
}

// connectAndJoin dials the hub, learns our id and joins roomID.
func connectAndJoin(ctx context.Context, cfg *config.Config, roomID string, log *slog.Logger) (*roomSession, error) {
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	client := hubclient.NewClient(cfg.ServerURL)
	if err := client.Connect(ctx); err != nil {
		return nil, mesh.NewError("connect to hub", err)
	}

	handler := hubclient.NewHandler(client, log)
	s := &roomSession{
		RoomID:  roomID,
		client:  client,
		handler: handler,
		hubGone: make(chan struct{}),
		log:     log,
	}
	go func() {
		defer close(s.hubGone)
		handler.Start()
	}()

	if err := s.join(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *roomSession) join(ctx context.Context) error {
	select {
	case id := <-s.handler.Welcome:
		s.Self = id
	case <-s.hubGone:
		return mesh.NewError("connect to hub", hubclient.ErrClosed)
	case <-ctx.Done():
		return mesh.NewError("connect to hub", ctx.Err())
	}

	if !s.client.JoinRoom(s.RoomID) {
		return mesh.NewError("join room", hubclient.ErrClosed)
	}

	// users_in_room is always the first frame of a successful join.
	select {
	case members := <-s.handler.Members:
		s.Members = members
		return nil
	case <-s.handler.RoomFull:
		return mesh.NewError("join room "+s.RoomID, hubclient.ErrRoomFull)
	case msg := <-s.handler.Error:
		return mesh.NewError("join room "+s.RoomID, errors.New(msg))
	case <-s.hubGone:
		return mesh.NewError("join room", hubclient.ErrClosed)
	case <-ctx.Done():
		return mesh.NewError("join room", ctx.Err())
	}
}

// Close leaves the room and drops the hub connection.
func (s *roomSession) Close() {
	s.client.LeaveRoom()
	s.client.Close()
}

// Run drives the mesh and the chat pane until the user leaves, the hub
// goes away or ctx is cancelled.
func (s *roomSession) Run(ctx context.Context, cfg *config.Config) error {
	peers := mesh.NewManager(s.Self, cfg, s.client, s.log)
	defer peers.Close()

	pane := ui.NewChatUI(s.RoomID, s.Self)
	pane.Start()
	pane.SetMembers(s.Members)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			pane.Quit()
			break loop

		case <-s.hubGone:
			runErr = mesh.NewError("hub connection", hubclient.ErrClosed)
			pane.Quit()
			break loop

		case text, ok := <-pane.Outgoing():
			if !ok {
				break loop
			}
			s.client.Chat(text)

		case members := <-s.handler.Members:
			pane.SetMembers(members)
			peers.Retain(members)

		case entries := <-s.handler.History:
			pane.SetHistory(entries)

		case entry := <-s.handler.Chat:
			pane.AddChat(entry)

		case from := <-s.handler.OfferRequest:
			if err := peers.HandleOfferRequest(from); err != nil {
				s.log.Warn("Offer failed", "peer", from, "error", err)
				pane.SetLink(from, ui.LinkLost, 0)
			}

		case sig := <-s.handler.Signal:
			if err := peers.HandleSignal(sig.Kind, sig.From, sig.Payload); err != nil {
				s.log.Debug("Signal dropped", "peer", sig.From, "kind", sig.Kind, "error", err)
			}

		case id := <-s.handler.UserLeft:
			peers.Remove(id)

		case msg := <-s.handler.Error:
			pane.Notice(fmt.Sprintf("hub: %s", msg))

		case <-s.handler.RoomFull:
			// Only possible on a second join, which this client never sends.

		case ev := <-peers.Events():
			switch ev.Type {
			case mesh.EventConnected:
				pane.SetLink(ev.Peer, ui.LinkConnected, 0)
			case mesh.EventRTT:
				pane.SetLink(ev.Peer, "", ev.RTT)
			case mesh.EventDisconnected:
				pane.SetLink(ev.Peer, ui.LinkLost, 0)
			case mesh.EventHello:
				s.log.Debug("Peer hello", "peer", ev.Peer, "version", ev.Version)
			}
		}
	}

	pane.Wait()
	return runErr
}
