package hubclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/meshroom/internal/server"
	"github.com/BioHazard786/meshroom/internal/signaling"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) string {
	t.Helper()
	log := discard()

	ctx, cancel := context.WithCancel(context.Background())
	hub := signaling.NewHub(log, signaling.NewLifecycle(log, signaling.DefaultLimits(), nil))
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	ts := httptest.NewServer(server.NewRouter(hub, server.Options{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		Pump:            signaling.DefaultPumpSettings(),
	}, log))

	t.Cleanup(func() {
		cancel()
		<-done
		ts.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func connect(t *testing.T, url string) (*Client, *Handler, signaling.ParticipantID) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewClient(url)
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Close)

	h := NewHandler(c, discard())
	go h.Start()

	return c, h, receive(t, h.Welcome)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %T", *new(T))
		panic("unreachable")
	}
}

func TestClient_Join_Negotiate_Chat_Leave(t *testing.T) {
	req := require.New(t)
	url := startHub(t)
	a, ha, idA := connect(t, url)
	b, hb, idB := connect(t, url)
	req.NotEqual(idA, idB)

	// a joins first, then b
	req.True(a.JoinRoom("r1"))
	req.Equal([]signaling.ParticipantID{idA}, receive(t, ha.Members))

	req.True(b.JoinRoom("r1"))
	req.Equal([]signaling.ParticipantID{idA, idB}, receive(t, hb.Members))
	req.Equal([]signaling.ParticipantID{idA, idB}, receive(t, ha.Members))

	// b gets the backlog, a gets the join notice and the offer request
	history := receive(t, hb.History)
	req.Len(history, 1)
	req.Equal(signaling.SystemSender, history[0].Sender)

	notice := receive(t, ha.Chat)
	req.Equal(signaling.SystemSender, notice.Sender)
	req.Equal(idB, receive(t, ha.OfferRequest))

	// a offers, b answers
	req.NoError(a.Signal(signaling.TypeOffer, idB, map[string]string{"type": "offer", "sdp": "x"}))
	sig := receive(t, hb.Signal)
	req.Equal(signaling.TypeOffer, sig.Kind)
	req.Equal(idA, sig.From)
	req.JSONEq(`{"type":"offer","sdp":"x"}`, string(sig.Payload))

	req.NoError(b.Signal(signaling.TypeICECandidate, idA, map[string]string{"candidate": "c1"}))
	sig = receive(t, ha.Signal)
	req.Equal(signaling.TypeICECandidate, sig.Kind)
	req.Equal(idB, sig.From)

	// chat reaches everyone but the sender
	req.True(a.Chat("hello"))
	entry := receive(t, hb.Chat)
	req.Equal(string(idA), entry.Sender)
	req.Equal("hello", entry.Content)

	// b leaves explicitly
	req.True(b.LeaveRoom())
	req.Equal("system", receive(t, ha.Chat).Sender)
	req.Equal(idB, receive(t, ha.UserLeft))
	req.Equal([]signaling.ParticipantID{idA}, receive(t, ha.Members))
}

func TestClient_Room_Full(t *testing.T) {
	url := startHub(t)
	for i := 0; i < signaling.MaxMembers; i++ {
		c, h, _ := connect(t, url)
		c.JoinRoom("busy")
		receive(t, h.Members)
	}

	c, h, _ := connect(t, url)
	c.JoinRoom("busy")
	receive(t, h.RoomFull)
}

func TestClient_Send_After_Close(t *testing.T) {
	req := require.New(t)
	c := NewClient("ws://unused")
	c.Close()
	c.Close()

	req.False(c.Chat("hi"))
	req.ErrorIs(c.Signal(signaling.TypeOffer, "x", map[string]string{}), ErrClosed)
}

func TestHandler_Route(t *testing.T) {
	req := require.New(t)
	h := NewHandler(NewClient("ws://unused"), discard())

	req.NoError(h.route(&signaling.Message{Type: signaling.TypeRoomFull}))
	receive(t, h.RoomFull)

	req.NoError(h.route(&signaling.Message{Type: signaling.TypeError, Payload: json.RawMessage(`{"error":"invalid join_room payload"}`)}))
	req.Equal("invalid join_room payload", receive(t, h.Error))

	req.NoError(h.route(&signaling.Message{Type: signaling.TypeError}))
	req.Equal("Unknown error from server", receive(t, h.Error))

	req.Error(h.route(&signaling.Message{Type: signaling.TypeOfferRequest}))
	req.Error(h.route(&signaling.Message{Type: signaling.TypeUsersInRoom, Payload: json.RawMessage(`"nope"`)}))
	req.NoError(h.route(&signaling.Message{Type: "something_new"}))
}
