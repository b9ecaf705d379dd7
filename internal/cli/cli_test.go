package cli

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/hubclient"
	"github.com/BioHazard786/meshroom/internal/server"
	"github.com/BioHazard786/meshroom/internal/signaling"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *config.Config {
	t.Helper()
	log := quiet()

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

	cfg, err := config.Load(config.Options{ServerURL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"})
	require.NoError(t, err)
	return cfg
}

func TestConnectAndJoin_Then_Listing(t *testing.T) {
	req := require.New(t)
	cfg := startHub(t)
	ctx := context.Background()

	// Given one participant in "standup"
	first, err := connectAndJoin(ctx, cfg, "standup", quiet())
	req.NoError(err)
	t.Cleanup(first.Close)
	req.NotEmpty(first.Self)
	req.Equal([]signaling.ParticipantID{first.Self}, first.Members)

	// When a second joins, it sees both
	second, err := connectAndJoin(ctx, cfg, "standup", quiet())
	req.NoError(err)
	t.Cleanup(second.Close)
	req.Equal([]signaling.ParticipantID{first.Self, second.Self}, second.Members)

	// Then the listing shows the room
	rooms, err := fetchRooms(ctx, cfg.RoomsURL())
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal("standup", rooms[0].ID)
	req.Equal(2, rooms[0].Count)
}

func TestConnectAndJoin_Room_Full(t *testing.T) {
	cfg := startHub(t)
	ctx := context.Background()

	for i := 0; i < signaling.MaxMembers; i++ {
		s, err := connectAndJoin(ctx, cfg, "busy", quiet())
		require.NoError(t, err)
		t.Cleanup(s.Close)
	}

	_, err := connectAndJoin(ctx, cfg, "busy", quiet())
	require.ErrorIs(t, err, hubclient.ErrRoomFull)
}

func TestConnectAndJoin_No_Hub(t *testing.T) {
	cfg, err := config.Load(config.Options{ServerURL: "ws://127.0.0.1:1/ws"})
	require.NoError(t, err)

	_, err = connectAndJoin(context.Background(), cfg, "standup", quiet())
	require.Error(t, err)
}

func TestFetchRooms_Bad_Status(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := fetchRooms(context.Background(), ts.URL+"/rooms")
	require.ErrorContains(t, err, "503")
}

func TestPickRoomName_Avoids_Open_Rooms(t *testing.T) {
	req := require.New(t)
	cfg := startHub(t)

	s, err := connectAndJoin(context.Background(), cfg, "standup", quiet())
	req.NoError(err)
	t.Cleanup(s.Close)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	name, err := pickRoomName(cmd, cfg)
	req.NoError(err)
	req.NotEqual("standup", name)
	req.Len(strings.Split(name, "-"), 3)
}
