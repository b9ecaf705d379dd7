package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/meshroom/internal/signaling"
)

func startHub(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	hub := signaling.NewHub(log, signaling.NewLifecycle(log, signaling.DefaultLimits(), nil))
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	opts := Options{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		AllowedOrigin:   "*",
		Pump:            signaling.DefaultPumpSettings(),
	}
	ts := httptest.NewServer(NewRouter(hub, opts, log))

	t.Cleanup(func() {
		cancel()
		<-done
		ts.Close()
	})
	return ts
}

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
	id   signaling.ParticipantID
}

func dial(t *testing.T, ts *httptest.Server) *wsPeer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	p := &wsPeer{t: t, conn: conn}
	var welcome signaling.WelcomePayload
	p.expect(signaling.TypeWelcome, &welcome)
	require.NotEmpty(t, welcome.ID)
	p.id = welcome.ID
	return p
}

func (p *wsPeer) send(msgType string, payload any) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteJSON(signaling.Envelope{Type: msgType, Payload: payload}))
}

// expect reads frames until one of msgType arrives and decodes its payload into v.
func (p *wsPeer) expect(msgType string, v any) {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg signaling.Message
		require.NoError(p.t, p.conn.ReadJSON(&msg), "waiting for %s", msgType)
		if msg.Type != msgType {
			continue
		}
		if v != nil {
			require.NoError(p.t, json.Unmarshal(msg.Payload, v))
		}
		return
	}
}

func getRooms(t *testing.T, ts *httptest.Server) RoomsResponse {
	t.Helper()
	resp, err := http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body RoomsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHub_Mesh_Formation_Over_Websocket(t *testing.T) {
	req := require.New(t)
	ts := startHub(t)
	a := dial(t, ts)
	b := dial(t, ts)

	// Given a is alone in the room
	a.send(signaling.TypeJoinRoom, signaling.JoinRequest{RoomID: "r1"})
	var members signaling.MembersPayload
	a.expect(signaling.TypeUsersInRoom, &members)
	req.Equal([]signaling.ParticipantID{a.id}, members.Members)

	// When b joins
	b.send(signaling.TypeJoinRoom, signaling.JoinRequest{RoomID: "r1"})
	b.expect(signaling.TypeUsersInRoom, &members)
	req.Equal([]signaling.ParticipantID{a.id, b.id}, members.Members)

	// Then a is asked to offer to b
	var request signaling.OfferRequestPayload
	a.expect(signaling.TypeOfferRequest, &request)
	req.Equal(b.id, request.From)

	// And the offer reaches b untouched, stamped with a's id
	a.send(signaling.TypeOffer, signaling.SignalRequest{To: b.id, Payload: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)})
	var offer signaling.SignalPayload
	b.expect(signaling.TypeOffer, &offer)
	req.Equal(a.id, offer.From)
	req.JSONEq(`{"type":"offer","sdp":"v=0"}`, string(offer.Payload))

	b.send(signaling.TypeAnswer, signaling.SignalRequest{To: a.id, Payload: json.RawMessage(`{"type":"answer","sdp":"v=0"}`)})
	var answer signaling.SignalPayload
	a.expect(signaling.TypeAnswer, &answer)
	req.Equal(b.id, answer.From)

	// And chat from b reaches a
	b.send(signaling.TypeChatMessage, signaling.ChatRequest{Content: "hello"})
	var entry signaling.ChatEntry
	a.expect(signaling.TypeChatMessage, &entry)
	for entry.Sender == signaling.SystemSender {
		a.expect(signaling.TypeChatMessage, &entry)
	}
	req.Equal(string(b.id), entry.Sender)
	req.Equal("hello", entry.Content)

	// The listing reflects the room
	rooms := getRooms(t, ts)
	req.Equal(1, rooms.TotalRooms)
	req.Equal("r1", rooms.Rooms[0].ID)
	req.Equal(2, rooms.Rooms[0].Count)

	// When b drops its connection
	b.conn.Close()

	// Then a learns b left
	var left signaling.UserLeftPayload
	a.expect(signaling.TypeUserLeft, &left)
	req.Equal(b.id, left.Participant)
	a.expect(signaling.TypeUsersInRoom, &members)
	req.Equal([]signaling.ParticipantID{a.id}, members.Members)

	// And once a leaves, the room is gone
	a.send(signaling.TypeLeaveRoom, nil)
	req.Eventually(func() bool {
		return getRooms(t, ts).TotalRooms == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHub_Room_Full_Over_Websocket(t *testing.T) {
	req := require.New(t)
	ts := startHub(t)

	for i := 0; i < signaling.MaxMembers; i++ {
		p := dial(t, ts)
		p.send(signaling.TypeJoinRoom, signaling.JoinRequest{RoomID: "full"})
		p.expect(signaling.TypeUsersInRoom, nil)
	}

	late := dial(t, ts)
	late.send(signaling.TypeJoinRoom, signaling.JoinRequest{RoomID: "full"})
	late.expect(signaling.TypeRoomFull, nil)

	rooms := getRooms(t, ts)
	req.Equal(signaling.MaxMembers, rooms.Rooms[0].Count)
	req.NotContains(rooms.Rooms[0].Members, late.id)
}

func TestHub_Malformed_Frame_Gets_Error(t *testing.T) {
	req := require.New(t)
	ts := startHub(t)
	p := dial(t, ts)

	req.NoError(p.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_room","payload":{}}`)))

	var errPayload signaling.ErrorPayload
	p.expect(signaling.TypeError, &errPayload)
	req.Contains(errPayload.Error, "join_room")
}

func TestStatusEndpoints(t *testing.T) {
	req := require.New(t)
	ts := startHub(t)

	for _, path := range []string{"/", "/health"} {
		resp, err := http.Get(ts.URL + path)
		req.NoError(err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode, path)
		req.NotEmpty(body, path)
	}

	rooms := getRooms(t, ts)
	req.Equal(0, rooms.TotalRooms)
	req.NotNil(rooms.Rooms)
}

func TestCheckOrigin(t *testing.T) {
	req := require.New(t)
	withOrigin := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	req.True(checkOrigin("*")(withOrigin("https://evil.example")))
	req.True(checkOrigin("https://app.example")(withOrigin("https://app.example")))
	req.False(checkOrigin("https://app.example")(withOrigin("https://evil.example")))
	req.True(checkOrigin("https://app.example")(withOrigin("")))
}
