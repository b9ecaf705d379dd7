package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/signaling"
)

// Options configures the websocket endpoint.
type Options struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	AllowedOrigin   string
	Pump            signaling.PumpSettings
}

// OptionsFromConfig maps the server config onto handler options.
func OptionsFromConfig(cfg *config.ServerConfig) Options {
	return Options{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		SendBufferSize:  cfg.SendBufferSize,
		AllowedOrigin:   cfg.AllowedOrigin,
		Pump: signaling.PumpSettings{
			WriteWait:      cfg.WriteWait,
			PongWait:       cfg.PongWait,
			MaxMessageSize: int64(cfg.MaxMessageSize),
		},
	}
}

// NewRouter registers every endpoint of the hub.
func NewRouter(hub *signaling.Hub, opts Options, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", statusHandler)
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("GET /rooms", RoomsHandler(hub, log))
	mux.HandleFunc("/ws", ServeWs(hub, opts, log))
	return mux
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Meshroom signaling server is running"))
}

// Health Check endpoint
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// RoomsResponse is the body of GET /rooms.
type RoomsResponse struct {
	Rooms      []signaling.RoomInfo `json:"rooms"`
	TotalRooms int                  `json:"totalRooms"`
}

// RoomsHandler serves the read-only room listing.
func RoomsHandler(hub *signaling.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		rooms, err := hub.Rooms(ctx)
		if err != nil {
			log.Warn("Room listing failed", "error", err)
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		if rooms == nil {
			rooms = []signaling.RoomInfo{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(RoomsResponse{Rooms: rooms, TotalRooms: len(rooms)}); err != nil {
			log.Warn("Writing room listing failed", "error", err)
		}
	}
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
func ServeWs(hub *signaling.Hub, opts Options, log *slog.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     checkOrigin(opts.AllowedOrigin),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("Failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := signaling.NewClient(hub, conn, opts.Pump, opts.SendBufferSize)
		if !hub.Attach(client) {
			conn.Close()
			return
		}

		// The pumps own the connection from here on.
		go client.WritePump()
		go client.ReadPump()
	}
}

// checkOrigin allows every origin for "*" and an exact match otherwise.
// Requests without an Origin header are not from a browser and pass.
func checkOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}
