package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Default configuration values
const (
	DefaultServerURL = "ws://localhost:8080/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
)

// Config holds the participant CLI configuration
type Config struct {
	// ServerURL is the hub's websocket endpoint
	ServerURL string

	// HTTPBaseURL is derived from ServerURL and serves /rooms
	HTTPBaseURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	serverURL := pick(opts.ServerURL, "SERVER_URL", DefaultServerURL)

	base, err := httpBase(serverURL)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerURL:   serverURL,
		HTTPBaseURL: base,
		STUNServer:  pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:  pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:    pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:    pick(opts.TURNPass, "TURN_PASSWORD", ""),
		ForceRelay:  opts.ForceRelay,
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

func pick(flag, key, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// httpBase turns ws://host/ws into http://host.
func httpBase(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid server URL %q: scheme must be ws or wss", serverURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", serverURL)
	}

	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/ws")
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

// RoomsURL is the read-only room listing endpoint.
func (c *Config) RoomsURL() string {
	return c.HTTPBaseURL + "/rooms"
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
