package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// ServerConfig holds the signaling hub settings.
type ServerConfig struct {
	Addr          string `env:"ADDR,default=:8080"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN,default=*"`

	ReadBufferSize  int `env:"READ_BUFFER_SIZE,default=65536"`
	WriteBufferSize int `env:"WRITE_BUFFER_SIZE,default=65536"`
	SendBufferSize  int `env:"SEND_BUFFER_SIZE,default=256"`
	MaxMessageSize  int `env:"MAX_MESSAGE_SIZE,default=65536"`

	PongWait        time.Duration `env:"PONG_WAIT,default=60s"`
	WriteWait       time.Duration `env:"WRITE_WAIT,default=10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`

	MaxRoomIDLength  int `env:"MAX_ROOM_ID_LENGTH,default=64"`
	MaxContentLength int `env:"MAX_CONTENT_LENGTH,default=2000"`
}

// LoadServer reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func LoadServer() (*ServerConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return ParseServer(es)
}

// ParseServer decodes and validates a server config from es.
func ParseServer(es env.EnvSet) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ServerConfig) validate() error {
	positive := []struct {
		name  string
		value int64
	}{
		{"READ_BUFFER_SIZE", int64(c.ReadBufferSize)},
		{"WRITE_BUFFER_SIZE", int64(c.WriteBufferSize)},
		{"SEND_BUFFER_SIZE", int64(c.SendBufferSize)},
		{"MAX_MESSAGE_SIZE", int64(c.MaxMessageSize)},
		{"PONG_WAIT", int64(c.PongWait)},
		{"WRITE_WAIT", int64(c.WriteWait)},
		{"SHUTDOWN_TIMEOUT", int64(c.ShutdownTimeout)},
		{"MAX_ROOM_ID_LENGTH", int64(c.MaxRoomIDLength)},
		{"MAX_CONTENT_LENGTH", int64(c.MaxContentLength)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.Addr == "" {
		return errors.New("ADDR must not be empty")
	}
	return nil
}
