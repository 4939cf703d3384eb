package server

import (
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server (CLI uses
	// the orchestrator in-process and does not require the network).
	ListenAddr string

	// AllowedOrigin is sent as Access-Control-Allow-Origin and checked on
	// websocket upgrades. "*" allows any origin.
	AllowedOrigin string

	ReadTimeout time.Duration

	Logger logging.Logger
}

// DefaultConfig listens on :8080 and allows any origin.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":8080",
		AllowedOrigin: "*",
		ReadTimeout:   15 * time.Second,
	}
}
