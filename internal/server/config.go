package server

import "time"

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// Realtime settings
	WSPath                string // websocket endpoint, SSE is served at WSPath+"/stream"
	MaxConnectionsPerRoom int    // 0 for unbounded
	HubQueueSize          int

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Authentication settings
	AuthEnabled bool
	AuthHeader  string

	// Performance settings
	RateLimit int // Requests per minute per IP (0 to disable)
	CacheTTL  time.Duration

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:                  "localhost",
		Port:                  3000,
		WSPath:                "/api/socket",
		MaxConnectionsPerRoom: 0,
		HubQueueSize:          1024,
		CORSEnabled:           false,
		CORSOrigins:           []string{},
		AuthEnabled:           false,
		AuthHeader:            "X-API-Key",
		RateLimit:             100,
		CacheTTL:              30 * time.Second,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           120 * time.Second,
	}
}
