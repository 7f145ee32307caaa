package server

import "time"

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// API settings
	PathPrefix string

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Authentication settings
	AuthEnabled bool
	AuthHeader  string
	APIKey      string

	// Performance settings
	RateLimit int           // Requests per minute per IP (0 to disable)
	CacheTTL  time.Duration // Lifetime of memoized responses within one snapshot

	// WaitTimeout bounds how long a request waits for a rebuild before getting a 503.
	WaitTimeout time.Duration

	// WarmUp builds the first snapshot in the background at startup.
	WarmUp bool

	// HTTP timeouts. WriteTimeout 0 disables the deadline so event streams stay open.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		PathPrefix:     "/api",
		CORSEnabled:    false,
		CORSOrigins:    []string{},
		AuthEnabled:    false,
		AuthHeader:     "X-API-Key",
		RateLimit:      0,
		CacheTTL:       5 * time.Minute,
		WaitTimeout:    2 * time.Minute,
		WarmUp:         false,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   0,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}
