// Package constants provides shared constants used throughout the aliasmap codebase.
// This includes the management API defaults, retry and concurrency limits,
// cache lifetimes, and file permissions.
package constants

import "time"

// Management API constants
const (
	// DefaultEndpoint is the public cloud management endpoint
	DefaultEndpoint = "https://management.azure.com"

	// DefaultAPIVersion is the API version used for provider calls
	DefaultAPIVersion = "2021-04-01"

	// TokenResource is the resource a bearer token must be issued for
	TokenResource = "https://management.azure.com/"

	// AliasExpand is the $expand value that includes aliases in provider responses
	AliasExpand = "resourceTypes/aliases"
)

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the per-attempt timeout for management API requests
	DefaultHTTPTimeout = 30 * time.Second

	// RebuildTimeout bounds a whole catalog rebuild
	RebuildTimeout = 15 * time.Minute

	// DefaultCacheTTL is how long a catalog snapshot stays fresh
	DefaultCacheTTL = 1 * time.Hour

	// TokenRefreshSkew refreshes CLI tokens this long before they expire
	TokenRefreshSkew = 5 * time.Minute

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second

	// ShutdownTimeout bounds graceful HTTP shutdown
	ShutdownTimeout = 10 * time.Second

	// StreamKeepAlive is how often an idle event stream sends a comment line
	StreamKeepAlive = 30 * time.Second
)

// Limit constants define retry and concurrency limits
const (
	// MaxRetries is the maximum number of attempts for a remote call
	MaxRetries = 3

	// RetryJitter is the proportional jitter applied to backoff delays
	RetryJitter = 0.5

	// DefaultWorkers is the default number of concurrent provider fetches
	DefaultWorkers = 25

	// DefaultRequestsPerMinute is the outbound request budget for the management API
	DefaultRequestsPerMinute = 200

	// DefaultBurst is the outbound token bucket burst
	DefaultBurst = 25

	// ProgressInterval is how many completed providers pass between progress logs
	ProgressInterval = 100

	// FailureSampleSize is how many failed providers are listed in a rebuild summary
	FailureSampleSize = 5

	// TopNamespaces is how many namespaces statistics rank by alias count
	TopNamespaces = 10

	// EventQueueSize is how many rebuild events may wait for delivery
	EventQueueSize = 256

	// StreamBufferSize is how many events a single streaming client may lag behind
	StreamBufferSize = 64
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Path constants
const (
	// DefaultConfigFile is the config file name looked up in the home directory
	DefaultConfigFile = ".aliasmap.yaml"
)
