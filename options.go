package aliasmap

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap/internal/metrics"
	"github.com/agentstation/aliasmap/internal/transport"
	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
	"github.com/agentstation/aliasmap/pkg/logging"
)

// TokenSource yields bearer tokens for the management API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ProviderClient is the remote side of a catalog build.
type ProviderClient interface {
	ListProviders(ctx context.Context) ([]string, error)
	FetchAliases(ctx context.Context, namespace string) ([]catalogs.Alias, error)
}

// options holds the configuration of a Client.
type options struct {
	subscriptionID string
	endpoint       string
	apiVersion     string
	tokenSource    TokenSource
	httpClient     *http.Client
	providerClient ProviderClient

	ttl               time.Duration
	rebuildTimeout    time.Duration
	workers           int
	requestsPerMinute int
	burst             int
	taskTimeout       time.Duration
	maxAttempts       int
	baseDelay         time.Duration
	maxDelay          time.Duration

	autoRefreshEnabled  bool
	autoRefreshInterval time.Duration

	logger  *zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option is a function that configures a Client.
type Option func(*options) error

func defaults() *options {
	return &options{
		endpoint:            constants.DefaultEndpoint,
		apiVersion:          constants.DefaultAPIVersion,
		ttl:                 constants.DefaultCacheTTL,
		rebuildTimeout:      constants.RebuildTimeout,
		workers:             constants.DefaultWorkers,
		requestsPerMinute:   constants.DefaultRequestsPerMinute,
		burst:               constants.DefaultBurst,
		taskTimeout:         constants.DefaultHTTPTimeout,
		maxAttempts:         constants.MaxRetries,
		baseDelay:           constants.RetryBackoff,
		maxDelay:            constants.MaxRetryBackoff,
		autoRefreshInterval: constants.DefaultCacheTTL,
		logger:              logging.Default(),
		now:                 time.Now,
	}
}

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.providerClient == nil && strings.TrimSpace(o.subscriptionID) == "" {
		return nil, &errors.ConfigError{
			Component: "aliasmap",
			Message:   "subscription id is required",
		}
	}
	return o, nil
}

func (o *options) maskedSubscription() string {
	return logging.MaskID(o.subscriptionID)
}

func positive(field string, v int64) error {
	if v <= 0 {
		return errors.NewValidationError(field, v, "must be positive")
	}
	return nil
}

// WithSubscriptionID sets the subscription whose providers are catalogued.
func WithSubscriptionID(id string) Option {
	return func(o *options) error {
		o.subscriptionID = strings.TrimSpace(id)
		return nil
	}
}

// WithEndpoint overrides the management endpoint, e.g. for sovereign clouds.
func WithEndpoint(endpoint string) Option {
	return func(o *options) error {
		if endpoint != "" {
			o.endpoint = endpoint
		}
		return nil
	}
}

// WithAPIVersion overrides the providers API version.
func WithAPIVersion(version string) Option {
	return func(o *options) error {
		if version != "" {
			o.apiVersion = version
		}
		return nil
	}
}

// WithTokenSource sets where bearer tokens come from. The default runs the Azure CLI.
func WithTokenSource(ts TokenSource) Option {
	return func(o *options) error {
		o.tokenSource = ts
		return nil
	}
}

// WithAccessToken uses a fixed bearer token.
func WithAccessToken(token string) Option {
	return func(o *options) error {
		if token == "" {
			return nil
		}
		o.tokenSource = transport.StaticToken(token)
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for management API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		o.httpClient = hc
		return nil
	}
}

// WithProviderClient replaces the management API client entirely.
func WithProviderClient(pc ProviderClient) Option {
	return func(o *options) error {
		o.providerClient = pc
		return nil
	}
}

// WithTTL sets how long a snapshot stays fresh.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) error {
		if err := positive("ttl", int64(ttl)); err != nil {
			return err
		}
		o.ttl = ttl
		return nil
	}
}

// WithRebuildTimeout bounds a whole rebuild.
func WithRebuildTimeout(d time.Duration) Option {
	return func(o *options) error {
		if err := positive("rebuild_timeout", int64(d)); err != nil {
			return err
		}
		o.rebuildTimeout = d
		return nil
	}
}

// WithWorkers caps the number of concurrent provider fetches.
func WithWorkers(n int) Option {
	return func(o *options) error {
		if err := positive("workers", int64(n)); err != nil {
			return err
		}
		o.workers = n
		return nil
	}
}

// WithRequestsPerMinute sets the outbound request budget and its burst.
func WithRequestsPerMinute(perMinute, burst int) Option {
	return func(o *options) error {
		if err := positive("requests_per_minute", int64(perMinute)); err != nil {
			return err
		}
		o.requestsPerMinute = perMinute
		if burst > 0 {
			o.burst = burst
		}
		return nil
	}
}

// WithTaskTimeout bounds each remote call attempt.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *options) error {
		if err := positive("task_timeout", int64(d)); err != nil {
			return err
		}
		o.taskTimeout = d
		return nil
	}
}

// WithRetry configures the attempt cap and the exponential backoff bounds.
func WithRetry(maxAttempts int, base, maxDelay time.Duration) Option {
	return func(o *options) error {
		if err := positive("max_attempts", int64(maxAttempts)); err != nil {
			return err
		}
		if err := positive("base_delay", int64(base)); err != nil {
			return err
		}
		if maxDelay < base {
			return errors.NewValidationError("max_delay", maxDelay, "must not be below base_delay")
		}
		o.maxAttempts = maxAttempts
		o.baseDelay = base
		o.maxDelay = maxDelay
		return nil
	}
}

// WithAutoRefresh configures whether the catalog is rebuilt in the background.
func WithAutoRefresh(enabled bool) Option {
	return func(o *options) error {
		o.autoRefreshEnabled = enabled
		return nil
	}
}

// WithAutoRefreshInterval configures how often the background refresh runs.
func WithAutoRefreshInterval(interval time.Duration) Option {
	return func(o *options) error {
		if err := positive("auto_refresh_interval", int64(interval)); err != nil {
			return err
		}
		o.autoRefreshInterval = interval
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithMetrics records build and cache measurements on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithClock sets the time source for snapshot stamps and TTL checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now != nil {
			o.now = now
		}
		return nil
	}
}
