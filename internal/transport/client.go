// Package transport issues authenticated, rate limited GET requests to the
// management API and turns failed responses into classified errors.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client provides HTTP client functionality with authentication.
type Client struct {
	http    *http.Client
	tokens  TokenSource
	auth    Authenticator
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLimiter sets the outbound request budget. A nil limiter disables it.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// NewLimiter returns a token bucket allowing perMinute requests per minute.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)
}

// New creates a new transport client that authenticates with tokens.
func New(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		tokens:  tokens,
		auth:    &BearerAuth{},
		limiter: NewLimiter(constants.DefaultRequestsPerMinute, constants.DefaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type admissionKey struct{}

// admission marks a context whose first request already spent its token.
type admission struct {
	used atomic.Bool
}

// Admit waits for the outbound budget under ctx and returns a context whose
// first request skips the limiter. Callers queue for the budget with it
// before they start a per-attempt deadline.
func (c *Client) Admit(ctx context.Context) (context.Context, error) {
	if c.limiter == nil {
		return ctx, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return ctx, contextError(ctx, "", err)
	}
	return context.WithValue(ctx, admissionKey{}, &admission{}), nil
}

func (c *Client) wait(ctx context.Context, provider string) error {
	if c.limiter == nil {
		return nil
	}
	if a, ok := ctx.Value(admissionKey{}).(*admission); ok && a.used.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return contextError(ctx, provider, err)
	}
	return nil
}

// Get performs an authenticated GET. Any error it returns is classified:
// authentication failures, cancellation, timeouts or a StatusCode 0 APIError
// for network failures. Non-2xx responses are returned as-is for
// DecodeResponse to classify.
func (c *Client) Get(ctx context.Context, url, provider string) (*http.Response, error) {
	if err := c.wait(ctx, provider); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError(ctx, provider, ctx.Err())
		}
		if errors.IsUnauthorized(err) {
			return nil, err
		}
		return nil, errors.NewAuthenticationError(provider, "bearer", "token acquisition failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "GET "+url, err)
	}
	c.auth.Apply(req, token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError(ctx, provider, err)
		}
		return nil, &errors.APIError{
			Provider: provider,
			Endpoint: url,
			Message:  "request failed",
			Err:      err,
		}
	}
	return resp, nil
}

// contextError maps a context ending into the error taxonomy. Only an
// explicit cancellation is final; a passed deadline, or a limiter wait that
// would outlast one, is a retryable timeout.
func contextError(ctx context.Context, provider string, err error) error {
	if ctx.Err() == context.Canceled {
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	op := "request"
	if provider != "" {
		op = "request to " + provider
	}
	return errors.NewTimeoutError(op, "", err.Error())
}
