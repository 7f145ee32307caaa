// Package aliasmap provides the main entry point for the policy alias catalog.
// It enumerates the resource providers of a subscription, fetches their
// aliases under a bounded worker pool, and serves one consistent in-memory
// snapshot from a TTL cache that rebuilds at most once at a time.
//
// Example usage:
//
//	am, err := aliasmap.New(
//	    aliasmap.WithSubscriptionID(os.Getenv("SUBSCRIPTION_ID")),
//	    aliasmap.WithAccessToken(os.Getenv("AZURE_ACCESS_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer am.AutoRefreshOff()
//
//	// Search aliases (builds the catalog on first use)
//	aliases, err := am.Query(ctx, catalogs.Query{Text: "storage sku"}, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, a := range aliases {
//	    fmt.Println(a.AliasName)
//	}
package aliasmap

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap/internal/arm"
	"github.com/agentstation/aliasmap/internal/backoff"
	"github.com/agentstation/aliasmap/internal/builder"
	"github.com/agentstation/aliasmap/internal/cache"
	"github.com/agentstation/aliasmap/internal/transport"
	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Stats describes the cache state without touching the remote API.
type Stats = cache.Stats

// Catalog provides read access to the current snapshot.
type Catalog interface {
	// Snapshot returns the current snapshot, rebuilding it when stale or when force is set.
	Snapshot(ctx context.Context, force bool) (*catalogs.Snapshot, error)
	// Query filters the snapshot by free text and exact namespace.
	Query(ctx context.Context, q catalogs.Query, force bool) ([]catalogs.Alias, error)
	// Namespaces returns the sorted distinct namespaces.
	Namespaces(ctx context.Context) ([]string, error)
	// NamespaceSummaries returns namespaces with alias counts, largest first.
	NamespaceSummaries(ctx context.Context) ([]catalogs.NamespaceSummary, error)
	// Stats reports on the cache without triggering a rebuild.
	Stats() Stats
	// Fresh reports whether snap is still within the TTL.
	Fresh(snap *catalogs.Snapshot) bool
	// Ready reports whether a snapshot has ever been built.
	Ready() bool
	// SubscriptionID returns the subscription the catalog is built from.
	SubscriptionID() string
}

// Refresher rebuilds the catalog on demand.
type Refresher interface {
	// Refresh forces a rebuild and returns the new snapshot.
	Refresh(ctx context.Context) (*catalogs.Snapshot, error)
}

// Client manages the alias catalog with background refresh and event hooks.
type Client interface {
	Catalog
	Refresher
	AutoRefresher
	Hooks
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options
	logger  *zerolog.Logger
	cache   *cache.Manager
	hooks   *hooks

	mu            sync.Mutex
	refreshTicker *time.Ticker
	refreshCancel context.CancelFunc
}

// New creates a new Client with the given options.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	providers := o.providerClient
	if providers == nil {
		if providers, err = o.newARMClient(); err != nil {
			return nil, err
		}
	}

	policy := backoff.Default()
	policy.MaxAttempts = o.maxAttempts
	policy.Base = o.baseDelay
	policy.Max = o.maxDelay

	bopts := []builder.Option{
		builder.WithPolicy(policy),
		builder.WithWorkers(o.workers),
		builder.WithAttemptTimeout(o.taskTimeout),
		builder.WithLogger(o.logger),
		builder.WithRecorder(o.metrics),
		builder.WithClock(o.now),
	}
	if a, ok := providers.(admitter); ok {
		bopts = append(bopts, builder.WithAdmission(a.Admit))
	}
	b := builder.New(providers, bopts...)

	c := &client{
		options: o,
		logger:  o.logger,
		hooks:   newHooks(),
	}
	c.cache = cache.New(b,
		cache.WithTTL(o.ttl),
		cache.WithRebuildTimeout(o.rebuildTimeout),
		cache.WithClock(o.now),
		cache.WithLogger(o.logger),
		cache.WithRecorder(o.metrics),
		cache.WithHooks(c.hooks),
	)

	if o.autoRefreshEnabled {
		if err := c.AutoRefreshOn(); err != nil {
			return nil, errors.WrapResource("start", "auto-refresh", "", err)
		}
	}

	c.logger.Debug().
		Str("subscription_id", o.maskedSubscription()).
		Dur("ttl", o.ttl).
		Int("workers", o.workers).
		Msg("Alias catalog client created")

	return c, nil
}

// admitter is implemented by provider clients that enforce a request budget.
type admitter interface {
	Admit(ctx context.Context) (context.Context, error)
}

// newARMClient wires the transport, rate limiter and provider client.
func (o *options) newARMClient() (*arm.Client, error) {
	tokens := o.tokenSource
	if tokens == nil {
		tokens = transport.NewCLITokenSource()
	}

	topts := []transport.Option{
		transport.WithLimiter(transport.NewLimiter(o.requestsPerMinute, o.burst)),
	}
	if o.httpClient != nil {
		topts = append(topts, transport.WithHTTPClient(o.httpClient))
	}

	return arm.New(arm.Config{
		Endpoint:       o.endpoint,
		SubscriptionID: o.subscriptionID,
		APIVersion:     o.apiVersion,
	}, transport.New(tokens, topts...))
}

// Snapshot returns the current snapshot, rebuilding when needed.
func (c *client) Snapshot(ctx context.Context, force bool) (*catalogs.Snapshot, error) {
	return c.cache.Get(ctx, force)
}

// Query filters the current snapshot.
func (c *client) Query(ctx context.Context, q catalogs.Query, force bool) ([]catalogs.Alias, error) {
	snap, err := c.cache.Get(ctx, force)
	if err != nil {
		return nil, err
	}
	return snap.Query(q), nil
}

// Namespaces returns the sorted distinct namespaces of the current snapshot.
func (c *client) Namespaces(ctx context.Context) ([]string, error) {
	snap, err := c.cache.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	return snap.Namespaces(), nil
}

// NamespaceSummaries returns per-namespace alias counts of the current snapshot.
func (c *client) NamespaceSummaries(ctx context.Context) ([]catalogs.NamespaceSummary, error) {
	snap, err := c.cache.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	return snap.NamespaceSummaries(), nil
}

// Refresh forces a rebuild.
func (c *client) Refresh(ctx context.Context) (*catalogs.Snapshot, error) {
	return c.cache.Refresh(ctx)
}

// Stats reports on the cache.
func (c *client) Stats() Stats {
	return c.cache.Stats()
}

// Fresh reports whether snap is still within the TTL.
func (c *client) Fresh(snap *catalogs.Snapshot) bool {
	return c.cache.Fresh(snap)
}

// Ready reports whether a snapshot exists.
func (c *client) Ready() bool {
	return c.cache.Current() != nil
}

// SubscriptionID returns the configured subscription.
func (c *client) SubscriptionID() string {
	return c.options.subscriptionID
}
