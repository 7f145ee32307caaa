// Package builder assembles a catalog snapshot from the providers API:
// enumerate providers, fetch every provider's aliases through a bounded
// pool with retries, then merge the results once all tasks have finished.
package builder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap/internal/backoff"
	"github.com/agentstation/aliasmap/internal/pool"
	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
	"github.com/agentstation/aliasmap/pkg/logging"
)

// ProviderClient is the remote API the builder reads from.
type ProviderClient interface {
	ListProviders(ctx context.Context) ([]string, error)
	FetchAliases(ctx context.Context, namespace string) ([]catalogs.Alias, error)
}

// AdmitFunc waits for permission to start an attempt and returns the
// context the attempt runs under.
type AdmitFunc func(ctx context.Context) (context.Context, error)

// Recorder receives build measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	FetchAttempt(outcome string)
	ProviderFailed(namespace string)
	BuildCompleted(d time.Duration, snap *catalogs.Snapshot)
}

type nopRecorder struct{}

func (nopRecorder) FetchAttempt(string)                             {}
func (nopRecorder) ProviderFailed(string)                           {}
func (nopRecorder) BuildCompleted(time.Duration, *catalogs.Snapshot) {}

// Builder produces snapshots. It holds no catalog state of its own, so one
// Builder may serve any number of sequential or concurrent builds.
type Builder struct {
	client         ProviderClient
	policy         backoff.Policy
	workers        int
	attemptTimeout time.Duration
	logger         *zerolog.Logger
	metrics        Recorder
	now            func() time.Time
	sleep          SleepFunc
	admit          AdmitFunc
}

// Option configures a Builder.
type Option func(*Builder)

// WithPolicy sets the retry policy.
func WithPolicy(p backoff.Policy) Option {
	return func(b *Builder) {
		b.policy = p
	}
}

// WithWorkers caps concurrent provider fetches.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithAttemptTimeout bounds every single remote call. Zero disables it.
func WithAttemptTimeout(d time.Duration) Option {
	return func(b *Builder) {
		b.attemptTimeout = d
	}
}

// WithAdmission queues every attempt through admit before its deadline
// starts, so time spent waiting for the request budget is not charged to
// the attempt.
func WithAdmission(admit AdmitFunc) Option {
	return func(b *Builder) {
		b.admit = admit
	}
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder sets where build measurements go.
func WithRecorder(r Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.metrics = r
		}
	}
}

// WithClock sets the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithSleep replaces the backoff wait, typically with an instant fake in tests.
func WithSleep(s SleepFunc) Option {
	return func(b *Builder) {
		if s != nil {
			b.sleep = s
		}
	}
}

// New creates a Builder reading from client.
func New(client ProviderClient, opts ...Option) *Builder {
	b := &Builder{
		client:         client,
		policy:         backoff.Default(),
		workers:        constants.DefaultWorkers,
		attemptTimeout: constants.DefaultHTTPTimeout,
		logger:         logging.Default(),
		metrics:        nopRecorder{},
		now:            time.Now,
		sleep:          Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles a new snapshot. Only a failure to enumerate providers
// fails the build; providers whose fetch fails are left out and reported.
func (b *Builder) Build(ctx context.Context) (*catalogs.Snapshot, error) {
	start := b.now()
	b.logger.Info().Int("workers", b.workers).Msg("Building alias catalog")

	var namespaces []string
	list := &FetchTask{}
	err := b.run(ctx, list, func(ctx context.Context) error {
		ns, err := b.client.ListProviders(ctx)
		namespaces = ns
		return err
	})
	if err != nil {
		b.logger.Error().Err(err).Int("attempts", list.Attempt).Msg("Listing providers failed")
		return nil, &errors.ProviderListError{Attempts: list.Attempt, Err: err}
	}
	b.logger.Info().Int("providers", len(namespaces)).Msg("Fetching aliases")

	results := pool.Run(ctx, namespaces, pool.Options{
		Workers: b.workers,
		OnDone:  b.progress,
	}, b.fetch)

	if ctx.Err() != nil {
		return nil, errors.Join(errors.ErrCanceled, ctx.Err())
	}

	aliases, report := b.merge(results)
	snap := catalogs.NewSnapshot(aliases, b.now(), report)

	elapsed := b.now().Sub(start)
	b.metrics.BuildCompleted(elapsed, snap)
	b.logger.Info().
		Int("aliases", snap.Len()).
		Int("providers", report.Total).
		Int("failed", len(report.Failed)).
		Dur("duration", elapsed).
		Msg("Alias catalog built")

	return snap, nil
}

// fetch runs one provider's task to completion.
func (b *Builder) fetch(ctx context.Context, namespace string) ([]catalogs.Alias, error) {
	task := &FetchTask{Provider: namespace}
	var aliases []catalogs.Alias
	err := b.run(ctx, task, func(ctx context.Context) error {
		a, err := b.client.FetchAliases(logging.WithProvider(ctx, namespace), namespace)
		aliases = a
		return err
	})
	if err != nil {
		return nil, errors.NewFetchError(namespace, task.Attempt, err)
	}
	return aliases, nil
}

// merge concatenates successful results in provider order. It runs once,
// after every task has finished.
func (b *Builder) merge(results []pool.Result[[]catalogs.Alias]) ([]catalogs.Alias, catalogs.ProviderReport) {
	total := 0
	for _, r := range results {
		total += len(r.Value)
	}

	aliases := make([]catalogs.Alias, 0, total)
	report := catalogs.ProviderReport{Total: len(results), Failed: []string{}}
	for _, r := range results {
		if r.Err != nil {
			report.Failed = append(report.Failed, r.Task)
			b.metrics.ProviderFailed(r.Task)
			b.logger.Warn().Err(r.Err).Str("namespace", r.Task).Msg("Provider skipped")
			continue
		}
		report.Succeeded++
		aliases = append(aliases, r.Value...)
	}

	if n := len(report.Failed); n > 0 {
		sample := report.Failed[:min(n, constants.FailureSampleSize)]
		b.logger.Warn().
			Int("failed", n).
			Strs("sample", sample).
			Msg("Some providers could not be fetched")
	}
	return aliases, report
}

func (b *Builder) progress(done, total int) {
	if done%constants.ProgressInterval == 0 || done == total {
		b.logger.Info().Int("done", done).Int("total", total).Msg("Fetch progress")
	}
}
