// Package backoff decides whether and when a failed remote call is retried.
package backoff

import (
	"math"
	"time"

	cbackoff "github.com/cenkalti/backoff/v5"

	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// Policy is an exponential backoff with optional proportional jitter.
// The zero value is not useful; start from Default.
type Policy struct {
	// Base is the delay before the second attempt.
	Base time.Duration
	// Max caps every delay, including server supplied Retry-After hints.
	Max time.Duration
	// MaxAttempts is the total number of attempts, the first included.
	MaxAttempts int
	// Jitter spreads each delay within ±Jitter of its nominal value (0..1).
	Jitter float64
}

// Decision is the outcome of Next.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Default returns the policy used for management API calls.
func Default() Policy {
	return Policy{
		Base:        constants.RetryBackoff,
		Max:         constants.MaxRetryBackoff,
		MaxAttempts: constants.MaxRetries,
		Jitter:      constants.RetryJitter,
	}
}

// Schedule returns a fresh exponential schedule doubling from Base up to Max,
// randomized by jitter.
func (p Policy) Schedule(jitter float64) *cbackoff.ExponentialBackOff {
	b := cbackoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = 2
	b.RandomizationFactor = jitter
	b.MaxInterval = p.Max
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.Reset()
	return b
}

// Delay returns the nominal wait after failed attempt n (n starts at 1):
// Base * 2^(n-1), capped at Max.
func (p Policy) Delay(n int) time.Duration {
	return p.nth(n, 0)
}

// Jittered returns Delay(n) spread by ±Jitter, capped at Max.
func (p Policy) Jittered(n int) time.Duration {
	d := p.nth(n, p.Jitter)
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

func (p Policy) nth(n int, jitter float64) time.Duration {
	if n < 1 {
		n = 1
	}
	b := p.Schedule(jitter)
	var d time.Duration
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Next classifies err after attempt and says whether to try again.
// Fatal errors never retry. Transient errors retry while attempt is below
// MaxAttempts. A Retry-After hint longer than the computed delay wins.
func (p Policy) Next(attempt int, err error) Decision {
	if err == nil || !errors.IsRetryable(err) || attempt >= p.MaxAttempts {
		return Decision{}
	}

	delay := p.Jittered(attempt)
	if hint := errors.RetryAfter(err); hint > delay {
		delay = hint
		if p.Max > 0 && delay > p.Max {
			delay = p.Max
		}
	}
	return Decision{Retry: true, Delay: delay}
}
