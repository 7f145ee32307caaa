package aliasmap

import (
	"context"
	"time"

	"github.com/agentstation/aliasmap/pkg/errors"
)

// Compile-time interface check to ensure proper implementation.
var _ AutoRefresher = (*client)(nil)

// AutoRefresher provides controls for background catalog rebuilds.
type AutoRefresher interface {
	// AutoRefreshOn starts rebuilding the catalog on a fixed interval.
	AutoRefreshOn() error
	// AutoRefreshOff stops background rebuilds.
	AutoRefreshOff() error
}

// AutoRefreshOn starts background rebuilds. Calling it again restarts the loop.
func (c *client) AutoRefreshOn() error {
	interval := c.options.autoRefreshInterval
	if interval <= 0 {
		return &errors.ValidationError{
			Field:   "auto_refresh_interval",
			Value:   interval,
			Message: "refresh interval must be positive",
		}
	}

	// Stop any existing loop to prevent resource leaks
	if err := c.AutoRefreshOff(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(interval)

	c.mu.Lock()
	c.refreshTicker = ticker
	c.refreshCancel = cancel
	c.mu.Unlock()

	go c.refreshLoop(ctx, ticker)

	c.logger.Info().Dur("interval", interval).Msg("Auto-refresh enabled")
	return nil
}

func (c *client) refreshLoop(ctx context.Context, ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
			if _, err := c.cache.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				// The stale snapshot keeps serving; the next tick retries.
				c.logger.Error().Err(err).Msg("Auto-refresh failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// AutoRefreshOff stops background rebuilds. It is safe to call repeatedly.
func (c *client) AutoRefreshOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshTicker != nil {
		c.refreshTicker.Stop()
		c.refreshTicker = nil
	}
	if c.refreshCancel != nil {
		c.refreshCancel()
		c.refreshCancel = nil
	}
	return nil
}
