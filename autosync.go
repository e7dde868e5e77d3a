package jamfsync

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
)

// AutoSyncer provides controls for periodic passes.
type AutoSyncer interface {
	// AutoSyncOn starts periodic passes at the configured interval.
	AutoSyncOn() error

	// AutoSyncOff stops periodic passes and waits for a running pass to end.
	AutoSyncOff() error
}

// AutoSyncOn implements AutoSyncer.
func (c *client) AutoSyncOn() error {
	interval := c.options.autoSyncInterval
	if interval <= 0 {
		return &errors.ValidationError{
			Field:   "autoSyncInterval",
			Value:   interval,
			Message: "sync interval must be positive",
		}
	}

	// Stop any existing loop first
	if err := c.AutoSyncOff(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	c.syncTicker = time.NewTicker(interval)
	ctx, cancel := context.WithCancel(context.Background())
	c.syncCancel = cancel

	go c.loop(ctx, c.syncTicker, c.stopCh, c.done)
	logging.Info().Dur("interval", interval).Msg("Auto-sync started")
	return nil
}

func (c *client) loop(parentCtx context.Context, ticker *time.Ticker, stopCh, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ticker.C:
			passCtx, cancel := context.WithTimeout(parentCtx, c.options.passTimeout)
			_, err := c.Sync(passCtx, c.options.autoSyncOptions...)
			cancel()

			if err != nil {
				if parentCtx.Err() != nil {
					return
				}
				switch {
				case errors.IsSessionInUse(err):
					logging.Info().Msg("Skipping scheduled pass, another pass is running")
				case stderrors.Is(err, context.DeadlineExceeded):
					logging.Warn().Dur("timeout", c.options.passTimeout).Msg("Scheduled pass timed out")
				default:
					logging.Error().Err(err).Msg("Scheduled pass failed")
				}
			}
		case <-parentCtx.Done():
			return
		case <-stopCh:
			return
		}
	}
}

// AutoSyncOff implements AutoSyncer.
func (c *client) AutoSyncOff() error {
	c.mu.Lock()
	if c.syncTicker != nil {
		c.syncTicker.Stop()
		c.syncTicker = nil
	}
	if c.syncCancel != nil {
		c.syncCancel()
		c.syncCancel = nil
	}
	select {
	case <-c.stopCh:
		// Already closed
	default:
		close(c.stopCh)
	}
	done := c.done
	c.done = nil
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}
