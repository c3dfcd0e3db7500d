// Package stream implements the reconnecting consumer for server-pushed
// banner records.
package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/model"
	"github.com/user/netlens/internal/sink"
	"github.com/user/netlens/internal/util"
)

// State is the consumer's position in its lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateRecovering
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateRecovering:
		return "recovering"
	default:
		return "stopped"
	}
}

// Channel is one open push subscription. A channel cannot be restarted;
// the consumer reopens through its factory instead.
type Channel interface {
	Next() (model.Banner, error)
	Close() error
}

// Factory (re)opens the underlying push channel.
type Factory func(ctx context.Context) (Channel, error)

const (
	defaultBackoff    = time.Second
	defaultMaxReopens = 5
)

// Consumer presents an unbounded iteration over pushed banners, surviving
// transport failures by reopening the channel from scratch. Protocol
// errors from the service are fatal and surface to the caller; a sink
// write failure is fatal as well, because silently losing persistence
// while claiming to store data is unacceptable.
type Consumer struct {
	// Factory opens the push channel. Required.
	Factory Factory

	// Limit caps the total records processed; zero or negative means
	// unbounded. The limit is checked strictly after a record has been
	// persisted and handled, so reaching it never drops a record.
	Limit int

	// Rotator, when set, persists every record with day rotation.
	Rotator *sink.Rotator

	// Handle is invoked per accepted record unless nil.
	Handle func(model.Banner)

	// Backoff is the pause between a transport failure and the reopen
	// attempt. Defaults to one second.
	Backoff time.Duration

	// MaxReopens bounds consecutive failed reopen attempts before the
	// consumer gives up and surfaces the last error.
	MaxReopens int

	state atomic.Int32
	count int
}

// State returns the consumer's current lifecycle state.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Count returns the number of records processed so far.
func (c *Consumer) Count() int {
	return c.count
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
}

// Run consumes the stream until the limit is reached, the context is
// cancelled, or a fatal error occurs. It returns the number of records
// processed. Context cancellation is a normal stop, not an error.
func (c *Consumer) Run(ctx context.Context) (int, error) {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxReopens := c.MaxReopens
	if maxReopens <= 0 {
		maxReopens = defaultMaxReopens
	}

	defer c.setState(StateStopped)

	failures := 0
	for {
		c.setState(StateConnecting)
		ch, err := c.Factory(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.count, nil
			}
			if !api.IsTransient(err) {
				return c.count, err
			}
			failures++
			if failures > maxReopens {
				return c.count, err
			}
			c.setState(StateRecovering)
			util.Debug("stream reopen failed (%d/%d): %v", failures, maxReopens, err)
			if !c.pause(ctx, backoff) {
				return c.count, nil
			}
			continue
		}
		failures = 0

		c.setState(StateStreaming)
		err = c.drain(ctx, ch)
		ch.Close()

		switch {
		case err == nil:
			// Limit reached.
			return c.count, nil
		case ctx.Err() != nil:
			return c.count, nil
		case api.IsTransient(err):
			c.setState(StateRecovering)
			util.Debug("stream interrupted, reconnecting: %v", err)
			if !c.pause(ctx, backoff) {
				return c.count, nil
			}
		default:
			return c.count, err
		}
	}
}

// drain processes records from one open channel. A nil return means the
// limit was reached; any other exit carries the channel's error.
func (c *Consumer) drain(ctx context.Context, ch Channel) error {
	// Unblock the channel read promptly on interrupt.
	stop := context.AfterFunc(ctx, func() { ch.Close() })
	defer stop()

	for {
		banner, err := ch.Next()
		if err != nil {
			return err
		}

		if c.Rotator != nil {
			if err := c.Rotator.Write(banner); err != nil {
				return err
			}
		}
		if c.Handle != nil {
			c.Handle(banner)
		}

		c.count++
		if c.Limit > 0 && c.count >= c.Limit {
			return nil
		}
	}
}

// pause sleeps for the backoff period, returning false if the context was
// cancelled first.
func (c *Consumer) pause(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
