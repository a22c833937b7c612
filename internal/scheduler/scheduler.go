package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every poll cycle with the time the cycle started.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune poller behaviour.
type Options struct {
	// Interval between poll cycles. Must be positive.
	Interval time.Duration
	// Immediate runs the first cycle right away instead of waiting a full
	// interval. Watchers use this so a fresh process reports without delay.
	Immediate bool
	// Name labels the poller in log output.
	Name string
}

// Poller drives a repeating poll cycle until its context is cancelled.
// Cycle errors are logged and do not stop the loop.
type Poller struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Poller instance.
func New(opts Options, logger zerolog.Logger) *Poller {
	if opts.Interval <= 0 {
		panic("poller interval must be positive")
	}
	name := opts.Name
	if name == "" {
		name = "poller"
	}
	return &Poller{opts: opts, logger: logger.With().Str("component", name).Logger()}
}

// Run blocks, invoking the tick function once per interval until ctx is
// cancelled. A failing cycle is logged and the loop continues.
func (p *Poller) Run(ctx context.Context, tick TickFunc) error {
	if p.opts.Immediate {
		if err := p.cycle(ctx, tick); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.cycle(ctx, tick); err != nil {
				return err
			}
		}
	}
}

func (p *Poller) cycle(ctx context.Context, tick TickFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	p.logger.Debug().Time("cycle", now).Msg("executing poll cycle")
	if err := tick(ctx, now); err != nil {
		p.logger.Error().Err(err).Msg("poll cycle failed")
	}
	return nil
}
