package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"desk-sentinel/internal/alerting"
	"desk-sentinel/internal/config"
	"desk-sentinel/internal/schedule"
	"desk-sentinel/internal/scheduler"
	"desk-sentinel/internal/watcher"
)

// startupPingKey dedupes the boot announcement across quick restarts.
const startupPingKey = "startup_ping"

// Options carry the wired collaborators. A nil watcher means that domain is
// disabled; the service runs whatever it is given.
type Options struct {
	Config   *config.Config
	Stocks   *watcher.StockWatcher
	Games    *watcher.GameWatcher
	Options  *watcher.OptionsWatcher
	Schedule *schedule.Runner
	Notifier alerting.Notifier
	Gate     *alerting.Gate
	Logger   zerolog.Logger
}

// Service supervises one polling loop per watcher domain plus the schedule
// runner. Loops share only the alert gate; a stalled provider in one domain
// never delays another.
type Service struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs the monitoring service.
func New(opts Options) *Service {
	return &Service{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "service").Logger(),
	}
}

// Run announces startup, then blocks running all configured loops until ctx
// is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.opts.Config == nil {
		return fmt.Errorf("service: configuration not provided")
	}

	s.startupPing(ctx)

	type loop struct {
		name     string
		interval time.Duration
		tick     scheduler.TickFunc
	}

	var loops []loop
	cfg := s.opts.Config
	if s.opts.Stocks != nil {
		s.opts.Stocks.Seed(ctx)
		loops = append(loops, loop{"stocks", cfg.Stocks.PollInterval, s.opts.Stocks.Tick})
	}
	if s.opts.Games != nil {
		loops = append(loops, loop{"games", cfg.Games.PollInterval, s.opts.Games.Tick})
	}
	if s.opts.Options != nil {
		loops = append(loops, loop{"options", cfg.Options.PollInterval, s.opts.Options.Tick})
	}
	if s.opts.Schedule != nil {
		loops = append(loops, loop{"schedule", cfg.Schedule.CheckInterval, s.opts.Schedule.Tick})
	}
	if len(loops) == 0 {
		return fmt.Errorf("service: nothing to run, all domains disabled")
	}

	var wg sync.WaitGroup
	for _, l := range loops {
		poller := scheduler.New(scheduler.Options{
			Interval:  l.interval,
			Immediate: true,
			Name:      l.name,
		}, s.opts.Logger)

		wg.Add(1)
		go func(name string, p *scheduler.Poller, tick scheduler.TickFunc) {
			defer wg.Done()
			if err := p.Run(ctx, tick); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Str("loop", name).Msg("loop exited early")
			}
		}(l.name, poller, l.tick)

		s.logger.Info().Str("loop", l.name).Dur("interval", l.interval).Msg("loop started")
	}

	wg.Wait()
	return ctx.Err()
}

// startupPing announces the process and its watchlist. It bypasses quiet
// hours: an operator restarting the process at night still wants the
// confirmation. Failure is logged, never fatal.
func (s *Service) startupPing(ctx context.Context) {
	if s.opts.Notifier == nil || s.opts.Gate == nil {
		return
	}
	now := time.Now()
	if !s.opts.Gate.Allow(startupPingKey, now, true) {
		s.logger.Debug().Msg("startup ping suppressed by cooldown")
		return
	}

	cfg := s.opts.Config
	var parts []string
	if s.opts.Stocks != nil && len(cfg.Stocks.Watchlist) > 0 {
		parts = append(parts, "stocks: "+strings.Join(cfg.Stocks.Watchlist, ", "))
	}
	if s.opts.Games != nil && len(cfg.Games.Slugs) > 0 {
		parts = append(parts, "games: "+strings.Join(cfg.Games.Slugs, ", "))
	}
	if s.opts.Options != nil && len(cfg.Options.Underlyings) > 0 {
		parts = append(parts, "options: "+strings.Join(cfg.Options.Underlyings, ", "))
	}
	body := "Sentinel online."
	if len(parts) > 0 {
		body += " Watching " + strings.Join(parts, "; ") + "."
	}

	if err := s.opts.Notifier.SendText(ctx, body); err != nil {
		s.logger.Warn().Err(err).Msg("startup ping failed")
		return
	}
	s.opts.Gate.MarkSent(startupPingKey, now)
}
