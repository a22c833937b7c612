package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"desk-sentinel/internal/alerting"
	"desk-sentinel/internal/storage"
)

// RunnerOptions configure the schedule runner.
type RunnerOptions struct {
	Schedules storage.ScheduleStore
	AlertLog  storage.AlertLogStore
	Notifier  alerting.Notifier
	// Gate applies cooldown accounting to scheduled dispatches. Quiet hours
	// are bypassed: the operator chose the fire time explicitly.
	Gate     *alerting.Gate
	Location *time.Location
	// BriefTailLimit caps how many recent alerts a composed brief includes.
	BriefTailLimit int
	Logger         zerolog.Logger
}

// Runner fires schedule items in the minute they name, at most once per item
// per calendar day. It is driven externally by a poll loop that ticks at
// least once a minute.
type Runner struct {
	schedules storage.ScheduleStore
	alertLog  storage.AlertLogStore
	notifier  alerting.Notifier
	gate      *alerting.Gate
	loc       *time.Location
	tailLimit int
	logger    zerolog.Logger

	// fired backs up the persisted last_fired stamp for this process, so a
	// storage failure after dispatch cannot re-fire the item today.
	fired map[string]time.Time
}

// NewRunner constructs a Runner instance.
func NewRunner(opts RunnerOptions) *Runner {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	tail := opts.BriefTailLimit
	if tail <= 0 {
		tail = 10
	}
	return &Runner{
		schedules: opts.Schedules,
		alertLog:  opts.AlertLog,
		notifier:  opts.Notifier,
		gate:      opts.Gate,
		loc:       loc,
		tailLimit: tail,
		logger:    opts.Logger.With().Str("component", "schedule").Logger(),
		fired:     make(map[string]time.Time),
	}
}

// Tick evaluates every schedule item against now. Item failures are logged
// and do not block the other items.
func (r *Runner) Tick(ctx context.Context, now time.Time) error {
	items, err := r.schedules.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}

	local := now.In(r.loc)
	for _, item := range items {
		if !r.due(item, local) {
			continue
		}
		if err := r.fire(ctx, item, local); err != nil {
			r.logger.Error().Err(err).Str("schedule_id", item.ID).Msg("schedule item failed")
		}
	}
	return nil
}

func (r *Runner) due(item storage.ScheduleRecord, local time.Time) bool {
	if !item.Enabled {
		return false
	}
	if !DayMatches(item.DayRule, local) {
		return false
	}
	if !minuteMatches(item.TimeOfDay, local) {
		return false
	}
	if item.LastFired != nil && sameDate(local, *item.LastFired) {
		return false
	}
	if last, ok := r.fired[item.ID]; ok && sameDate(local, last) {
		return false
	}
	return true
}

func (r *Runner) fire(ctx context.Context, item storage.ScheduleRecord, local time.Time) error {
	key := "schedule:" + item.ID
	if r.gate != nil && !r.gate.Allow(key, local, true) {
		r.logger.Debug().Str("schedule_id", item.ID).Msg("schedule dispatch suppressed")
		return nil
	}

	body := item.Message
	if body == "" {
		composed, err := r.composeBrief(ctx)
		if err != nil {
			return fmt.Errorf("compose brief: %w", err)
		}
		body = composed
	}

	title := item.Target
	if title == "" {
		title = "Scheduled brief"
	}

	if err := r.notifier.SendStructured(ctx, title, body, nil); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	// dispatch succeeded: stamp in memory first, so even a failed upsert
	// below cannot re-fire the item this day
	r.fired[item.ID] = local
	if r.gate != nil {
		r.gate.MarkSent(key, local)
	}

	r.logger.Info().Str("schedule_id", item.ID).Str("title", title).Msg("schedule item fired")

	if r.alertLog != nil {
		rec := storage.AlertRecord{
			At:        local,
			Domain:    "schedule",
			Subject:   title,
			Message:   body,
			DedupeKey: key,
		}
		if _, err := r.alertLog.InsertAlert(ctx, rec); err != nil {
			r.logger.Warn().Err(err).Str("schedule_id", item.ID).Msg("alert log insert failed")
		}
	}

	firedAt := local
	item.LastFired = &firedAt
	if err := r.schedules.UpsertSchedule(ctx, item); err != nil {
		return fmt.Errorf("record last fired: %w", err)
	}
	return nil
}

// composeBrief summarises the most recent alert activity. With no recent
// alerts it still produces a short all-quiet line.
func (r *Runner) composeBrief(ctx context.Context) (string, error) {
	if r.alertLog == nil {
		return "No alert history available.", nil
	}
	recent, err := r.alertLog.ListRecentAlerts(ctx, r.tailLimit)
	if err != nil {
		return "", err
	}
	if len(recent) == 0 {
		return "No alerts in the recent window. All quiet.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent activity (%d alerts):\n", len(recent))
	for _, a := range recent {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", a.At.In(r.loc).Format("Jan 02 15:04"), a.Subject, a.Message)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
