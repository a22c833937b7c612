package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"desk-sentinel/internal/schedule"
	"desk-sentinel/internal/storage"
)

// ScheduleAddOptions define a new or replacement schedule item.
type ScheduleAddOptions struct {
	ID        string
	TimeOfDay string
	DayRule   string
	Target    string
	// Message is the dispatched text; empty means a brief is composed
	// from recent alerts at fire time.
	Message string
}

// ScheduleAdd upserts a schedule item after validating its time and rule.
func (a *App) ScheduleAdd(ctx context.Context, opts ScheduleAddOptions) error {
	if opts.ID == "" {
		return errors.New("--id is required")
	}
	if !schedule.ValidHHMM(opts.TimeOfDay) {
		return fmt.Errorf("invalid --time %q, want HH:MM", opts.TimeOfDay)
	}
	if !schedule.ValidDayRule(opts.DayRule) {
		return fmt.Errorf("invalid --days %q, want daily|weekdays|weekends|mon..sun", opts.DayRule)
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rec := storage.ScheduleRecord{
		ID:        opts.ID,
		TimeOfDay: opts.TimeOfDay,
		DayRule:   opts.DayRule,
		Target:    opts.Target,
		Message:   opts.Message,
		Enabled:   true,
	}
	if err := store.UpsertSchedule(ctx, rec); err != nil {
		return err
	}
	a.Logger.Info().Str("schedule_id", opts.ID).Msg("schedule item saved")
	return nil
}

// ScheduleList prints all schedule items.
func (a *App) ScheduleList(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	items, err := store.ListSchedules(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, "no schedule items")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTime\tDays\tEnabled\tLast fired\tMessage")
	for _, item := range items {
		lastFired := "-"
		if item.LastFired != nil {
			lastFired = item.LastFired.Format("2006-01-02")
		}
		message := item.Message
		if message == "" {
			message = "(composed brief)"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%t\t%s\t%s\n",
			item.ID, item.TimeOfDay, item.DayRule, item.Enabled, lastFired, sanitizeInline(message))
	}
	writer.Flush()
	return nil
}

// ScheduleRemove deletes a schedule item by id.
func (a *App) ScheduleRemove(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("--id is required")
	}
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	a.Logger.Info().Str("schedule_id", id).Msg("schedule item removed")
	return nil
}

// ScheduleToggle flips one item's enabled flag.
func (a *App) ScheduleToggle(ctx context.Context, id string, enabled bool) error {
	if id == "" {
		return errors.New("--id is required")
	}
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	items, err := store.ListSchedules(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.ID != id {
			continue
		}
		item.Enabled = enabled
		if err := store.UpsertSchedule(ctx, item); err != nil {
			return err
		}
		a.Logger.Info().Str("schedule_id", id).Bool("enabled", enabled).Msg("schedule item toggled")
		return nil
	}
	return fmt.Errorf("schedule item %q not found", id)
}

func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database not configured")
	}
	if closeStore == nil {
		closeStore = func() {}
	}
	return store, closeStore, nil
}
