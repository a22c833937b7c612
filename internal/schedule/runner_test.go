package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"desk-sentinel/internal/alerting"
	"desk-sentinel/internal/storage"
)

type fakeScheduleStore struct {
	items   []storage.ScheduleRecord
	upserts []storage.ScheduleRecord
}

func (f *fakeScheduleStore) UpsertSchedule(ctx context.Context, rec storage.ScheduleRecord) error {
	f.upserts = append(f.upserts, rec)
	for i := range f.items {
		if f.items[i].ID == rec.ID {
			f.items[i] = rec
			return nil
		}
	}
	f.items = append(f.items, rec)
	return nil
}

func (f *fakeScheduleStore) ListSchedules(ctx context.Context) ([]storage.ScheduleRecord, error) {
	out := make([]storage.ScheduleRecord, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeScheduleStore) DeleteSchedule(ctx context.Context, id string) error { return nil }

// failingUpsertStore lists items fine but cannot persist updates.
type failingUpsertStore struct {
	fakeScheduleStore
}

func (f *failingUpsertStore) UpsertSchedule(ctx context.Context, rec storage.ScheduleRecord) error {
	return errors.New("database unavailable")
}

type fakeAlertLog struct {
	recent   []storage.AlertRecord
	inserted []storage.AlertRecord
}

func (f *fakeAlertLog) InsertAlert(ctx context.Context, rec storage.AlertRecord) (storage.AlertRecord, error) {
	f.inserted = append(f.inserted, rec)
	return rec, nil
}

func (f *fakeAlertLog) ListRecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error) {
	if limit > len(f.recent) {
		limit = len(f.recent)
	}
	return f.recent[:limit], nil
}

type fakeNotifier struct {
	titles []string
	bodies []string
}

func (f *fakeNotifier) SendText(ctx context.Context, body string) error {
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeNotifier) SendStructured(ctx context.Context, title, description string, fields []alerting.Field) error {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, description)
	return nil
}

var _ alerting.Notifier = (*fakeNotifier)(nil)

func newTestRunner(store *fakeScheduleStore, log *fakeAlertLog, notifier *fakeNotifier) *Runner {
	return NewRunner(RunnerOptions{
		Schedules: store,
		AlertLog:  log,
		Notifier:  notifier,
		Gate:      alerting.NewGate(alerting.GateOptions{Cooldown: 30 * time.Minute}, zerolog.Nop()),
		Location:  time.UTC,
		Logger:    zerolog.Nop(),
	})
}

func TestItemFiresOncePerDay(t *testing.T) {
	store := &fakeScheduleStore{items: []storage.ScheduleRecord{
		{ID: "morning", TimeOfDay: "07:30", DayRule: "weekdays", Target: "Morning brief", Message: "rise and shine", Enabled: true},
	}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, &fakeAlertLog{}, notifier)

	// Monday 07:29 — not yet due.
	before := time.Date(2024, 6, 3, 7, 29, 0, 0, time.UTC)
	if err := runner.Tick(context.Background(), before); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 0 {
		t.Fatalf("fired before scheduled time: %v", notifier.bodies)
	}

	// 07:30 — fires.
	due := before.Add(time.Minute)
	if err := runner.Tick(context.Background(), due); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 1 || notifier.bodies[0] != "rise and shine" {
		t.Fatalf("bodies = %v, want one %q", notifier.bodies, "rise and shine")
	}
	if notifier.titles[0] != "Morning brief" {
		t.Fatalf("title = %q", notifier.titles[0])
	}

	// further ticks inside the same minute, and later the same day — no
	// second fire.
	for _, later := range []time.Time{due.Add(20 * time.Second), due.Add(45 * time.Second), due.Add(5 * time.Hour)} {
		if err := runner.Tick(context.Background(), later); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if len(notifier.bodies) != 1 {
		t.Fatalf("fired %d times in one day, want 1", len(notifier.bodies))
	}

	// next matching day at the same minute — fires again.
	nextDay := due.AddDate(0, 0, 1)
	if err := runner.Tick(context.Background(), nextDay); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 2 {
		t.Fatalf("fired %d times across two days, want 2", len(notifier.bodies))
	}
}

func TestMissedMinuteIsNotCaughtUpLater(t *testing.T) {
	// Item that has never fired; the process comes up hours after its
	// minute has passed.
	store := &fakeScheduleStore{items: []storage.ScheduleRecord{
		{ID: "morning", TimeOfDay: "07:30", DayRule: "weekdays", Message: "rise and shine", Enabled: true},
	}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, &fakeAlertLog{}, notifier)

	monday := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{monday, monday.Add(time.Minute), monday.Add(8 * time.Hour)} {
		if err := runner.Tick(context.Background(), at); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if len(notifier.bodies) != 0 {
		t.Fatalf("missed 07:30 item fired later in the day: %v", notifier.bodies)
	}

	// it still fires at its own minute the next day
	if err := runner.Tick(context.Background(), time.Date(2024, 6, 4, 7, 30, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 1 {
		t.Fatalf("fired %d times at the scheduled minute, want 1", len(notifier.bodies))
	}
}

func TestOncePerDaySurvivesStorageFailure(t *testing.T) {
	store := &failingUpsertStore{fakeScheduleStore{items: []storage.ScheduleRecord{
		{ID: "morning", TimeOfDay: "07:30", DayRule: "daily", Message: "hi", Enabled: true},
	}}}
	notifier := &fakeNotifier{}
	runner := NewRunner(RunnerOptions{
		Schedules: store,
		AlertLog:  &fakeAlertLog{},
		Notifier:  notifier,
		Location:  time.UTC,
		Logger:    zerolog.Nop(),
	})

	due := time.Date(2024, 6, 3, 7, 30, 0, 0, time.UTC)
	if err := runner.Tick(context.Background(), due); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 1 {
		t.Fatalf("fired %d times, want 1", len(notifier.bodies))
	}

	// last_fired was never persisted, but the same minute must not re-fire
	if err := runner.Tick(context.Background(), due.Add(30*time.Second)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 1 {
		t.Fatalf("storage failure allowed a re-fire: %d dispatches", len(notifier.bodies))
	}
}

func TestItemSkipsNonMatchingDay(t *testing.T) {
	store := &fakeScheduleStore{items: []storage.ScheduleRecord{
		{ID: "weekday-only", TimeOfDay: "07:30", DayRule: "weekdays", Message: "hi", Enabled: true},
	}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, &fakeAlertLog{}, notifier)

	saturday := time.Date(2024, 6, 8, 9, 0, 0, 0, time.UTC)
	if err := runner.Tick(context.Background(), saturday); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 0 {
		t.Fatalf("weekday item fired on Saturday")
	}
}

func TestDisabledItemNeverFires(t *testing.T) {
	store := &fakeScheduleStore{items: []storage.ScheduleRecord{
		{ID: "off", TimeOfDay: "00:00", DayRule: "daily", Message: "hi", Enabled: false},
	}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, &fakeAlertLog{}, notifier)

	if err := runner.Tick(context.Background(), time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 0 {
		t.Fatal("disabled item fired")
	}
}

func TestEmptyMessageComposesBrief(t *testing.T) {
	log := &fakeAlertLog{recent: []storage.AlertRecord{
		{At: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC), Subject: "NVDA", Message: "trend_up"},
		{At: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), Subject: "hades", Message: "sale"},
	}}
	store := &fakeScheduleStore{items: []storage.ScheduleRecord{
		{ID: "brief", TimeOfDay: "17:00", DayRule: "daily", Enabled: true},
	}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, log, notifier)

	if err := runner.Tick(context.Background(), time.Date(2024, 6, 3, 17, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 1 {
		t.Fatalf("fired %d times, want 1", len(notifier.bodies))
	}
	body := notifier.bodies[0]
	if !strings.Contains(body, "NVDA") || !strings.Contains(body, "hades") {
		t.Fatalf("brief missing recent alerts: %q", body)
	}
	if notifier.titles[0] != "Scheduled brief" {
		t.Fatalf("default title = %q", notifier.titles[0])
	}
}

func TestEmptyHistoryBriefIsAllQuiet(t *testing.T) {
	store := &fakeScheduleStore{items: []storage.ScheduleRecord{
		{ID: "brief", TimeOfDay: "17:00", DayRule: "daily", Enabled: true},
	}}
	notifier := &fakeNotifier{}
	runner := newTestRunner(store, &fakeAlertLog{}, notifier)

	if err := runner.Tick(context.Background(), time.Date(2024, 6, 3, 17, 0, 20, 0, time.UTC)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(notifier.bodies) != 1 || !strings.Contains(notifier.bodies[0], "All quiet") {
		t.Fatalf("bodies = %v", notifier.bodies)
	}
}

func TestFiringRecordsLastFiredAndAuditRow(t *testing.T) {
	store := &fakeScheduleStore{items: []storage.ScheduleRecord{
		{ID: "morning", TimeOfDay: "07:30", DayRule: "daily", Message: "hi", Enabled: true},
	}}
	log := &fakeAlertLog{}
	runner := newTestRunner(store, log, &fakeNotifier{})

	at := time.Date(2024, 6, 3, 7, 30, 0, 0, time.UTC)
	if err := runner.Tick(context.Background(), at); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserts))
	}
	if store.upserts[0].LastFired == nil || !store.upserts[0].LastFired.Equal(at) {
		t.Fatalf("last fired = %v, want %v", store.upserts[0].LastFired, at)
	}
	if len(log.inserted) != 1 || log.inserted[0].Domain != "schedule" {
		t.Fatalf("audit rows = %+v", log.inserted)
	}
	if log.inserted[0].DedupeKey != "schedule:morning" {
		t.Fatalf("dedupe key = %q", log.inserted[0].DedupeKey)
	}
}
