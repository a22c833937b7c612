package alerting

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func gateAt(quiet string, cooldown time.Duration) *Gate {
	return NewGate(GateOptions{
		QuietHours: quiet,
		Cooldown:   cooldown,
		Location:   time.UTC,
	}, zerolog.Nop())
}

func TestGateCooldown(t *testing.T) {
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

	g := gateAt("", 30*time.Minute)
	if !g.Allow("k", now.Add(-5*time.Minute), false) {
		t.Fatal("fresh key should be allowed")
	}
	g.MarkSent("k", now.Add(-5*time.Minute))

	if g.Allow("k", now, false) {
		t.Fatal("5 minutes since last send is inside a 30m cooldown")
	}

	g3 := gateAt("", 3*time.Minute)
	g3.MarkSent("k", now.Add(-5*time.Minute))
	if !g3.Allow("k", now, false) {
		t.Fatal("5 minutes since last send clears a 3m cooldown")
	}
}

func TestGateCooldownNeedsMarkSent(t *testing.T) {
	now := time.Now()
	g := gateAt("", 30*time.Minute)

	// Allow alone never starts the cooldown; a failed dispatch may retry.
	if !g.Allow("k", now, false) || !g.Allow("k", now.Add(time.Second), false) {
		t.Fatal("unmarked key should stay allowed")
	}
}

func TestGateEmptyKeySkipsCooldown(t *testing.T) {
	now := time.Now()
	g := gateAt("", time.Hour)
	g.MarkSent("", now)
	if !g.Allow("", now, false) {
		t.Fatal("empty dedupe key is never cooled down")
	}
}

func TestGateOvernightQuietWindow(t *testing.T) {
	g := gateAt("23:00-07:00", 0)

	late := time.Date(2025, 3, 3, 23, 30, 0, 0, time.UTC)
	if g.Allow("k", late, false) {
		t.Fatal("23:30 is inside the 23:00-07:00 window")
	}

	noon := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	if !g.Allow("k", noon, false) {
		t.Fatal("12:00 is outside the 23:00-07:00 window")
	}

	early := time.Date(2025, 3, 3, 6, 59, 0, 0, time.UTC)
	if g.Allow("k", early, false) {
		t.Fatal("06:59 is inside the 23:00-07:00 window")
	}
}

func TestGateDaytimeQuietWindow(t *testing.T) {
	g := gateAt("09:00-17:00", 0)

	if g.Allow("k", time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), false) {
		t.Fatal("window start is inclusive")
	}
	if g.Allow("k", time.Date(2025, 3, 3, 17, 0, 0, 0, time.UTC), false) {
		t.Fatal("window end is inclusive")
	}
	if !g.Allow("k", time.Date(2025, 3, 3, 17, 1, 0, 0, time.UTC), false) {
		t.Fatal("one minute past the window should be allowed")
	}
}

func TestGateBypassQuiet(t *testing.T) {
	g := gateAt("00:00-23:59", 0)
	if !g.Allow("startup_ping", time.Now(), true) {
		t.Fatal("bypassQuiet must ignore the quiet window")
	}
}

func TestGateMalformedWindowNeverSuppresses(t *testing.T) {
	for _, raw := range []string{"banana", "25:00-07:00", "23:0007:00", "23:00-07:61", ""} {
		g := gateAt(raw, 0)
		if !g.Allow("k", time.Date(2025, 3, 3, 23, 30, 0, 0, time.UTC), false) {
			t.Fatalf("window %q should disable quiet hours", raw)
		}
	}
}

func TestGateBypassStillHonoursCooldown(t *testing.T) {
	now := time.Now()
	g := gateAt("00:00-23:59", time.Hour)
	g.MarkSent("k", now)
	if g.Allow("k", now.Add(time.Minute), true) {
		t.Fatal("bypassQuiet skips quiet hours only, not the cooldown")
	}
}
