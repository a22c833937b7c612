package alerting

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// GateOptions tune suppression policy.
type GateOptions struct {
	// QuietHours is a local-time window "HH:MM-HH:MM" during which non-urgent
	// alerts are dropped. Empty or malformed disables the check.
	QuietHours string
	// Cooldown is the minimum spacing between sends sharing a dedupe key.
	Cooldown time.Duration
	// Location resolves local time for the quiet window. Nil means time.Local.
	Location *time.Location
}

type minuteOfDay int

type quietWindow struct {
	start minuteOfDay
	end   minuteOfDay
}

// Gate decides whether a candidate alert may be dispatched. The cooldown map
// is shared by every watcher loop, so all access is mutex-guarded.
type Gate struct {
	opts   GateOptions
	window *quietWindow
	logger zerolog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewGate constructs a Gate. A malformed quiet-hours window is logged and
// treated as "no quiet hours" rather than an error.
func NewGate(opts GateOptions, logger zerolog.Logger) *Gate {
	g := &Gate{
		opts:     opts,
		logger:   logger.With().Str("component", "alert_gate").Logger(),
		lastSent: make(map[string]time.Time),
	}
	if opts.QuietHours != "" {
		window, ok := parseQuietWindow(opts.QuietHours)
		if !ok {
			g.logger.Warn().Str("quiet_hours", opts.QuietHours).Msg("unparseable quiet-hours window; quiet hours disabled")
		} else {
			g.window = &window
		}
	}
	return g
}

// Allow reports whether an alert identified by key may be sent at the given
// instant. An empty key skips the cooldown check; bypassQuiet skips the
// quiet-hours check. Allow does not record the send: call MarkSent once the
// dispatch actually succeeded, so a failed delivery can retry naturally.
func (g *Gate) Allow(key string, at time.Time, bypassQuiet bool) bool {
	if !bypassQuiet && g.inQuietHours(at) {
		return false
	}
	if key == "" {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.lastSent[key]
	if ok && at.Sub(last) < g.opts.Cooldown {
		return false
	}
	return true
}

// MarkSent records a successful dispatch for cooldown accounting.
func (g *Gate) MarkSent(key string, at time.Time) {
	if key == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSent[key] = at
}

func (g *Gate) inQuietHours(at time.Time) bool {
	if g.window == nil {
		return false
	}
	loc := g.opts.Location
	if loc == nil {
		loc = time.Local
	}
	local := at.In(loc)
	now := minuteOfDay(local.Hour()*60 + local.Minute())

	if g.window.start < g.window.end {
		return now >= g.window.start && now <= g.window.end
	}
	// overnight window, e.g. 23:00-07:00
	return now >= g.window.start || now <= g.window.end
}

func parseQuietWindow(raw string) (quietWindow, bool) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return quietWindow{}, false
	}
	start, ok := parseHHMM(strings.TrimSpace(parts[0]))
	if !ok {
		return quietWindow{}, false
	}
	end, ok := parseHHMM(strings.TrimSpace(parts[1]))
	if !ok {
		return quietWindow{}, false
	}
	return quietWindow{start: start, end: end}, true
}

func parseHHMM(raw string) (minuteOfDay, bool) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return minuteOfDay(h*60 + m), true
}
