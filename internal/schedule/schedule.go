package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day rules accepted for schedule items.
const (
	RuleDaily    = "daily"
	RuleWeekdays = "weekdays"
	RuleWeekends = "weekends"
)

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// ValidDayRule reports whether rule is one of the accepted day rules.
func ValidDayRule(rule string) bool {
	switch strings.ToLower(rule) {
	case RuleDaily, RuleWeekdays, RuleWeekends:
		return true
	}
	_, ok := weekdayNames[strings.ToLower(rule)]
	return ok
}

// DayMatches reports whether rule applies to the weekday of t.
func DayMatches(rule string, t time.Time) bool {
	day := t.Weekday()
	switch strings.ToLower(rule) {
	case RuleDaily:
		return true
	case RuleWeekdays:
		return day >= time.Monday && day <= time.Friday
	case RuleWeekends:
		return day == time.Saturday || day == time.Sunday
	}
	want, ok := weekdayNames[strings.ToLower(rule)]
	return ok && day == want
}

// ValidHHMM reports whether s is a zero-padded 24h clock time ("07:30").
func ValidHHMM(s string) bool {
	_, _, err := parseHHMM(s)
	return err == nil
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("schedule: invalid clock time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("schedule: invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule: invalid minute in %q", s)
	}
	return hour, minute, nil
}

// minuteMatches reports whether the local clock t is inside the minute named
// by timeOfDay. Matching is exact: a tick landing on any other minute never
// fires the item, so a missed minute is skipped, not caught up later.
func minuteMatches(timeOfDay string, t time.Time) bool {
	hour, minute, err := parseHHMM(timeOfDay)
	if err != nil {
		return false
	}
	return t.Hour() == hour && t.Minute() == minute
}

// sameDate reports whether a and b fall on the same calendar date in a's location.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
