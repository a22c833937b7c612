package alerting

import (
	"context"
	"unicode/utf8"
)

// Field is one name/value pair inside a structured notification.
type Field struct {
	Name  string
	Value string
}

// Notifier delivers pre-formatted messages to an external transport. Errors
// are reported, never panicked; callers decide whether to log or retry on a
// later tick.
type Notifier interface {
	SendText(ctx context.Context, body string) error
	SendStructured(ctx context.Context, title, description string, fields []Field) error
}

// Limits cap outbound payload sizes. Oversize input is truncated rather than
// rejected, matching transport-imposed maximums.
type Limits struct {
	Text        int
	Title       int
	Description int
	Field       int
}

// DefaultLimits follow Discord's webhook constraints and are conservative
// enough for Telegram as well.
var DefaultLimits = Limits{
	Text:        1900,
	Title:       256,
	Description: 4096,
	Field:       1024,
}

func (l Limits) orDefaults() Limits {
	d := DefaultLimits
	if l.Text > 0 {
		d.Text = l.Text
	}
	if l.Title > 0 {
		d.Title = l.Title
	}
	if l.Description > 0 {
		d.Description = l.Description
	}
	if l.Field > 0 {
		d.Field = l.Field
	}
	return d
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// back off to a rune boundary so a limit landing mid-sequence cannot
	// ship invalid UTF-8
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
