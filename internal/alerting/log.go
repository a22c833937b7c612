package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes alerts to the log stream. It stands in when no
// transport credentials are configured, so the watchers keep running and an
// operator can still see what would have been sent.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs the fallback notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) SendText(ctx context.Context, body string) error {
	n.logger.Info().Str("body", body).Msg("alert (no transport)")
	return nil
}

func (n *LogNotifier) SendStructured(ctx context.Context, title, description string, fields []Field) error {
	evt := n.logger.Info().Str("title", title).Str("description", description)
	for _, f := range fields {
		evt = evt.Str(f.Name, f.Value)
	}
	evt.Msg("alert (no transport)")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
