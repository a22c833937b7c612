package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const neutralEmbedColor = 0x2B3137

// DiscordNotifier posts plain messages and rich embeds to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	limits     Limits
	client     *http.Client
	logger     zerolog.Logger
}

// NewDiscordNotifier constructs a webhook-backed notifier.
func NewDiscordNotifier(webhookURL string, limits Limits, timeout time.Duration, logger zerolog.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &DiscordNotifier{
		webhookURL: strings.TrimSpace(webhookURL),
		limits:     limits.orDefaults(),
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "notify_discord").Logger(),
	}
}

// SendText posts a plain content message, truncated to the text limit.
func (n *DiscordNotifier) SendText(ctx context.Context, body string) error {
	payload := map[string]any{
		"content": truncate(body, n.limits.Text),
	}
	return n.post(ctx, payload)
}

// SendStructured posts a single embed. Title, description and field values are
// truncated to the transport limits before sending.
func (n *DiscordNotifier) SendStructured(ctx context.Context, title, description string, fields []Field) error {
	embedFields := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		embedFields = append(embedFields, map[string]any{
			"name":   truncate(f.Name, n.limits.Title),
			"value":  truncate(f.Value, n.limits.Field),
			"inline": false,
		})
	}

	embed := map[string]any{
		"title":       truncate(title, n.limits.Title),
		"description": truncate(description, n.limits.Description),
		"color":       neutralEmbedColor,
		"fields":      embedFields,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	return n.post(ctx, map[string]any{"embeds": []any{embed}})
}

func (n *DiscordNotifier) post(ctx context.Context, payload map[string]any) error {
	if n.webhookURL == "" {
		return fmt.Errorf("discord webhook url not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	// ?wait=true makes Discord answer 200 with a JSON body instead of 204.
	url := n.webhookURL + "?wait=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned %d", resp.StatusCode)
	}

	n.logger.Debug().Int("bytes", len(body)).Msg("discord payload delivered")
	return nil
}

var _ Notifier = (*DiscordNotifier)(nil)
