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

// TelegramNotifier delivers messages through the Telegram Bot API. Structured
// notifications are rendered to plain text since Telegram has no embed shape.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	limits   Limits
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, limits Limits, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		limits:   limits.orDefaults(),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// SendText posts one sendMessage call.
func (n *TelegramNotifier) SendText(ctx context.Context, body string) error {
	return n.sendMessage(ctx, truncate(body, n.limits.Text))
}

// SendStructured flattens the title, description and fields into one text
// message, truncating each part to its limit.
func (n *TelegramNotifier) SendStructured(ctx context.Context, title, description string, fields []Field) error {
	builder := strings.Builder{}
	builder.WriteString(truncate(title, n.limits.Title))
	if description != "" {
		builder.WriteString("\n")
		builder.WriteString(truncate(description, n.limits.Description))
	}
	for _, f := range fields {
		builder.WriteString("\n")
		builder.WriteString(truncate(f.Name, n.limits.Title))
		builder.WriteString(": ")
		builder.WriteString(truncate(f.Value, n.limits.Field))
	}
	return n.sendMessage(ctx, builder.String())
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram bot token and chat id not configured")
	}

	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}

	n.logger.Debug().Int("chars", len(text)).Msg("telegram message delivered")
	return nil
}

var _ Notifier = (*TelegramNotifier)(nil)
