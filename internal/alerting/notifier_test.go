package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestDiscordSendText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "wait=true" {
			t.Fatalf("expected wait=true query, got %q", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "1"})
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL, Limits{}, time.Second, testLogger())
	if err := n.SendText(context.Background(), "hello"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if got["content"] != "hello" {
		t.Fatalf("payload content = %v", got["content"])
	}
}

func TestDiscordTruncatesText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL, Limits{Text: 5}, time.Second, testLogger())
	if err := n.SendText(context.Background(), "0123456789"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if got["content"] != "01234" {
		t.Fatalf("content should be truncated to limit, got %v", got["content"])
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	// "héllo"'s é is two bytes; a limit of 2 lands mid-rune
	got := truncate("héllo", 2)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != "h" {
		t.Fatalf("truncate(héllo, 2) = %q, want %q", got, "h")
	}

	if got := truncate("héllo", 3); got != "hé" {
		t.Fatalf("truncate(héllo, 3) = %q, want %q", got, "hé")
	}
	if got := truncate("héllo", 0); got != "héllo" {
		t.Fatalf("zero limit should not truncate, got %q", got)
	}
	if got := truncate("日本語", 4); got != "日" {
		t.Fatalf("truncate(日本語, 4) = %q, want %q", got, "日")
	}
}

func TestDiscordSendStructured(t *testing.T) {
	var got struct {
		Embeds []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Fields      []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL, Limits{Description: 10}, time.Second, testLogger())
	fields := []Field{{Name: "Price", Value: "$123.45"}}
	if err := n.SendStructured(context.Background(), "NVDA signal", strings.Repeat("x", 40), fields); err != nil {
		t.Fatalf("SendStructured failed: %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(got.Embeds))
	}
	embed := got.Embeds[0]
	if embed.Title != "NVDA signal" {
		t.Fatalf("title = %q", embed.Title)
	}
	if len(embed.Description) != 10 {
		t.Fatalf("description should be truncated to 10, got %d", len(embed.Description))
	}
	if len(embed.Fields) != 1 || embed.Fields[0].Value != "$123.45" {
		t.Fatalf("fields = %+v", embed.Fields)
	}
}

func TestDiscordHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewDiscordNotifier(srv.URL, Limits{}, time.Second, testLogger())
	if err := n.SendText(context.Background(), "hello"); err == nil {
		t.Fatal("429 should surface as an error")
	}
}

func TestDiscordMissingWebhook(t *testing.T) {
	n := NewDiscordNotifier("", Limits{}, time.Second, testLogger())
	if err := n.SendText(context.Background(), "hello"); err == nil {
		t.Fatal("missing webhook url should be an error")
	}
}

func TestTelegramSendText(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "chat", srv.URL, Limits{}, time.Second, testLogger())
	if err := n.SendText(context.Background(), "ping"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if received["chat_id"] != "chat" || received["text"] != "ping" {
		t.Fatalf("unexpected payload: %v", received)
	}
}

func TestTelegramNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "chat", srv.URL, Limits{}, time.Second, testLogger())
	if err := n.SendText(context.Background(), "ping"); err == nil {
		t.Fatal("ok=false should surface as an error")
	}
}

func TestTelegramStructuredFlattens(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "chat", srv.URL, Limits{}, time.Second, testLogger())
	err := n.SendStructured(context.Background(), "Brief", "all quiet", []Field{{Name: "Alerts", Value: "none"}})
	if err != nil {
		t.Fatalf("SendStructured failed: %v", err)
	}
	text := received["text"]
	for _, want := range []string{"Brief", "all quiet", "Alerts: none"} {
		if !strings.Contains(text, want) {
			t.Fatalf("flattened text missing %q: %q", want, text)
		}
	}
}
