// Package notify sends fire-and-forget operator notifications.
// Delivery failures are logged and never propagate into engine state.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Telegram posts messages to a Telegram chat via the bot API.
// A nil *Telegram is a no-op, so callers never guard against it.
type Telegram struct {
	token  string
	chatID string
	base   string
	client *http.Client
	logger *slog.Logger
}

// NewTelegram constructs a Telegram notifier. Returns nil when the
// token or chat id is not configured.
func NewTelegram(token, chatID string, logger *slog.Logger) *Telegram {
	if token == "" || chatID == "" {
		return nil
	}
	return &Telegram{
		token:  token,
		chatID: chatID,
		base:   "https://api.telegram.org",
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// Notify delivers one message. Errors are swallowed after logging.
func (t *Telegram) Notify(ctx context.Context, message string) {
	if t == nil || message == "" {
		return
	}
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", message)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		t.warn("build telegram request", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		t.warn("send telegram message", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.warn("telegram response", fmt.Errorf("status %d", resp.StatusCode))
	}
}

func (t *Telegram) warn(msg string, err error) {
	if t.logger != nil {
		t.logger.Warn(msg, slog.Any("error", err))
	}
}
