package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Telegram 通过 Bot API sendMessage 推送到运营群。
type Telegram struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

func NewTelegram(apiBase, token, chatID string, timeout time.Duration) *Telegram {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &Telegram{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *Telegram) Notify(ctx context.Context, ev Event) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram bot token or chat id not configured")
	}
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    ev.Text,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// 不要把带 token 的 URL 带进日志
		return fmt.Errorf("telegram send: %w", stripURL(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return nil
}

func stripURL(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok && u.Unwrap() != nil {
		return u.Unwrap()
	}
	return err
}
