// Package notify pushes operator alerts over Telegram. Alerts are
// fire-and-forget: a delivery failure is logged and never propagated
// back into the trading loop.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
	baseURL  string
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
		baseURL:  "https://api.telegram.org",
	}
}

// Notify sends text to the configured chat. An unconfigured notifier is
// a no-op so callers never need to null-check.
func (n *Telegram) Notify(text string) {
	if n == nil || n.botToken == "" || n.chatID == "" || text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := n.send(ctx, text); err != nil {
		log.Printf("[NOTIFY] telegram: %v", err)
	}
}

func (n *Telegram) send(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)

	raw, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}
	return nil
}
