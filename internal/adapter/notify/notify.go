// Package notify delivers reminder messages.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// ErrNoChat is returned for users that have not linked a chat.
var ErrNoChat = errors.New("user has no linked chat")

// LogNotifier writes reminders to the process log.
type LogNotifier struct{}

var _ domain.Notifier = LogNotifier{}

// Notify logs the message.
func (LogNotifier) Notify(ctx context.Context, user domain.User, text string) error {
	log.Printf("notify: user=%d (%s): %s", user.ID, user.Username, text)
	return nil
}

// WebhookNotifier posts reminders to a chat bridge that owns the transport.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

var _ domain.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

type webhookPayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	ChatID   int64  `json:"chatId"`
	Text     string `json:"text"`
}

// Notify posts the message as JSON. Users without a linked chat are skipped
// with ErrNoChat.
func (n *WebhookNotifier) Notify(ctx context.Context, user domain.User, text string) error {
	if user.ChatID == nil {
		return ErrNoChat
	}
	body, err := json.Marshal(webhookPayload{
		UserID:   user.ID,
		Username: user.Username,
		ChatID:   *user.ChatID,
		Text:     text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post reminder: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post reminder: unexpected status %d", resp.StatusCode)
	}
	return nil
}
