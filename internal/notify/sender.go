package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender delivers one serialized event for one user. Implementations must be
// safe for concurrent use by the worker pool.
type Sender interface {
	Send(ctx context.Context, userID string, payload []byte) error
}

type webhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender posts events as JSON to a single webhook endpoint. The
// recipient travels in a header so one endpoint can fan out per user.
func NewWebhookSender(url string, timeout time.Duration) Sender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &webhookSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *webhookSender) Send(ctx context.Context, userID string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Duel-User", userID)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
