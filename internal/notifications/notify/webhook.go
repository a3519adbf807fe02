package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type webhookPayload struct {
	UserID  string         `json:"userId"`
	Kind    string         `json:"kind"`
	Context map[string]any `json:"context,omitempty"`
}

// WebhookSender posts notification requests to the external delivery
// service. Delivery mechanics beyond the POST are that service's problem.
type WebhookSender struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook sender.
type WebhookOption func(*WebhookSender)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(s *WebhookSender) {
		if client != nil {
			s.client = client
		}
	}
}

// NewWebhookSender constructs a webhook sender.
func NewWebhookSender(url string, opts ...WebhookOption) (*WebhookSender, error) {
	if url == "" {
		return nil, errors.New("webhook sender: empty url")
	}
	sender := &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(sender)
	}
	return sender, nil
}

// Send posts one notification request.
func (s *WebhookSender) Send(ctx context.Context, userID, kind string, payload map[string]any) error {
	if s == nil || s.url == "" {
		return errors.New("webhook sender: empty url")
	}
	body, err := json.Marshal(webhookPayload{UserID: userID, Kind: kind, Context: payload})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook sender: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
