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

	"waterwatch/internal/config"
	"waterwatch/internal/domain"
)

// webhookPayload is the JSON body posted for display and cancel actions.
type webhookPayload struct {
	Action       string               `json:"action"`
	ID           string               `json:"id"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// WebhookTransport posts notification actions to a configured HTTP endpoint.
// Params: endpoint URL, method, timeout, and headers.
// Returns: generic HTTP transport.
type WebhookTransport struct {
	cfg    config.WebhookNotifier
	client *http.Client
}

// NewWebhookTransport creates generic HTTP transport.
// Params: webhook notifier config.
// Returns: initialized transport.
func NewWebhookTransport(cfg config.WebhookNotifier) *WebhookTransport {
	return &WebhookTransport{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// Name returns transport name.
func (t *WebhookTransport) Name() string {
	return "webhook"
}

// Display posts "display" action with full notification.
func (t *WebhookTransport) Display(ctx context.Context, notification domain.Notification) error {
	return t.post(ctx, webhookPayload{Action: "display", ID: notification.ID, Notification: &notification})
}

// Cancel posts "cancel" action for notification id.
func (t *WebhookTransport) Cancel(ctx context.Context, id string) error {
	return t.post(ctx, webhookPayload{Action: "cancel", ID: id})
}

func (t *WebhookTransport) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(t.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range t.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := t.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, unexpectedHTTPStatusError("webhook", response))
	case response.StatusCode < 200 || response.StatusCode >= 300:
		return unexpectedHTTPStatusError("webhook", response)
	}
	return nil
}

// unexpectedHTTPStatusError formats non-2xx HTTP response with optional body.
// Params: sender prefix label and HTTP response pointer.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(io.LimitReader(response.Body, 4096))
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
}
