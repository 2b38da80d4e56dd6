package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const notifyTimeout = 10 * time.Second

// Notifier pushes applied status changes to a configured subscriber endpoint
// (storefront realtime gateway). Errors are logged and dropped; order state is
// already durable by the time a notification goes out.
type Notifier struct {
	webhookURL string
	logger     *zap.Logger
	client     *http.Client
}

// NewNotifier creates a notifier. An empty URL disables delivery.
func NewNotifier(webhookURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		logger:     logger,
		client:     &http.Client{Timeout: notifyTimeout},
	}
}

// OrderStatusChanged sends the event payload. Intended to be called in a
// goroutine so the webhook response is not blocked on the subscriber.
func (n *Notifier) OrderStatusChanged(payload map[string]interface{}) {
	if n.webhookURL == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("Notify: failed to marshal payload", zap.Error(err))
		return
	}
	req, err := http.NewRequest(http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("Notify: failed to create request", zap.String("url", n.webhookURL), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Notify: subscriber request failed", zap.String("url", n.webhookURL), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("Notify: subscriber returned non-2xx", zap.String("url", n.webhookURL), zap.Int("status", resp.StatusCode))
	}
}
