package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const requestTimeout = 15 * time.Second

// Client calls the Razorpay Orders API with basic auth.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Razorpay HTTP client.
func NewClient(baseURL, keyID, keySecret string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// Order is the provider-side order created at checkout. Its ID is the join
// key payment webhooks carry back.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // paise
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder registers a checkout with Razorpay. Amount is in INR; the API
// wants paise.
func (c *Client) CreateOrder(ctx context.Context, amountINR float64, receipt string) (*Order, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"amount":   int64(amountINR * 100),
		"currency": "INR",
		"receipt":  receipt,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Razorpay order create failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("razorpay returned %d: %s", resp.StatusCode, string(body))
	}
	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw, unparsed body bytes. Parsing and re-serializing before verification
// breaks the signature, so callers must pass exactly what arrived on the wire.
// Constant-time comparison; the caller only learns pass/fail.
func VerifyWebhookSignature(rawBody []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// VerifyPaymentSignature checks the checkout callback signature
// (order_id|payment_id signed with the key secret).
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// WebhookEvent is the provider event envelope.
type WebhookEvent struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity RefundEntity `json:"entity"`
		} `json:"refund"`
		Order struct {
			Entity struct {
				ID      string `json:"id"`
				Receipt string `json:"receipt"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// PaymentEntity is the payment object inside a webhook payload.
type PaymentEntity struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"` // paise
	Status      string `json:"status"`
	Method      string `json:"method"`
	ErrorCode   string `json:"error_code"`
	ErrorReason string `json:"error_reason"`
}

// RefundEntity is the refund object inside a webhook payload.
type RefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"` // paise
	Status    string `json:"status"`
}
