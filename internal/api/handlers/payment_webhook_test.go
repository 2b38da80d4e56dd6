package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/config"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	idmemory "github.com/kundan-thakur61/mobilecoverBackend/internal/idempotency/memory"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/locator"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/observability"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/repository"
	memrepo "github.com/kundan-thakur61/mobilecoverBackend/internal/repository/memory"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/service"
)

const testWebhookSecret = "rzp-whsec"

type paymentWebhookFixture struct {
	router *gin.Engine
	repos  *repository.Repositories
}

func newPaymentWebhookFixture(t *testing.T) *paymentWebhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Razorpay.WebhookSecret = testWebhookSecret

	repos := memrepo.NewRepositories()
	ledger := idmemory.NewStore(time.Hour)
	t.Cleanup(ledger.Close)
	metrics := observability.NewNopMetrics()
	notifier := service.NewNotifier("", nil)
	rec := service.NewReconciler(repos, notifier, metrics, nil)
	loc := locator.New(repos, nil)
	payments := service.NewPaymentService(rec, loc, ledger, metrics, notifier, nil)

	router := gin.New()
	router.POST("/webhooks/razorpay", HandleRazorpayWebhook(cfg, payments, metrics, zap.NewNop()))
	return &paymentWebhookFixture{router: router, repos: repos}
}

func (f *paymentWebhookFixture) seedOrder(t *testing.T, providerOrderID string) *domain.RegularOrder {
	t.Helper()
	order := &domain.RegularOrder{
		OrderCore: domain.OrderCore{
			ID:     uuid.New(),
			Status: domain.OrderStatusPending,
			Amount: 299,
			Payment: domain.Payment{
				ProviderOrderID: providerOrderID,
				Status:          domain.PaymentStatusPending,
			},
		},
	}
	require.NoError(t, f.repos.Regular.Create(context.Background(), order))
	return order
}

func sign(raw []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}

func (f *paymentWebhookFixture) post(t *testing.T, raw []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Razorpay-Signature", signature)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func capturedBody(t *testing.T, eventID, orderID, paymentID string) []byte {
	t.Helper()
	raw, err := json.Marshal(gin.H{
		"id":    eventID,
		"event": "payment.captured",
		"payload": gin.H{
			"payment": gin.H{
				"entity": gin.H{
					"id":       paymentID,
					"order_id": orderID,
					"amount":   29900,
					"status":   "captured",
				},
			},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestPaymentWebhookCaptured(t *testing.T) {
	f := newPaymentWebhookFixture(t)
	order := f.seedOrder(t, "order_Abc123")

	raw := capturedBody(t, "evt_1", "order_Abc123", "pay_X1")
	w := f.post(t, raw, sign(raw, testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)

	stored, _ := f.repos.Regular.GetByID(context.Background(), order.ID)
	core := stored.Core()
	assert.Equal(t, domain.PaymentStatusPaid, core.Payment.Status)
	assert.Equal(t, domain.OrderStatusConfirmed, core.Status)
	require.NotNil(t, core.Payment.PaidAt)
}

func TestPaymentWebhookBadSignature(t *testing.T) {
	f := newPaymentWebhookFixture(t)
	order := f.seedOrder(t, "order_Abc123")

	raw := capturedBody(t, "evt_1", "order_Abc123", "pay_X1")
	w := f.post(t, raw, sign(raw, "wrong-secret"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stored, _ := f.repos.Regular.GetByID(context.Background(), order.ID)
	assert.Equal(t, domain.PaymentStatusPending, stored.Core().Payment.Status, "no state change on bad signature")
}

func TestPaymentWebhookMissingSignature(t *testing.T) {
	f := newPaymentWebhookFixture(t)
	raw := capturedBody(t, "evt_1", "order_Abc123", "pay_X1")
	w := f.post(t, raw, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentWebhookSignatureOverMutatedBodyRejected(t *testing.T) {
	f := newPaymentWebhookFixture(t)
	raw := capturedBody(t, "evt_1", "order_Abc123", "pay_X1")
	signature := sign(raw, testWebhookSecret)

	// Even a whitespace change to the raw bytes invalidates the signature.
	mutated := append([]byte(" "), raw...)
	w := f.post(t, mutated, signature)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentWebhookUnknownOrderStillAcked(t *testing.T) {
	f := newPaymentWebhookFixture(t)

	raw := capturedBody(t, "evt_1", "order_Missing", "pay_X1")
	w := f.post(t, raw, sign(raw, testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code, "internal lookup failure never bounces the provider")
}

func TestPaymentWebhookDuplicateAcked(t *testing.T) {
	f := newPaymentWebhookFixture(t)
	order := f.seedOrder(t, "order_Abc123")

	raw := capturedBody(t, "evt_1", "order_Abc123", "pay_X1")
	w := f.post(t, raw, sign(raw, testWebhookSecret))
	require.Equal(t, http.StatusOK, w.Code)

	stored, _ := f.repos.Regular.GetByID(context.Background(), order.ID)
	paidAt := *stored.Core().Payment.PaidAt

	w = f.post(t, raw, sign(raw, testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)

	stored, _ = f.repos.Regular.GetByID(context.Background(), order.ID)
	assert.True(t, stored.Core().Payment.PaidAt.Equal(paidAt))
}
