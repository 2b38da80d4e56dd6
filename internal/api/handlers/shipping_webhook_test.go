package handlers

import (
	"bytes"
	"context"
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

const testWebhookKey = "shhh-courier"

type shippingWebhookFixture struct {
	router *gin.Engine
	repos  *repository.Repositories
	ledger *idmemory.Store
}

func newShippingWebhookFixture(t *testing.T) *shippingWebhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ShippingProvider:   "delhivery",
		ShippingWebhookKey: testWebhookKey,
	}
	repos := memrepo.NewRepositories()
	ledger := idmemory.NewStore(time.Hour)
	t.Cleanup(ledger.Close)
	metrics := observability.NewNopMetrics()
	loc := locator.New(repos, nil)
	rec := service.NewReconciler(repos, service.NewNotifier("", nil), metrics, nil)

	router := gin.New()
	router.POST("/webhooks/shipping", HandleShippingWebhook(cfg, loc, rec, ledger, metrics, zap.NewNop()))
	return &shippingWebhookFixture{router: router, repos: repos, ledger: ledger}
}

func (f *shippingWebhookFixture) seedOrder(t *testing.T, trackingCode string) *domain.RegularOrder {
	t.Helper()
	order := &domain.RegularOrder{
		OrderCore: domain.OrderCore{
			ID:     uuid.New(),
			Status: domain.OrderStatusProcessing,
			Shipment: &domain.Shipment{
				Provider:     "delhivery",
				TrackingCode: trackingCode,
			},
		},
	}
	require.NoError(t, f.repos.Regular.Create(context.Background(), order))
	return order
}

func (f *shippingWebhookFixture) post(t *testing.T, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shipping", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestShippingWebhookAppliesStatus(t *testing.T) {
	f := newShippingWebhookFixture(t)
	order := f.seedOrder(t, "WB100")

	w := f.post(t, testWebhookKey, gin.H{"waybill": "WB100", "status": "In Transit"})
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := f.repos.Regular.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, stored.Core().Status)
	assert.Len(t, stored.Core().Shipment.WebhookLog, 1)
}

func TestShippingWebhookBadKey(t *testing.T) {
	f := newShippingWebhookFixture(t)
	order := f.seedOrder(t, "WB100")

	w := f.post(t, "wrong-key", gin.H{"waybill": "WB100", "status": "Delivered"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Auth failure must leave zero side effects behind.
	stored, _ := f.repos.Regular.GetByID(context.Background(), order.ID)
	assert.Empty(t, stored.Core().Shipment.WebhookLog)
	assert.Equal(t, domain.OrderStatusProcessing, stored.Core().Status)
	assert.Equal(t, 0, f.ledger.Len(), "no ledger writes before auth")
}

func TestShippingWebhookMissingKey(t *testing.T) {
	f := newShippingWebhookFixture(t)
	w := f.post(t, "", gin.H{"waybill": "WB100", "status": "Delivered"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestShippingWebhookDuplicateAcked(t *testing.T) {
	f := newShippingWebhookFixture(t)
	order := f.seedOrder(t, "WB100")

	w := f.post(t, testWebhookKey, gin.H{"waybill": "WB100", "status": "Delivered"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.post(t, testWebhookKey, gin.H{"waybill": "WB100", "status": "Delivered"})
	assert.Equal(t, http.StatusOK, w.Code, "duplicate is a successful no-op")

	stored, _ := f.repos.Regular.GetByID(context.Background(), order.ID)
	assert.Len(t, stored.Core().Shipment.WebhookLog, 1, "duplicate appends nothing")
}

func TestShippingWebhookUnknownWaybill(t *testing.T) {
	f := newShippingWebhookFixture(t)
	w := f.post(t, testWebhookKey, gin.H{"waybill": "WB404", "status": "Delivered"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShippingWebhookMalformedBodyAcked(t *testing.T) {
	// An authenticated but broken payload is acknowledged so the courier does
	// not retry-storm it; nothing is applied and nothing enters the ledger.
	f := newShippingWebhookFixture(t)
	order := f.seedOrder(t, "WB100")

	for name, w := range map[string]*httptest.ResponseRecorder{
		"missing status":    f.post(t, testWebhookKey, gin.H{"waybill": "WB100"}),
		"missing reference": f.post(t, testWebhookKey, gin.H{"status": "Delivered"}),
	} {
		assert.Equal(t, http.StatusOK, w.Code, name)
		var resp struct {
			Success bool `json:"success"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), name)
		assert.False(t, resp.Success, name)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/shipping", bytes.NewReader([]byte("{broken")))
	req.Header.Set("x-api-key", testWebhookKey)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "unparseable JSON")

	stored, _ := f.repos.Regular.GetByID(context.Background(), order.ID)
	assert.Empty(t, stored.Core().Shipment.WebhookLog)
	assert.Equal(t, domain.OrderStatusProcessing, stored.Core().Status)
	assert.Equal(t, 0, f.ledger.Len(), "rejected payloads never enter the ledger")
}

func TestShippingWebhookCurrentStatusFallback(t *testing.T) {
	f := newShippingWebhookFixture(t)
	order := f.seedOrder(t, "WB100")

	w := f.post(t, testWebhookKey, gin.H{"waybill": "WB100", "current_status": "Out For Delivery"})
	assert.Equal(t, http.StatusOK, w.Code)

	stored, _ := f.repos.Regular.GetByID(context.Background(), order.ID)
	assert.Equal(t, domain.OrderStatusShipped, stored.Core().Status)
}
