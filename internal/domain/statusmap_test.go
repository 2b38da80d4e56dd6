package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  OrderStatus
		rto   bool
		known bool
	}{
		{"delivered", "Delivered", OrderStatusDelivered, false, true},
		{"delivered lowercase", "delivered to consignee", OrderStatusDelivered, false, true},
		{"in transit", "In Transit", OrderStatusShipped, false, true},
		{"shipped", "Shipped", OrderStatusShipped, false, true},
		{"dispatched", "Dispatched", OrderStatusShipped, false, true},
		{"out for delivery", "Out For Delivery", OrderStatusShipped, false, true},
		{"picked up", "Picked Up", OrderStatusShipped, false, true},
		{"pending pickup", "Pending", OrderStatusProcessing, false, true},
		{"manifested", "Manifested", OrderStatusProcessing, false, true},
		{"not picked", "Not Picked", OrderStatusProcessing, false, true},
		{"cancelled", "Cancelled", OrderStatusCancelled, false, true},
		// Cancellation outranks the transit keyword.
		{"cancelled in transit", "Cancelled In Transit", OrderStatusCancelled, false, true},
		// "Undelivered" contains "delivered" but is a failed attempt.
		{"undelivered", "Undelivered", OrderStatusShipped, false, true},
		{"delivery attempt", "Delivery Attempt Failed", OrderStatusShipped, false, true},
		{"rto initiated", "RTO Initiated", OrderStatusUnknown, true, true},
		{"returned", "Returned To Origin", OrderStatusUnknown, true, true},
		{"unknown", "Customs Hold", OrderStatusUnknown, false, false},
		{"empty", "", OrderStatusUnknown, false, false},
		{"whitespace", "   ", OrderStatusUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapProviderStatus("delhivery", tt.raw)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.rto, got.RTO, "RTO flag")
			assert.Equal(t, tt.known, got.Known, "Known flag")
		})
	}
}

func TestMapProviderStatusSameVocabularyAcrossProviders(t *testing.T) {
	for _, provider := range []string{"delhivery", "shiprocket"} {
		got := MapProviderStatus(provider, "In Transit")
		assert.Equal(t, OrderStatusShipped, got.Status, provider)
	}
}
