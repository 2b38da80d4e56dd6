package domain

import "strings"

// MappedStatus is the result of normalizing a provider status string.
type MappedStatus struct {
	Status OrderStatus
	// RTO marks return-to-origin events. They annotate the shipment but do
	// not by themselves move the order status.
	RTO bool
	// Known is false when no rule matched; the raw string is still mirrored
	// onto shipment.status but the order status is left alone.
	Known bool
}

type statusRule struct {
	patterns []string
	result   MappedStatus
}

// statusRules is checked in order. More specific patterns sit above broader
// ones: a raw status like "Cancelled In Transit" must resolve to cancelled,
// not shipped, and "Undelivered" must not match the "delivered" rule.
var statusRules = []statusRule{
	{[]string{"cancel"}, MappedStatus{Status: OrderStatusCancelled, Known: true}},
	{[]string{"rto", "return"}, MappedStatus{Status: OrderStatusUnknown, RTO: true, Known: true}},
	{[]string{"undelivered", "not delivered", "delivery attempt", "delivery failed"}, MappedStatus{Status: OrderStatusShipped, Known: true}},
	{[]string{"delivered"}, MappedStatus{Status: OrderStatusDelivered, Known: true}},
	{[]string{"out for delivery"}, MappedStatus{Status: OrderStatusShipped, Known: true}},
	{[]string{"transit", "pickup", "picked up", "shipped", "dispatched"}, MappedStatus{Status: OrderStatusShipped, Known: true}},
	{[]string{"manifest", "pending", "not picked"}, MappedStatus{Status: OrderStatusProcessing, Known: true}},
}

// MapProviderStatus normalizes a raw courier status string onto the canonical
// lifecycle. Pure and total: unrecognized strings map to the unknown sentinel,
// which callers log and mirror but never write to order.status. The provider
// name is kept for logging; Delhivery and Shiprocket share one vocabulary
// table since their phrasings overlap almost completely.
func MapProviderStatus(provider, raw string) MappedStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return MappedStatus{Status: OrderStatusUnknown}
	}
	for _, rule := range statusRules {
		for _, p := range rule.patterns {
			if strings.Contains(s, p) {
				return rule.result
			}
		}
	}
	return MappedStatus{Status: OrderStatusUnknown}
}
