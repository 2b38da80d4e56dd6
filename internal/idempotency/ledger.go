package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL bounds how long an event key is remembered. 24h comfortably
// covers Delhivery's and Razorpay's retry windows while keeping the ledger
// bounded.
const DefaultTTL = 24 * time.Hour

// Ledger guarantees at-most-once effect per external event. CheckAndMark is
// atomic: it returns true exactly once per key within the TTL window, and the
// caller that got true proceeds with the mutation. Duplicates get false and
// must be acknowledged to the provider as a successful no-op.
type Ledger interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
}

// EventKey derives the deterministic dedupe key for a provider event. Stable
// across retries of the same logical event, distinct across different events:
// a Delhivery "Delivered" for waybill WB100 retried five times is one key;
// the later "RTO Initiated" for the same waybill is another.
func EventKey(provider, eventType, entityID string) string {
	norm := func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return fmt.Sprintf("%s:%s:%s", norm(provider), norm(eventType), norm(entityID))
}
