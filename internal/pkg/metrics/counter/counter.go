package counter

import (
	"context"
	"fmt"

	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/cache"
)

const webhookEventsKey = "billing:counters:webhook_events"

// Webhook processing outcomes tracked per event type.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// AddWebhookEvent increments the counter for one webhook processing
// outcome in Redis. Counting is best-effort; a cache failure must not
// affect webhook handling.
func AddWebhookEvent(eventType, outcome string) error {
	ctx := context.Background()
	field := fmt.Sprintf("%s:%s", eventType, outcome)
	return cache.GetClient().HIncrBy(ctx, webhookEventsKey, field, 1).Err()
}

// Snapshot returns the current webhook counters keyed by
// "<event_type>:<outcome>".
func Snapshot() (map[string]string, error) {
	ctx := context.Background()
	return cache.GetClient().HGetAll(ctx, webhookEventsKey).Result()
}
