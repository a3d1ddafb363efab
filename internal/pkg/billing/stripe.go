package billing

import (
	"context"
	"strings"
	"time"

	"github.com/AhmadMHawwash/10xarch-sub002/app/models"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/env"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/subscription"
)

// SubscriptionFetcher reads the live subscription state from the
// billing platform. The platform is treated as source of truth
// whenever the local projection may be stale.
type SubscriptionFetcher interface {
	Fetch(ctx context.Context, externalSubscriptionID string) (*stripe.Subscription, error)
}

type stripeClient struct{}

// NewStripeClientFromEnv configures the Stripe SDK key from the
// environment and returns a live subscription fetcher.
func NewStripeClientFromEnv() SubscriptionFetcher {
	stripe.Key = env.GetEnv("STRIPE_SECRET_KEY", "")
	return &stripeClient{}
}

func (c *stripeClient) Fetch(ctx context.Context, externalSubscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscription.Get(externalSubscriptionID, params)
}

// ownerFromMetadata resolves the owner reference carried in billing
// platform metadata. Checkout and subscription objects carry
// owner_id/owner_type keys; user_id is accepted as a legacy alias.
func ownerFromMetadata(metadata map[string]string) (models.OwnerRef, bool) {
	id := strings.TrimSpace(metadata["owner_id"])
	ownerType := metadata["owner_type"]
	if id == "" {
		id = strings.TrimSpace(metadata["user_id"])
		ownerType = models.OwnerTypeUser
	}
	if id == "" {
		return models.OwnerRef{}, false
	}
	return models.OwnerRef{Type: models.NormalizeOwnerType(ownerType), ID: id}, true
}

// subscriptionPriceID returns the price id of the subscription's first
// item. The product sells single-item subscriptions only.
func subscriptionPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	item := sub.Items.Data[0]
	if item == nil || item.Price == nil {
		return ""
	}
	return item.Price.ID
}

// invoiceSubscriptionID returns the external subscription id an
// invoice belongs to, or "" for standalone invoices.
func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv == nil || inv.Subscription == nil {
		return ""
	}
	return inv.Subscription.ID
}

// unixTime converts a billing platform unix timestamp into a nullable
// local time.
func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
