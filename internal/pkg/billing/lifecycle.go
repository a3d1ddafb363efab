package billing

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/AhmadMHawwash/10xarch-sub002/app/models"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/catalog"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/tokens"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

// LifecycleHandler applies subscription created/updated/deleted events
// to the local subscription projection, delegating balance migrations
// to the token service.
type LifecycleHandler struct {
	repo    Repository
	catalog catalog.Catalog
	tokens  *tokens.Service
}

// NewLifecycleHandler creates a lifecycle handler with an injected
// catalog.
func NewLifecycleHandler(repo Repository, cat catalog.Catalog, tok *tokens.Service) *LifecycleHandler {
	return &LifecycleHandler{repo: repo, catalog: cat, tokens: tok}
}

// HandleCreated inserts the local subscription row, including
// auth-pending signups with status "incomplete". No tokens are granted
// here; the first grant happens on the payment-succeeded path.
func (h *LifecycleHandler) HandleCreated(ctx context.Context, sub *stripe.Subscription) error {
	_ = ctx
	tier, ok := h.catalog.ByPriceID(subscriptionPriceID(sub))
	if !ok {
		log.Printf("billing: subscription %s created with unmapped price %q, skipping", sub.ID, subscriptionPriceID(sub))
		return nil
	}

	owner, ok := ownerFromMetadata(sub.Metadata)
	if !ok {
		log.Printf("billing: subscription %s created without owner metadata, skipping", sub.ID)
		return nil
	}

	row := &models.Subscription{
		ExternalSubscriptionID: sub.ID,
		OwnerType:              owner.Type,
		OwnerID:                owner.ID,
		Tier:                   tier.Key,
		Status:                 string(sub.Status),
		CurrentPeriodStart:     unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:       unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
	}
	if err := h.repo.CreateSubscription(row); err != nil {
		// Storage failures on creation are logged but still acked, so
		// the platform will not redeliver. A lost row here surfaces
		// later through the payment-succeeded live lookup.
		log.Printf("billing: failed to store subscription %s: %v", sub.ID, err)
	}
	return nil
}

// HandleUpdated reconciles status, period and tier fields from the
// upstream event. A tier switch migrates the expiring balance through
// the tier change calculator; a cancel-at-period-end toggle leaves a
// zero-amount audit trail.
func (h *LifecycleHandler) HandleUpdated(ctx context.Context, sub *stripe.Subscription) error {
	stored, err := h.repo.GetByExternalID(sub.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("billing: update for unknown subscription %s, skipping", sub.ID)
			return nil
		}
		return err
	}

	newTier, ok := h.catalog.ByPriceID(subscriptionPriceID(sub))
	if !ok {
		log.Printf("billing: subscription %s updated to unmapped price %q, skipping", sub.ID, subscriptionPriceID(sub))
		return nil
	}

	owner := stored.Owner()
	if newTier.Key != stored.Tier {
		oldTier, ok := h.catalog.ByKey(stored.Tier)
		if !ok {
			log.Printf("billing: subscription %s has unmapped stored tier %q, skipping balance migration", sub.ID, stored.Tier)
		} else {
			change, err := h.tokens.ApplyTierChange(ctx, owner, oldTier, newTier, unixTime(sub.CurrentPeriodEnd))
			if err != nil {
				return err
			}
			log.Printf("billing: migrated %s:%s from %s to %s (consumed=%d newBalance=%d)",
				owner.Type, owner.ID, oldTier.Key, newTier.Key, change.Consumed, change.NewBalance)
		}
	}

	if sub.CancelAtPeriodEnd != stored.CancelAtPeriodEnd {
		reason := models.LedgerReasonCancellationReversed
		if sub.CancelAtPeriodEnd {
			reason = models.LedgerReasonCancellationScheduled
		}
		if err := h.tokens.AppendAudit(ctx, owner, reason); err != nil {
			return err
		}
	}

	// Upstream status passes through unmodified.
	stored.Tier = newTier.Key
	stored.Status = string(sub.Status)
	stored.CurrentPeriodStart = unixTime(sub.CurrentPeriodStart)
	stored.CurrentPeriodEnd = unixTime(sub.CurrentPeriodEnd)
	stored.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	if sub.CanceledAt != 0 {
		stored.CanceledAt = unixTime(sub.CanceledAt)
	}
	return h.repo.SaveSubscription(stored)
}

// HandleDeleted transitions the subscription into the canceled
// terminal state. The status update is keyed by the external id and
// runs even when no local row was found.
func (h *LifecycleHandler) HandleDeleted(ctx context.Context, sub *stripe.Subscription) error {
	stored, err := h.repo.GetByExternalID(sub.ID)
	switch {
	case err == nil:
		if err := h.tokens.AppendAudit(ctx, stored.Owner(), models.LedgerReasonSubscriptionDeleted); err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Printf("billing: deletion for unknown subscription %s", sub.ID)
	default:
		return err
	}

	return h.repo.MarkCanceled(sub.ID, time.Now())
}
