package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/AhmadMHawwash/10xarch-sub002/app/models"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/catalog"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/tokens"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

// PaymentHandler applies invoice and checkout events, granting renewal
// tokens and adjusting subscription status.
type PaymentHandler struct {
	repo    Repository
	catalog catalog.Catalog
	tokens  *tokens.Service
	live    SubscriptionFetcher
}

// NewPaymentHandler creates a payment handler with an injected catalog
// and live subscription fetcher.
func NewPaymentHandler(repo Repository, cat catalog.Catalog, tok *tokens.Service, live SubscriptionFetcher) *PaymentHandler {
	return &PaymentHandler{repo: repo, catalog: cat, tokens: tok, live: live}
}

// HandlePaymentSucceeded grants the tier's full monthly allotment as
// expiring tokens, replacing any leftover expiring balance from the
// prior cycle. Tier-change proration invoices are skipped; those were
// already reconciled on the subscription-updated path.
func (h *PaymentHandler) HandlePaymentSucceeded(ctx context.Context, inv *stripe.Invoice) error {
	subID := invoiceSubscriptionID(inv)
	if subID == "" {
		return nil
	}
	if isTierChangeInvoice(inv) {
		log.Printf("billing: invoice %s is a tier-change proration, skipping grant", inv.ID)
		return nil
	}

	live, err := h.live.Fetch(ctx, subID)
	if err != nil {
		return fmt.Errorf("live subscription lookup for %s: %w", subID, err)
	}

	stored, err := h.repo.GetByExternalID(subID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		log.Printf("billing: payment succeeded for unknown subscription %s", subID)
		stored = nil
	}

	// The platform outranks the local projection: an auth-pending
	// signup whose first charge cleared goes active now.
	if stored != nil && stored.Status == models.SubscriptionStatusIncomplete &&
		string(live.Status) == models.SubscriptionStatusActive {
		if err := h.repo.UpdateStatus(subID, models.SubscriptionStatusActive); err != nil {
			return err
		}
	}

	owner, ok := ownerFromMetadata(live.Metadata)
	if !ok && stored != nil {
		owner, ok = stored.Owner(), true
	}
	if !ok {
		log.Printf("billing: payment succeeded for %s but no owner could be resolved, skipping grant", subID)
		return nil
	}

	tier, ok := h.catalog.ByPriceID(subscriptionPriceID(live))
	if !ok && stored != nil {
		tier, ok = h.catalog.ByKey(stored.Tier)
	}
	if !ok {
		log.Printf("billing: payment succeeded for %s but no tier could be resolved, skipping grant", subID)
		return nil
	}

	_, err = h.tokens.Grant(ctx, tokens.GrantInput{
		Owner:             owner,
		BaseAmount:        tier.MonthlyTokens,
		SubscriptionGrant: true,
	})
	return err
}

// HandlePaymentFailed persists the live status string as-is and leaves
// balances alone; the platform's own retry cadence precedes any
// eventual deletion event. A missing owner id is fatal here, unlike
// the logged-and-acked lookups elsewhere.
func (h *PaymentHandler) HandlePaymentFailed(ctx context.Context, inv *stripe.Invoice) error {
	subID := invoiceSubscriptionID(inv)
	if subID == "" {
		return nil
	}

	live, err := h.live.Fetch(ctx, subID)
	if err != nil {
		return fmt.Errorf("live subscription lookup for %s: %w", subID, err)
	}

	owner, ok := ownerFromMetadata(live.Metadata)
	if !ok {
		return fmt.Errorf("payment failed for subscription %s but no owner id in metadata", subID)
	}

	log.Printf("billing: payment failed for %s (owner %s:%s), status now %q", subID, owner.Type, owner.ID, live.Status)
	return h.repo.UpdateStatus(subID, string(live.Status))
}

// HandlePaymentActionRequired forces the local status to incomplete; a
// later update or payment event corrects any overcorrection.
func (h *PaymentHandler) HandlePaymentActionRequired(ctx context.Context, inv *stripe.Invoice) error {
	_ = ctx
	subID := invoiceSubscriptionID(inv)
	if subID == "" {
		return nil
	}
	return h.repo.UpdateStatus(subID, models.SubscriptionStatusIncomplete)
}

// HandleCheckoutCompleted grants nonexpiring tokens for one-time token
// pack purchases. Subscription-mode checkouts settle through invoice
// events instead.
func (h *PaymentHandler) HandleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.Mode != stripe.CheckoutSessionModePayment {
		return nil
	}

	owner, ok := ownerFromMetadata(session.Metadata)
	if !ok {
		log.Printf("billing: checkout %s completed without owner metadata, skipping", session.ID)
		return nil
	}

	base := metadataAmount(session.Metadata, "tokens")
	bonus := metadataAmount(session.Metadata, "bonus_tokens")
	if base <= 0 {
		log.Printf("billing: checkout %s completed without a token amount, skipping", session.ID)
		return nil
	}

	_, err := h.tokens.Grant(ctx, tokens.GrantInput{
		Owner:       owner,
		BaseAmount:  base,
		BonusAmount: bonus,
	})
	return err
}

// isTierChangeInvoice reports whether an invoice reflects a tier
// change: either the explicit subscription-update billing reason, or a
// cycle renewal that carries a proration line item.
func isTierChangeInvoice(inv *stripe.Invoice) bool {
	if inv.BillingReason == stripe.InvoiceBillingReasonSubscriptionUpdate {
		return true
	}
	if inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle || inv.Lines == nil {
		return false
	}
	for _, line := range inv.Lines.Data {
		if line != nil && line.Proration {
			return true
		}
	}
	return false
}

func metadataAmount(metadata map[string]string, key string) int64 {
	n, err := strconv.ParseInt(metadata[key], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
