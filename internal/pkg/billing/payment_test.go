package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/AhmadMHawwash/10xarch-sub002/app/models"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/tokens"
)

func newPaymentFixture(live *fakeFetcher) (*PaymentHandler, *memorySubscriptionRepo, *memoryTokenRepo) {
	repo := newMemoryRepo()
	tokRepo := newMemoryTokenRepo()
	handler := NewPaymentHandler(repo, newTestCatalog(), tokens.NewService(tokRepo), live)
	return handler, repo, tokRepo
}

func subscriptionInvoice(subID string, reason stripe.InvoiceBillingReason) *stripe.Invoice {
	return &stripe.Invoice{
		ID:            "in_1",
		BillingReason: reason,
		Subscription:  &stripe.Subscription{ID: subID},
	}
}

func TestPaymentSucceededReplacesExpiringBucket(t *testing.T) {
	live := &fakeFetcher{sub: newStripeSubscription("sub_1", "price_pro", stripe.SubscriptionStatusActive, ownerMetadata())}
	handler, _, tokRepo := newPaymentFixture(live)

	// Leftover from the prior cycle; a renewal replaces, not stacks.
	stale := time.Now().Add(24 * time.Hour)
	require.NoError(t, tokRepo.CreateBalance(&models.TokenBalance{
		OwnerType:            owner.Type,
		OwnerID:              owner.ID,
		ExpiringTokens:       2000,
		ExpiringTokensExpiry: &stale,
		NonexpiringTokens:    700,
	}))

	inv := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionCycle)
	require.NoError(t, handler.HandlePaymentSucceeded(context.Background(), inv))

	balance, err := tokRepo.GetBalance(owner.Type, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), balance.ExpiringTokens)
	assert.Equal(t, int64(700), balance.NonexpiringTokens)
	require.NotNil(t, balance.ExpiringTokensExpiry)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *balance.ExpiringTokensExpiry, time.Minute)

	require.Len(t, tokRepo.entries, 1)
	assert.Equal(t, models.LedgerReasonSubscription, tokRepo.entries[0].Reason)
	assert.Equal(t, int64(15000), tokRepo.entries[0].Amount)
}

func TestPaymentSucceededIgnoresStandaloneInvoice(t *testing.T) {
	live := &fakeFetcher{}
	handler, _, tokRepo := newPaymentFixture(live)

	require.NoError(t, handler.HandlePaymentSucceeded(context.Background(), &stripe.Invoice{ID: "in_1"}))
	assert.Zero(t, live.calls)
	assert.Empty(t, tokRepo.entries)
}

func TestPaymentSucceededSkipsTierChangeInvoices(t *testing.T) {
	live := &fakeFetcher{sub: newStripeSubscription("sub_1", "price_pro", stripe.SubscriptionStatusActive, ownerMetadata())}
	handler, _, tokRepo := newPaymentFixture(live)

	update := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionUpdate)
	require.NoError(t, handler.HandlePaymentSucceeded(context.Background(), update))

	prorated := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionCycle)
	prorated.Lines = &stripe.InvoiceLineItemList{
		Data: []*stripe.InvoiceLineItem{{Proration: true}},
	}
	require.NoError(t, handler.HandlePaymentSucceeded(context.Background(), prorated))

	assert.Zero(t, live.calls)
	assert.Empty(t, tokRepo.balances)
	assert.Empty(t, tokRepo.entries)
}

func TestPaymentSucceededActivatesIncompleteSubscription(t *testing.T) {
	live := &fakeFetcher{sub: newStripeSubscription("sub_1", "price_starter", stripe.SubscriptionStatusActive, ownerMetadata())}
	handler, repo, tokRepo := newPaymentFixture(live)
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		ExternalSubscriptionID: "sub_1",
		OwnerType:              owner.Type,
		OwnerID:                owner.ID,
		Tier:                   "starter",
		Status:                 models.SubscriptionStatusIncomplete,
	}))

	inv := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionCreate)
	require.NoError(t, handler.HandlePaymentSucceeded(context.Background(), inv))

	stored, err := repo.GetByExternalID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, stored.Status)

	balance, err := tokRepo.GetBalance(owner.Type, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance.ExpiringTokens)
}

func TestPaymentSucceededFallsBackToStoredRow(t *testing.T) {
	// Live state carries neither owner metadata nor a mapped price.
	live := &fakeFetcher{sub: &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusActive}}
	handler, repo, tokRepo := newPaymentFixture(live)
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		ExternalSubscriptionID: "sub_1",
		OwnerType:              owner.Type,
		OwnerID:                owner.ID,
		Tier:                   "premium",
		Status:                 models.SubscriptionStatusActive,
	}))

	inv := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionCycle)
	require.NoError(t, handler.HandlePaymentSucceeded(context.Background(), inv))

	balance, err := tokRepo.GetBalance(owner.Type, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), balance.ExpiringTokens)
}

func TestPaymentSucceededSkipsWhenNothingResolves(t *testing.T) {
	live := &fakeFetcher{sub: &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusActive}}
	handler, _, tokRepo := newPaymentFixture(live)

	inv := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionCycle)
	require.NoError(t, handler.HandlePaymentSucceeded(context.Background(), inv))
	assert.Empty(t, tokRepo.balances)
}

func TestPaymentSucceededPropagatesLiveLookupFailure(t *testing.T) {
	live := &fakeFetcher{err: errors.New("upstream 500")}
	handler, _, tokRepo := newPaymentFixture(live)

	inv := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionCycle)
	err := handler.HandlePaymentSucceeded(context.Background(), inv)
	require.Error(t, err)
	assert.Empty(t, tokRepo.entries)
}

func TestPaymentFailedPersistsLiveStatusVerbatim(t *testing.T) {
	live := &fakeFetcher{sub: newStripeSubscription("sub_1", "price_pro", "past_due", ownerMetadata())}
	handler, repo, tokRepo := newPaymentFixture(live)
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		ExternalSubscriptionID: "sub_1",
		OwnerType:              owner.Type,
		OwnerID:                owner.ID,
		Tier:                   "pro",
		Status:                 models.SubscriptionStatusActive,
	}))

	inv := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionCycle)
	require.NoError(t, handler.HandlePaymentFailed(context.Background(), inv))

	stored, err := repo.GetByExternalID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, "past_due", stored.Status)
	assert.Empty(t, tokRepo.balances)
	assert.Empty(t, tokRepo.entries)
}

func TestPaymentFailedRequiresOwnerMetadata(t *testing.T) {
	live := &fakeFetcher{sub: newStripeSubscription("sub_1", "price_pro", "past_due", nil)}
	handler, repo, _ := newPaymentFixture(live)

	inv := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionCycle)
	err := handler.HandlePaymentFailed(context.Background(), inv)
	require.Error(t, err)
	assert.Empty(t, repo.statusUpdates)
}

func TestPaymentActionRequiredForcesIncomplete(t *testing.T) {
	handler, repo, _ := newPaymentFixture(&fakeFetcher{})
	require.NoError(t, repo.CreateSubscription(&models.Subscription{
		ExternalSubscriptionID: "sub_1",
		OwnerType:              owner.Type,
		OwnerID:                owner.ID,
		Tier:                   "pro",
		Status:                 models.SubscriptionStatusActive,
	}))

	inv := subscriptionInvoice("sub_1", stripe.InvoiceBillingReasonSubscriptionCycle)
	require.NoError(t, handler.HandlePaymentActionRequired(context.Background(), inv))

	stored, err := repo.GetByExternalID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusIncomplete, stored.Status)
}

func TestCheckoutCompletedGrantsNonexpiringTokens(t *testing.T) {
	handler, _, tokRepo := newPaymentFixture(&fakeFetcher{})

	session := &stripe.CheckoutSession{
		ID:   "cs_1",
		Mode: stripe.CheckoutSessionModePayment,
		Metadata: map[string]string{
			"owner_id":     "u_1",
			"owner_type":   "user",
			"tokens":       "1000",
			"bonus_tokens": "250",
		},
	}
	require.NoError(t, handler.HandleCheckoutCompleted(context.Background(), session))

	balance, err := tokRepo.GetBalance(owner.Type, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), balance.NonexpiringTokens)
	assert.Zero(t, balance.ExpiringTokens)

	require.Len(t, tokRepo.entries, 1)
	assert.Equal(t, models.LedgerReasonTopup, tokRepo.entries[0].Reason)
	assert.Equal(t, int64(1250), tokRepo.entries[0].Amount)
}

func TestCheckoutCompletedIgnoresSubscriptionMode(t *testing.T) {
	handler, _, tokRepo := newPaymentFixture(&fakeFetcher{})

	session := &stripe.CheckoutSession{
		ID:       "cs_1",
		Mode:     stripe.CheckoutSessionModeSubscription,
		Metadata: map[string]string{"owner_id": "u_1", "tokens": "1000"},
	}
	require.NoError(t, handler.HandleCheckoutCompleted(context.Background(), session))
	assert.Empty(t, tokRepo.balances)
}

func TestCheckoutCompletedRequiresTokenAmount(t *testing.T) {
	handler, _, tokRepo := newPaymentFixture(&fakeFetcher{})

	session := &stripe.CheckoutSession{
		ID:       "cs_1",
		Mode:     stripe.CheckoutSessionModePayment,
		Metadata: map[string]string{"owner_id": "u_1", "owner_type": "user"},
	}
	require.NoError(t, handler.HandleCheckoutCompleted(context.Background(), session))
	assert.Empty(t, tokRepo.balances)
	assert.Empty(t, tokRepo.entries)
}
