package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"github.com/AhmadMHawwash/10xarch-sub002/app/models"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/catalog"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/tokens"
)

type statusUpdate struct {
	externalID string
	status     string
}

type memorySubscriptionRepo struct {
	subs              map[string]*models.Subscription
	events            map[string]*models.WebhookEvent
	eventsByID        map[uint]*models.WebhookEvent
	createErr         error
	nextID            uint
	statusUpdates     []statusUpdate
	markCanceledCalls []string
}

func newMemoryRepo() *memorySubscriptionRepo {
	return &memorySubscriptionRepo{
		subs:       make(map[string]*models.Subscription),
		events:     make(map[string]*models.WebhookEvent),
		eventsByID: make(map[uint]*models.WebhookEvent),
	}
}

func (r *memorySubscriptionRepo) GetByExternalID(externalID string) (*models.Subscription, error) {
	stored, ok := r.subs[externalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memorySubscriptionRepo) CreateSubscription(sub *models.Subscription) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	sub.ID = r.nextID
	copied := *sub
	r.subs[sub.ExternalSubscriptionID] = &copied
	return nil
}

func (r *memorySubscriptionRepo) SaveSubscription(sub *models.Subscription) error {
	copied := *sub
	r.subs[sub.ExternalSubscriptionID] = &copied
	return nil
}

func (r *memorySubscriptionRepo) UpdateStatus(externalID, status string) error {
	r.statusUpdates = append(r.statusUpdates, statusUpdate{externalID: externalID, status: status})
	if stored, ok := r.subs[externalID]; ok {
		stored.Status = status
	}
	return nil
}

func (r *memorySubscriptionRepo) MarkCanceled(externalID string, canceledAt time.Time) error {
	r.markCanceledCalls = append(r.markCanceledCalls, externalID)
	if stored, ok := r.subs[externalID]; ok {
		stored.Status = models.SubscriptionStatusCanceled
		stored.CanceledAt = &canceledAt
	}
	return nil
}

func (r *memorySubscriptionRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if stored, ok := r.events[key]; ok {
		copied := *stored
		return false, &copied, nil
	}
	r.nextID++
	event.ID = r.nextID
	copied := *event
	r.events[key] = &copied
	r.eventsByID[event.ID] = &copied
	return true, event, nil
}

func (r *memorySubscriptionRepo) MarkWebhookProcessed(id uint, processingError string) error {
	stored, ok := r.eventsByID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	stored.ProcessedAt = &now
	stored.ProcessingError = processingError
	return nil
}

// memoryTokenRepo is a minimal in-memory tokens.Repository so handler
// tests can observe balance mutations and ledger entries.
type memoryTokenRepo struct {
	balances map[string]*models.TokenBalance
	entries  []models.TokenLedgerEntry
	nextID   uint
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{balances: make(map[string]*models.TokenBalance)}
}

func ownerKey(ownerType, ownerID string) string {
	return fmt.Sprintf("%s:%s", ownerType, ownerID)
}

func (r *memoryTokenRepo) GetBalance(ownerType, ownerID string) (*models.TokenBalance, error) {
	stored, ok := r.balances[ownerKey(ownerType, ownerID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memoryTokenRepo) CreateBalance(balance *models.TokenBalance) error {
	r.nextID++
	balance.ID = r.nextID
	copied := *balance
	r.balances[ownerKey(balance.OwnerType, balance.OwnerID)] = &copied
	return nil
}

func (r *memoryTokenRepo) SaveBalance(balance *models.TokenBalance) error {
	copied := *balance
	r.balances[ownerKey(balance.OwnerType, balance.OwnerID)] = &copied
	return nil
}

func (r *memoryTokenRepo) CreateLedgerEntry(entry *models.TokenLedgerEntry) error {
	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memoryTokenRepo) Transaction(fn func(tokens.Repository) error) error {
	return fn(r)
}

type fakeFetcher struct {
	sub   *stripe.Subscription
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, externalSubscriptionID string) (*stripe.Subscription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.sub != nil {
		return f.sub, nil
	}
	return &stripe.Subscription{ID: externalSubscriptionID}, nil
}

func newTestCatalog() catalog.Catalog {
	return catalog.New(
		catalog.Tier{Key: catalog.TierStarter, PriceID: "price_starter", MonthlyTokens: catalog.StarterMonthlyTokens},
		catalog.Tier{Key: catalog.TierPro, PriceID: "price_pro", MonthlyTokens: catalog.ProMonthlyTokens},
		catalog.Tier{Key: catalog.TierPremium, PriceID: "price_premium", MonthlyTokens: catalog.PremiumMonthlyTokens},
	)
}

func newStripeSubscription(id, priceID string, status stripe.SubscriptionStatus, metadata map[string]string) *stripe.Subscription {
	return &stripe.Subscription{
		ID:     id,
		Status: status,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: priceID}},
			},
		},
		Metadata: metadata,
	}
}

func ownerMetadata() map[string]string {
	return map[string]string{"owner_id": "u_1", "owner_type": "user"}
}

var owner = models.OwnerRef{Type: models.OwnerTypeUser, ID: "u_1"}
