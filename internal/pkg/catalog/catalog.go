package catalog

import (
	"strings"

	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/env"
)

// Tier keys sold by the product.
const (
	TierStarter = "starter"
	TierPro     = "pro"
	TierPremium = "premium"
)

// Monthly token allotments per tier.
const (
	StarterMonthlyTokens = 5000
	ProMonthlyTokens     = 15000
	PremiumMonthlyTokens = 25000
)

// Tier maps an external price id to a named plan and its monthly token
// allotment.
type Tier struct {
	Key           string
	PriceID       string
	MonthlyTokens int64
}

// Catalog is the static read-only price-to-tier mapping. It is built
// once at startup and injected into handlers; it never hits storage.
type Catalog struct {
	byPriceID map[string]Tier
	byKey     map[string]Tier
}

// New builds a catalog from the given tiers. Tiers without a price id
// are still resolvable by key.
func New(tiers ...Tier) Catalog {
	c := Catalog{
		byPriceID: make(map[string]Tier, len(tiers)),
		byKey:     make(map[string]Tier, len(tiers)),
	}
	for _, t := range tiers {
		if t.PriceID != "" {
			c.byPriceID[t.PriceID] = t
		}
		c.byKey[t.Key] = t
	}
	return c
}

// FromEnv builds the catalog with price ids taken from the
// environment, so each deployment can point at its own billing
// platform prices without a code change.
func FromEnv() Catalog {
	return New(
		Tier{Key: TierStarter, PriceID: env.GetEnv("STRIPE_PRICE_STARTER", ""), MonthlyTokens: StarterMonthlyTokens},
		Tier{Key: TierPro, PriceID: env.GetEnv("STRIPE_PRICE_PRO", ""), MonthlyTokens: ProMonthlyTokens},
		Tier{Key: TierPremium, PriceID: env.GetEnv("STRIPE_PRICE_PREMIUM", ""), MonthlyTokens: PremiumMonthlyTokens},
	)
}

// ByPriceID resolves an external price id to its tier.
func (c Catalog) ByPriceID(priceID string) (Tier, bool) {
	t, ok := c.byPriceID[strings.TrimSpace(priceID)]
	return t, ok
}

// ByKey resolves a tier key to its tier definition.
func (c Catalog) ByKey(key string) (Tier, bool) {
	t, ok := c.byKey[strings.ToLower(strings.TrimSpace(key))]
	return t, ok
}
