package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AhmadMHawwash/10xarch-sub002/app/models"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/cache"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/catalog"
	"gorm.io/gorm"
)

// Subscription grants stay usable for one billing cycle.
const subscriptionGrantValidity = 30 * 24 * time.Hour

// ErrNoBalance is returned by deduction and balance reads when the
// owner has no balance row. Deduction never lazily creates one.
var ErrNoBalance = errors.New("no token balance exists for owner")

// Service owns every TokenBalance and TokenLedgerEntry write. Webhook
// handlers call into it instead of touching balances directly.
type Service struct {
	repo Repository
	// afterMutation runs best-effort after a committed balance change,
	// e.g. to drop the cached balance snapshot.
	afterMutation func(ownerType, ownerID string)
}

// NewService creates a token service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a token service from a GORM DB handle with
// cache invalidation wired in.
func NewServiceFromDB(db *gorm.DB) *Service {
	s := NewService(NewRepository(db))
	s.afterMutation = cache.InvalidateBalance
	return s
}

// GrantInput describes a token grant. Subscription grants replace the
// expiring bucket; purchase grants increment the nonexpiring bucket.
type GrantInput struct {
	Owner             models.OwnerRef
	BaseAmount        int64
	BonusAmount       int64
	SubscriptionGrant bool
}

// DeductResult reports the outcome of a usage deduction.
type DeductResult struct {
	TokensDeducted     int64 `json:"tokens_deducted"`
	ExpiringBalance    int64 `json:"expiring_balance"`
	NonexpiringBalance int64 `json:"nonexpiring_balance"`
}

// Grant credits tokens to an owner, lazily creating the balance row on
// first grant. A subscription grant absolute-sets the expiring bucket
// and resets its expiry to now + 30 days; a purchase grant increments
// the nonexpiring bucket. Balance write and ledger entry commit in one
// transaction. Returns the total granted.
func (s *Service) Grant(ctx context.Context, in GrantInput) (int64, error) {
	_ = ctx
	if !in.Owner.Valid() {
		return 0, errors.New("a valid owner reference is required")
	}
	total := in.BaseAmount + in.BonusAmount
	if total <= 0 {
		return 0, errors.New("grant total must be positive")
	}

	err := s.repo.Transaction(func(tx Repository) error {
		balance, fresh, err := loadOrNewBalance(tx, in.Owner)
		if err != nil {
			return err
		}

		entry := &models.TokenLedgerEntry{
			OwnerType: in.Owner.Type,
			OwnerID:   in.Owner.ID,
			Amount:    total,
		}
		if in.SubscriptionGrant {
			expiry := time.Now().Add(subscriptionGrantValidity)
			balance.ExpiringTokens = total
			balance.ExpiringTokensExpiry = &expiry
			entry.TokenType = models.TokenTypeExpiring
			entry.Reason = models.LedgerReasonSubscription
			entry.ExpiresAt = &expiry
		} else {
			balance.NonexpiringTokens += total
			entry.TokenType = models.TokenTypeNonexpiring
			entry.Reason = models.LedgerReasonTopup
		}

		if err := persistBalance(tx, balance, fresh); err != nil {
			return err
		}
		return tx.CreateLedgerEntry(entry)
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(in.Owner)
	return total, nil
}

// Deduct debits usage against the expiring bucket first, overflowing
// into the nonexpiring bucket. It never fails for insufficient funds:
// the nonexpiring bucket may go negative, while a single call can
// never push the expiring bucket below zero. An expired positive
// expiring balance is excluded from availability but left untouched.
func (s *Service) Deduct(ctx context.Context, owner models.OwnerRef, tokensUsed int64, reason string) (*DeductResult, error) {
	_ = ctx
	if !owner.Valid() {
		return nil, errors.New("a valid owner reference is required")
	}
	if tokensUsed <= 0 {
		return nil, errors.New("tokens used must be positive")
	}
	if reason == "" {
		reason = "usage"
	}

	var result DeductResult
	err := s.repo.Transaction(func(tx Repository) error {
		balance, err := tx.GetBalance(owner.Type, owner.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s:%s", ErrNoBalance, owner.Type, owner.ID)
			}
			return err
		}

		expiringAvailable := balance.ExpiringAvailable(time.Now())
		expiringUsed := tokensUsed
		if expiringUsed > expiringAvailable {
			expiringUsed = expiringAvailable
		}
		nonexpiringUsed := tokensUsed - expiringUsed

		balance.ExpiringTokens -= expiringUsed
		balance.NonexpiringTokens -= nonexpiringUsed
		if err := tx.SaveBalance(balance); err != nil {
			return err
		}

		if expiringUsed != 0 {
			if err := tx.CreateLedgerEntry(&models.TokenLedgerEntry{
				OwnerType: owner.Type,
				OwnerID:   owner.ID,
				TokenType: models.TokenTypeExpiring,
				Amount:    -expiringUsed,
				Reason:    reason,
			}); err != nil {
				return err
			}
		}
		if nonexpiringUsed != 0 {
			if err := tx.CreateLedgerEntry(&models.TokenLedgerEntry{
				OwnerType: owner.Type,
				OwnerID:   owner.ID,
				TokenType: models.TokenTypeNonexpiring,
				Amount:    -nonexpiringUsed,
				Reason:    reason,
			}); err != nil {
				return err
			}
		}

		result = DeductResult{
			TokensDeducted:     tokensUsed,
			ExpiringBalance:    balance.ExpiringTokens,
			NonexpiringBalance: balance.NonexpiringTokens,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(owner)
	return &result, nil
}

// ApplyTierChange migrates the expiring bucket between two tiers using
// ComputeTierChange and replaces the expiry with the new cycle end. If
// no balance row exists, remaining is treated as 0 and a fresh row is
// inserted. The ledger records the net signed delta, which may be
// negative on downgrades.
func (s *Service) ApplyTierChange(ctx context.Context, owner models.OwnerRef, oldTier, newTier catalog.Tier, cycleEnd *time.Time) (TierChange, error) {
	_ = ctx
	if !owner.Valid() {
		return TierChange{}, errors.New("a valid owner reference is required")
	}

	var change TierChange
	err := s.repo.Transaction(func(tx Repository) error {
		balance, fresh, err := loadOrNewBalance(tx, owner)
		if err != nil {
			return err
		}

		remaining := balance.ExpiringTokens
		if remaining < 0 {
			remaining = 0
		}
		change = ComputeTierChange(oldTier.MonthlyTokens, newTier.MonthlyTokens, remaining)

		balance.ExpiringTokens = change.NewBalance
		balance.ExpiringTokensExpiry = cycleEnd
		if err := persistBalance(tx, balance, fresh); err != nil {
			return err
		}

		return tx.CreateLedgerEntry(&models.TokenLedgerEntry{
			OwnerType: owner.Type,
			OwnerID:   owner.ID,
			TokenType: models.TokenTypeExpiring,
			Amount:    change.NewBalance - remaining,
			Reason:    TierChangeReason(oldTier.Key, newTier.Key, change.IsUpgrade),
			ExpiresAt: cycleEnd,
		})
	})
	if err != nil {
		return TierChange{}, err
	}

	s.invalidate(owner)
	return change, nil
}

// AppendAudit writes a zero-amount ledger entry recording a
// balance-neutral lifecycle transition, e.g. a scheduled cancellation.
func (s *Service) AppendAudit(ctx context.Context, owner models.OwnerRef, reason string) error {
	_ = ctx
	if !owner.Valid() {
		return errors.New("a valid owner reference is required")
	}
	return s.repo.CreateLedgerEntry(&models.TokenLedgerEntry{
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		TokenType: models.TokenTypeExpiring,
		Amount:    0,
		Reason:    reason,
	})
}

// GetBalance returns the owner's balance row.
func (s *Service) GetBalance(ctx context.Context, owner models.OwnerRef) (*models.TokenBalance, error) {
	_ = ctx
	balance, err := s.repo.GetBalance(owner.Type, owner.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s:%s", ErrNoBalance, owner.Type, owner.ID)
		}
		return nil, err
	}
	return balance, nil
}

func (s *Service) invalidate(owner models.OwnerRef) {
	if s.afterMutation != nil {
		s.afterMutation(owner.Type, owner.ID)
	}
}

func loadOrNewBalance(tx Repository, owner models.OwnerRef) (*models.TokenBalance, bool, error) {
	balance, err := tx.GetBalance(owner.Type, owner.ID)
	if err == nil {
		return balance, false, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.TokenBalance{OwnerType: owner.Type, OwnerID: owner.ID}, true, nil
	}
	return nil, false, err
}

func persistBalance(tx Repository, balance *models.TokenBalance, fresh bool) error {
	if fresh {
		return tx.CreateBalance(balance)
	}
	return tx.SaveBalance(balance)
}
