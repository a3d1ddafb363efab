package models

import "time"

// Token bucket types for ledger entries.
const (
	TokenTypeExpiring    = "expiring"
	TokenTypeNonexpiring = "nonexpiring"
)

// Ledger reason tags written by the token store and the webhook
// handlers.
const (
	LedgerReasonSubscription          = "subscription"
	LedgerReasonTopup                 = "topup"
	LedgerReasonSubscriptionDeleted   = "subscription_deleted"
	LedgerReasonCancellationScheduled = "cancellation_scheduled"
	LedgerReasonCancellationReversed  = "cancellation_reversed"
)

// TokenLedgerEntry is an append-only audit record of one
// balance-affecting event, written in the same transaction as its
// balance mutation. It is an audit trail, not the source of truth for
// the balance.
type TokenLedgerEntry struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	OwnerType string     `gorm:"type:varchar(10);not null;index:idx_token_ledger_owner,priority:1" json:"owner_type"`
	OwnerID   string     `gorm:"type:varchar(64);not null;index:idx_token_ledger_owner,priority:2" json:"owner_id"`
	TokenType string     `gorm:"type:varchar(16);not null" json:"token_type"`
	Amount    int64      `gorm:"not null" json:"amount"`
	Reason    string     `gorm:"type:varchar(100);not null" json:"reason"`
	ExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
