package models

import "time"

// TokenBalance is the single mutable balance row per owner. Both
// buckets are signed: this is a soft-limit ledger, not a hard-capacity
// store, and the nonexpiring bucket may legally go negative through
// usage deductions.
type TokenBalance struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	OwnerType            string     `gorm:"type:varchar(10);not null;uniqueIndex:ux_token_balances_owner,priority:1" json:"owner_type"`
	OwnerID              string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_token_balances_owner,priority:2" json:"owner_id"`
	ExpiringTokens       int64      `gorm:"not null;default:0" json:"expiring_tokens"`
	ExpiringTokensExpiry *time.Time `gorm:"type:timestamp;default:null" json:"expiring_tokens_expiry,omitempty"`
	NonexpiringTokens    int64      `gorm:"not null;default:0" json:"nonexpiring_tokens"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Owner returns the owner reference stored on the balance row.
func (b *TokenBalance) Owner() OwnerRef {
	return OwnerRef{Type: b.OwnerType, ID: b.OwnerID}
}

// ExpiringAvailable returns the usable part of the expiring bucket at
// the given instant. An expired positive balance is excluded but never
// swept; a negative value never counts as availability.
func (b *TokenBalance) ExpiringAvailable(now time.Time) int64 {
	if b.ExpiringTokens <= 0 {
		return 0
	}
	if b.ExpiringTokensExpiry != nil && !b.ExpiringTokensExpiry.After(now) {
		return 0
	}
	return b.ExpiringTokens
}
