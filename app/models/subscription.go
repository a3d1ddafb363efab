package models

import "time"

// Subscription statuses mirror the upstream billing platform status
// strings verbatim; only the ones we branch on get constants.
const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusPastDue    = "past_due"
)

// Subscription mirrors an external billing-platform subscription for a
// local owner. Rows are never deleted, only status-transitioned into
// the canceled terminal state.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	ExternalSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_external_id" json:"external_subscription_id"`
	OwnerType              string     `gorm:"type:varchar(10);not null;index:idx_subscriptions_owner,priority:1" json:"owner_type"`
	OwnerID                string     `gorm:"type:varchar(64);not null;index:idx_subscriptions_owner,priority:2" json:"owner_id"`
	Tier                   string     `gorm:"type:varchar(50);not null" json:"tier"`
	Status                 string     `gorm:"type:varchar(32);not null;index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt             *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Owner returns the owner reference stored on the subscription row.
func (s *Subscription) Owner() OwnerRef {
	return OwnerRef{Type: s.OwnerType, ID: s.OwnerID}
}
