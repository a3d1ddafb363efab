package models

import "strings"

// Owner types for subscriptions and token balances.
const (
	OwnerTypeUser = "user"
	OwnerTypeOrg  = "org"
)

// OwnerRef identifies an individual or organizational account as the
// holder of a subscription or token balance.
type OwnerRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// NormalizeOwnerType maps arbitrary input to a known owner type,
// defaulting to user.
func NormalizeOwnerType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case OwnerTypeOrg, "organization", "team":
		return OwnerTypeOrg
	default:
		return OwnerTypeUser
	}
}

// Valid reports whether the reference carries both parts.
func (o OwnerRef) Valid() bool {
	return strings.TrimSpace(o.ID) != "" &&
		(o.Type == OwnerTypeUser || o.Type == OwnerTypeOrg)
}
