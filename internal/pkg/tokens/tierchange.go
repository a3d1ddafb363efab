package tokens

import "fmt"

// TierChange is the result of migrating an expiring balance between
// two subscription tiers.
type TierChange struct {
	Consumed   int64
	NewBalance int64
	IsUpgrade  bool
}

// ComputeTierChange models a tier switch as "unused token allotment"
// instead of elapsed calendar time: whatever the subscriber consumed
// of the old allotment is carried over as consumption against the new
// one. Remaining is clamped to 0 before use, so a negative expiring
// balance never inflates consumption.
func ComputeTierChange(oldAllotment, newAllotment, remaining int64) TierChange {
	if remaining < 0 {
		remaining = 0
	}
	consumed := oldAllotment - remaining
	if consumed < 0 {
		consumed = 0
	}
	newBalance := newAllotment - consumed
	if newBalance < 0 {
		newBalance = 0
	}
	return TierChange{
		Consumed:   consumed,
		NewBalance: newBalance,
		IsUpgrade:  newAllotment > oldAllotment,
	}
}

// TierChangeReason builds the ledger reason tag for a tier switch.
func TierChangeReason(oldTier, newTier string, isUpgrade bool) string {
	direction := "downgrade"
	if isUpgrade {
		direction = "upgrade"
	}
	return fmt.Sprintf("tier_%s_%s_to_%s_adjustment", direction, oldTier, newTier)
}
