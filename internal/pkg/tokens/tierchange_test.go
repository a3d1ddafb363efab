package tokens

import "testing"

func TestComputeTierChange(t *testing.T) {
	tests := []struct {
		name          string
		oldAllotment  int64
		newAllotment  int64
		remaining     int64
		wantConsumed  int64
		wantBalance   int64
		wantIsUpgrade bool
	}{
		{
			name:          "upgrade carries consumption forward",
			oldAllotment:  15000,
			newAllotment:  25000,
			remaining:     10000,
			wantConsumed:  5000,
			wantBalance:   20000,
			wantIsUpgrade: true,
		},
		{
			name:          "downgrade credits unused tokens only",
			oldAllotment:  25000,
			newAllotment:  15000,
			remaining:     15000,
			wantConsumed:  10000,
			wantBalance:   5000,
			wantIsUpgrade: false,
		},
		{
			name:          "fully consumed old allotment",
			oldAllotment:  15000,
			newAllotment:  25000,
			remaining:     0,
			wantConsumed:  15000,
			wantBalance:   10000,
			wantIsUpgrade: true,
		},
		{
			name:          "negative remaining is clamped",
			oldAllotment:  15000,
			newAllotment:  25000,
			remaining:     -400,
			wantConsumed:  15000,
			wantBalance:   10000,
			wantIsUpgrade: true,
		},
		{
			name:          "remaining above old allotment never yields negative consumption",
			oldAllotment:  5000,
			newAllotment:  15000,
			remaining:     9000,
			wantConsumed:  0,
			wantBalance:   15000,
			wantIsUpgrade: true,
		},
		{
			name:          "deep downgrade clamps balance at zero",
			oldAllotment:  25000,
			newAllotment:  5000,
			remaining:     2000,
			wantConsumed:  23000,
			wantBalance:   0,
			wantIsUpgrade: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTierChange(tt.oldAllotment, tt.newAllotment, tt.remaining)
			if got.Consumed != tt.wantConsumed {
				t.Fatalf("Consumed = %d, want %d", got.Consumed, tt.wantConsumed)
			}
			if got.NewBalance != tt.wantBalance {
				t.Fatalf("NewBalance = %d, want %d", got.NewBalance, tt.wantBalance)
			}
			if got.IsUpgrade != tt.wantIsUpgrade {
				t.Fatalf("IsUpgrade = %v, want %v", got.IsUpgrade, tt.wantIsUpgrade)
			}
		})
	}
}

func TestComputeTierChangeNeverNegative(t *testing.T) {
	allotments := []int64{0, 5000, 15000, 25000}
	remainings := []int64{-10000, -1, 0, 1, 4999, 15000, 30000}

	for _, oldA := range allotments {
		for _, newA := range allotments {
			for _, r := range remainings {
				got := ComputeTierChange(oldA, newA, r)
				if got.NewBalance < 0 {
					t.Fatalf("ComputeTierChange(%d, %d, %d) produced negative balance %d", oldA, newA, r, got.NewBalance)
				}
				if got.Consumed < 0 {
					t.Fatalf("ComputeTierChange(%d, %d, %d) produced negative consumption %d", oldA, newA, r, got.Consumed)
				}
				// Deterministic: the same inputs always produce the same result.
				if again := ComputeTierChange(oldA, newA, r); again != got {
					t.Fatalf("ComputeTierChange(%d, %d, %d) is not deterministic", oldA, newA, r)
				}
			}
		}
	}
}

func TestTierChangeReason(t *testing.T) {
	if got := TierChangeReason("pro", "premium", true); got != "tier_upgrade_pro_to_premium_adjustment" {
		t.Fatalf("unexpected upgrade reason %q", got)
	}
	if got := TierChangeReason("premium", "pro", false); got != "tier_downgrade_premium_to_pro_adjustment" {
		t.Fatalf("unexpected downgrade reason %q", got)
	}
}
