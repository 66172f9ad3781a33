package core

import (
	"math"
	"time"
)

// Metrics are derived on read from a PeriodStatus and never persisted.
type Metrics struct {
	SelfSpentPercent float64 `json:"selfSpentPercent"`
	DonatedPercent   float64 `json:"donatedPercent"`
	Remaining        Money   `json:"remaining"`
	DaysRemaining    int     `json:"daysRemaining"`
	HasDonated       bool    `json:"hasDonated"`
	FullyAllocated   bool    `json:"fullyAllocated"`
	CanMarkFull      bool    `json:"canMarkFull"`
	CanDonate        bool    `json:"canDonate"`
}

// SelfSpentPercent is min(actual / required * 100, 100).
func SelfSpentPercent(s PeriodStatus) float64 {
	if s.RequiredMinimum.Cents <= 0 {
		if s.ActualUsage.Cents > 0 {
			return 100
		}
		return 0
	}
	return math.Min(float64(s.ActualUsage.Cents)/float64(s.RequiredMinimum.Cents)*100, 100)
}

// DonatedPercent is min(donated / required * 100, 100 - selfSpent), so the
// two bands never exceed 100 combined.
func DonatedPercent(s PeriodStatus) float64 {
	if s.RequiredMinimum.Cents <= 0 {
		return 0
	}
	pct := float64(s.DonatedAmount.Cents) / float64(s.RequiredMinimum.Cents) * 100
	return math.Max(math.Min(pct, 100-SelfSpentPercent(s)), 0)
}

// ComputeMetrics evaluates every derived value at instant now.
func ComputeMetrics(s PeriodStatus, now time.Time) Metrics {
	remaining := s.Surplus()
	hasDonated := s.DonatedAmount.Cents > 0 && s.HasAllocation()
	return Metrics{
		SelfSpentPercent: SelfSpentPercent(s),
		DonatedPercent:   DonatedPercent(s),
		Remaining:        remaining,
		DaysRemaining:    DaysRemainingInMonth(now),
		HasDonated:       hasDonated,
		FullyAllocated:   remaining.IsZero(),
		CanMarkFull:      !remaining.IsZero() && !hasDonated,
		CanDonate:        !remaining.IsZero() && !s.HasAllocation(),
	}
}
