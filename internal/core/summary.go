package core

// PoolSummary aggregates one period's donations across members.
type PoolSummary struct {
	Period       PeriodKey `json:"period"`
	Members      int       `json:"members"`
	Total        Money     `json:"totalPool"`
	Staff        Money     `json:"staffPool"`
	Charity      Money     `json:"charityPool"`
	StaffCount   int       `json:"staffCount"`
	CharityCount int       `json:"charityCount"`
	FullUsage    int       `json:"fullUsageCount"`
}

// SummarizePool sums donatedAmount by allocation target. Statuses without a
// target do not contribute to any pool.
func SummarizePool(period PeriodKey, statuses []PeriodStatus) PoolSummary {
	sum := PoolSummary{Period: period, Members: len(statuses)}
	for _, s := range statuses {
		if s.IsFullUsage {
			sum.FullUsage++
		}
		if !s.HasAllocation() {
			continue
		}
		sum.Total = sum.Total.Add(s.DonatedAmount)
		switch s.Target() {
		case TargetStaff:
			sum.Staff = sum.Staff.Add(s.DonatedAmount)
			sum.StaffCount++
		case TargetCharity:
			sum.Charity = sum.Charity.Add(s.DonatedAmount)
			sum.CharityCount++
		}
	}
	return sum
}
