// Package sheets renders period pool reports as spreadsheet rows.
package sheets

import (
	"context"
	"time"

	"minshare/internal/core"
	"minshare/internal/services"
)

// Ports for outbound adapters.
type (
	// ReportWriter replaces the report sheet of one period.
	ReportWriter interface {
		WriteReport(ctx context.Context, r Report) error
	}
)

// Report is the exported view of one period.
type Report struct {
	Summary     core.PoolSummary
	Members     []services.MemberRow
	GeneratedAt time.Time
}

// NewReport builds a report from an admin overview.
func NewReport(ov services.Overview, now time.Time) Report {
	return Report{Summary: ov.Summary, Members: ov.Members, GeneratedAt: now.UTC()}
}

// SheetName is the tab a period's report lives in, e.g. "2025-06 Pool".
func SheetName(period core.PeriodKey) string {
	return string(period) + " Pool"
}

var header = []any{"Member", "Email", "Member #", "Usage", "Minimum", "Donated", "Target", "Full usage", "Transactions", "Updated"}

// Values lays the report out as a totals block, a blank row, then one row
// per member. Amounts are written as decimal strings.
func (r Report) Values() [][]any {
	s := r.Summary
	out := [][]any{
		{"Period", string(s.Period), "Generated", r.GeneratedAt.Format(time.RFC3339)},
		{"Total pool", s.Total.String(), "Members", s.Members},
		{"Staff Food", s.Staff.String(), "Donors", s.StaffCount},
		{"Charity", s.Charity.String(), "Donors", s.CharityCount},
		{"Full usage", s.FullUsage},
		{},
		header,
	}
	for _, m := range r.Members {
		target := ""
		if m.AllocationTarget != nil {
			target = m.AllocationTarget.Label()
		}
		out = append(out, []any{
			m.Name,
			m.Email,
			m.MemberNumber,
			m.ActualUsage.String(),
			m.RequiredMinimum.String(),
			m.DonatedAmount.String(),
			target,
			m.IsFullUsage,
			m.Transactions,
			m.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
