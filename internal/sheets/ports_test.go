package sheets

import (
	"testing"
	"time"

	"minshare/internal/core"
	"minshare/internal/services"
)

func TestReportValues(t *testing.T) {
	staff := core.TargetStaff
	ov := services.Overview{
		Summary: core.PoolSummary{
			Period: "2025-06", Members: 1,
			Total: core.Money{Cents: 5000}, Staff: core.Money{Cents: 5000}, StaffCount: 1,
		},
		Members: []services.MemberRow{{
			MemberID: "m1", Name: "Ada Lovelace", Email: "ada@club.test",
			ActualUsage: core.Money{Cents: 2500}, RequiredMinimum: core.Money{Cents: 7500},
			DonatedAmount: core.Money{Cents: 5000}, AllocationTarget: &staff, Transactions: 1,
			UpdatedAt: time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC),
		}},
	}
	r := NewReport(ov, time.Date(2025, 6, 10, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600)))

	values := r.Values()
	if len(values) != 8 {
		t.Fatalf("rows = %d, want 8", len(values))
	}
	if values[0][3] != "2025-06-10T10:00:00Z" {
		t.Errorf("generated = %v", values[0][3])
	}
	if values[2][1] != "50.00" || values[3][1] != "0.00" {
		t.Errorf("pools = %v / %v", values[2], values[3])
	}
	row := values[7]
	want := []any{"Ada Lovelace", "ada@club.test", "", "25.00", "75.00", "50.00", "Staff Food", false, 1, "2025-06-09T08:00:00Z"}
	if len(row) != len(want) {
		t.Fatalf("row = %v", row)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("col %d = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestSheetName(t *testing.T) {
	if got := SheetName("2025-06"); got != "2025-06 Pool" {
		t.Errorf("SheetName = %q", got)
	}
}
