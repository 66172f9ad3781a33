package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

func newStatus(t *testing.T) PeriodStatus {
	t.Helper()
	key, err := NewStatusKey("member-1", "2025-06")
	if err != nil {
		t.Fatalf("NewStatusKey: %v", err)
	}
	return NewPeriodStatus(key, DefaultRequiredMinimum, testNow)
}

func tx(id string, cents int64, at time.Time) Transaction {
	return Transaction{ID: id, Amount: Money{Cents: cents}, Description: DefaultDescription, Date: at}
}

func TestStatusKey(t *testing.T) {
	cases := []struct {
		member, period string
		err            error
	}{
		{"m1", "2025-06", nil},
		{" m1 ", "2025-12", nil},
		{"", "2025-06", ErrEmptyMemberID},
		{"m1", "2025-13", ErrInvalidPeriod},
		{"m1", "2025-6", ErrInvalidPeriod},
		{"m1", "", ErrInvalidPeriod},
	}
	for _, tc := range cases {
		_, err := NewStatusKey(tc.member, PeriodKey(tc.period))
		if err != tc.err {
			t.Errorf("NewStatusKey(%q, %q) err = %v, want %v", tc.member, tc.period, err, tc.err)
		}
	}

	key, _ := NewStatusKey(" abc ", "2025-06")
	if key.DocID() != "abc_2025-06" {
		t.Fatalf("DocID = %q", key.DocID())
	}
}

func TestParseAllocationTarget(t *testing.T) {
	for _, in := range []string{"staff", "Charity", " STAFF "} {
		if _, err := ParseAllocationTarget(in); err != nil {
			t.Errorf("%q: unexpected error %v", in, err)
		}
	}
	for _, in := range []string{"", "club", "staff food"} {
		if _, err := ParseAllocationTarget(in); err != ErrInvalidTarget {
			t.Errorf("%q: expected ErrInvalidTarget, got %v", in, err)
		}
	}
	if TargetStaff.Label() != "Staff Food" || TargetCharity.Label() != "Charity" {
		t.Fatal("unexpected labels")
	}
}

func TestNormalizeDescription(t *testing.T) {
	got, err := NormalizeDescription("   ")
	if err != nil || got != DefaultDescription {
		t.Fatalf("blank description = %q, %v", got, err)
	}
	got, err = NormalizeDescription("  Lunch  ")
	if err != nil || got != "Lunch" {
		t.Fatalf("trimmed description = %q, %v", got, err)
	}
	if _, err := NormalizeDescription(strings.Repeat("x", MaxDescriptionLength+1)); err != ErrDescriptionTooLong {
		t.Fatalf("long description err = %v", err)
	}
	accented := strings.Repeat("é", 150)
	if got, err := NormalizeDescription(accented); err != nil || got != accented {
		t.Fatalf("150 accented runes = %q, %v", got, err)
	}
	if _, err := NormalizeDescription(strings.Repeat("☕", MaxDescriptionLength+1)); err != ErrDescriptionTooLong {
		t.Fatalf("long multibyte description err = %v", err)
	}
	ok := Transaction{ID: "t1", Amount: Dollars(1, 0), Description: accented, Date: testNow}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate multibyte description: %v", err)
	}
}

func TestSurplusBounds(t *testing.T) {
	cases := []struct {
		name           string
		usage, donated int64
		want           int64
	}{
		{"fresh", 0, 0, 7500},
		{"partial", 4300, 0, 3200},
		{"partial donated", 4300, 3200, 0},
		{"over spent", 9000, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStatus(t)
			s.ActualUsage = Money{Cents: tc.usage}
			s.DonatedAmount = Money{Cents: tc.donated}
			got := s.Surplus()
			if got.Cents != tc.want {
				t.Fatalf("Surplus = %d, want %d", got.Cents, tc.want)
			}
			if got.Cents < 0 || got.Cents > s.RequiredMinimum.Cents {
				t.Fatalf("surplus %d out of bounds", got.Cents)
			}
		})
	}
}

func TestApplyTransactionAndAllocation(t *testing.T) {
	s := newStatus(t)
	for _, next := range []Transaction{tx("a", 2500, testNow), tx("b", 1800, testNow.Add(time.Minute))} {
		if err := s.ApplyTransaction(next, testNow); err != nil {
			t.Fatalf("apply %s: %v", next.ID, err)
		}
	}

	if s.ActualUsage.Cents != 4300 || len(s.Transactions) != 2 {
		t.Fatalf("usage = %d, transactions = %d", s.ActualUsage.Cents, len(s.Transactions))
	}
	if s.LedgerTotal() != s.ActualUsage {
		t.Fatalf("ledger total %v != usage %v", s.LedgerTotal(), s.ActualUsage)
	}

	if !s.ApplyAllocation(TargetCharity, testNow) {
		t.Fatal("expected allocation to apply")
	}
	if s.DonatedAmount.Cents != 3200 || s.Target() != TargetCharity || !s.Surplus().IsZero() {
		t.Fatalf("after allocation: %+v", s)
	}
	if s.ApplyAllocation(TargetStaff, testNow) {
		t.Fatal("allocation with zero surplus should not apply")
	}
	if s.Target() != TargetCharity {
		t.Fatalf("target changed to %q", s.Target())
	}
}

func TestApplyTransactionRejectsUsageOverLimit(t *testing.T) {
	s := newStatus(t)
	s.ActualUsage = MaxUsage.Sub(Money{Cents: 50})
	before := s.Clone()

	if err := s.ApplyTransaction(tx("big", 100, testNow), testNow.Add(time.Hour)); !errors.Is(err, ErrUsageLimit) {
		t.Fatalf("err = %v, want ErrUsageLimit", err)
	}
	if s.ActualUsage != before.ActualUsage || len(s.Transactions) != 0 || !s.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("rejected transaction changed status: %+v", s)
	}
	if s.Surplus().Cents < 0 || s.Surplus().Cents > s.RequiredMinimum.Cents {
		t.Fatalf("surplus %v out of bounds", s.Surplus())
	}
}

func TestApplyFullUsage(t *testing.T) {
	s := newStatus(t)
	if err := s.ApplyTransaction(tx("a", 1000, testNow), testNow); err != nil {
		t.Fatal(err)
	}
	s.ApplyAllocation(TargetStaff, testNow)
	s.ApplyFullUsage(testNow)

	if s.ActualUsage != s.RequiredMinimum || !s.IsFullUsage {
		t.Fatalf("after full usage: %+v", s)
	}
	if !s.DonatedAmount.IsZero() || s.HasAllocation() {
		t.Fatalf("donation not cleared: %+v", s)
	}
	if len(s.Transactions) != 1 {
		t.Fatalf("full usage must not synthesise transactions, got %d", len(s.Transactions))
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := newStatus(t)
	s.ApplyTransaction(tx("a", 100, testNow), testNow)
	s.ApplyAllocation(TargetStaff, testNow)

	c := s.Clone()
	c.Transactions[0].Description = "changed"
	*c.AllocationTarget = TargetCharity

	if s.Transactions[0].Description != DefaultDescription || s.Target() != TargetStaff {
		t.Fatal("Clone shares memory with the original")
	}
}

func TestTransactionsNewestFirst(t *testing.T) {
	s := newStatus(t)
	s.ApplyTransaction(tx("a", 100, testNow), testNow)
	s.ApplyTransaction(tx("b", 100, testNow.Add(2*time.Hour)), testNow)
	s.ApplyTransaction(tx("c", 100, testNow.Add(time.Hour)), testNow)

	got := s.TransactionsNewestFirst()
	if got[0].ID != "b" || got[1].ID != "c" || got[2].ID != "a" {
		t.Fatalf("order = %s,%s,%s", got[0].ID, got[1].ID, got[2].ID)
	}
	if s.Transactions[0].ID != "a" {
		t.Fatal("stored order was modified")
	}
}
