package core

import (
	"testing"
	"time"
)

func TestResolverCurrentPeriodKey(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want PeriodKey
	}{
		{"mid month", time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), nil, "2025-06"},
		{"december", time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC), time.UTC, "2025-12"},
		{"january", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.UTC, "2026-01"},
		{"offset zone rolls forward", time.Date(2025, 6, 30, 23, 30, 0, 0, time.UTC), time.FixedZone("CEST", 2*3600), "2025-07"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Resolver{Now: func() time.Time { return tc.now }, Location: tc.loc}
			if got := r.CurrentPeriodKey(); got != tc.want {
				t.Fatalf("CurrentPeriodKey = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParsePeriodKey(t *testing.T) {
	if k, err := ParsePeriodKey(" 2025-06 "); err != nil || k != "2025-06" {
		t.Fatalf("ParsePeriodKey = %q, %v", k, err)
	}
	for _, bad := range []string{"2025-6", "2025/06", "06-2025", "2025-00", "2025-06-01", "abcd-ef"} {
		if _, err := ParsePeriodKey(bad); err != ErrInvalidPeriod {
			t.Errorf("%q: expected ErrInvalidPeriod, got %v", bad, err)
		}
	}
}

func TestDaysRemainingInMonth(t *testing.T) {
	cases := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 20},
		{time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 28},
		{time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), 6},
	}
	for _, tc := range cases {
		if got := DaysRemainingInMonth(tc.now); got != tc.want {
			t.Errorf("DaysRemainingInMonth(%s) = %d, want %d", tc.now.Format(time.DateOnly), got, tc.want)
		}
	}
}
