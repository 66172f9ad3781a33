package core

import (
	"strings"
	"time"
)

// periodLayout is the month-granularity key layout, e.g. "2025-06".
const periodLayout = "2006-01"

// PeriodKey identifies a calendar month.
type PeriodKey string

// ParsePeriodKey validates and normalizes a raw "YYYY-MM" key.
func ParsePeriodKey(s string) (PeriodKey, error) {
	k := PeriodKey(strings.TrimSpace(s))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// PeriodKeyFor returns the key of the month containing t.
func PeriodKeyFor(t time.Time) PeriodKey {
	return PeriodKey(t.Format(periodLayout))
}

func (k PeriodKey) Validate() error {
	if len(k) != len(periodLayout) {
		return ErrInvalidPeriod
	}
	if _, err := time.Parse(periodLayout, string(k)); err != nil {
		return ErrInvalidPeriod
	}
	return nil
}

// Start returns the first instant of the month in loc.
func (k PeriodKey) Start(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(periodLayout, string(k), loc)
	if err != nil {
		return time.Time{}, ErrInvalidPeriod
	}
	return t, nil
}

func (k PeriodKey) String() string { return string(k) }

// Resolver derives the current period from wall-clock time.
type Resolver struct {
	Now      func() time.Time
	Location *time.Location
}

// NewResolver returns a resolver on the system clock in loc (UTC when nil).
func NewResolver(loc *time.Location) Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return Resolver{Now: time.Now, Location: loc}
}

// Time returns the resolver's current instant in its location.
func (r Resolver) Time() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// CurrentPeriodKey returns the key of the calendar month containing now.
func (r Resolver) CurrentPeriodKey() PeriodKey {
	return PeriodKeyFor(r.Time())
}

// DaysRemainingInMonth is lastDayOfMonth.day - now.day.
func DaysRemainingInMonth(now time.Time) int {
	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location())
	return lastDay.Day() - now.Day()
}
