package memory

import (
	"context"
	"sync"

	"minshare/internal/core"
	ports "minshare/internal/sheets"
)

// Store keeps the last report written per period.
type Store struct {
	mu      sync.Mutex
	reports map[core.PeriodKey]ports.Report
	writes  int
}

var _ ports.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{reports: make(map[core.PeriodKey]ports.Report)}
}

// WriteReport replaces the stored report for the report's period.
func (s *Store) WriteReport(_ context.Context, r ports.Report) error {
	if err := r.Summary.Period.Validate(); err != nil {
		return err
	}
	r.Members = append(r.Members[:0:0], r.Members...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.Summary.Period] = r
	s.writes++
	return nil
}

// Report returns the last report written for period.
func (s *Store) Report(period core.PeriodKey) (ports.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[period]
	return r, ok
}

// Writes counts successful WriteReport calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
