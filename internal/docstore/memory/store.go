// Package memory is an in-process docstore used for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"minshare/internal/core"
	"minshare/internal/docstore"
)

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	statuses map[string]core.PeriodStatus
	profiles map[string]core.Profile
	contacts []core.ContactRequest
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		statuses: map[string]core.PeriodStatus{},
		profiles: map[string]core.Profile{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ docstore.Store = (*Store)(nil)

func (s *Store) LoadOrInit(_ context.Context, key core.StatusKey, requiredMinimum core.Money) (core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[key.DocID()]; ok {
		return st.Clone(), nil
	}
	st := core.NewPeriodStatus(key, requiredMinimum, s.now())
	s.statuses[key.DocID()] = st
	return st.Clone(), nil
}

func (s *Store) Get(_ context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[key.DocID()]
	if !ok {
		return core.PeriodStatus{}, docstore.ErrNotFound
	}
	return st.Clone(), nil
}

func (s *Store) AppendTransaction(_ context.Context, key core.StatusKey, tx core.Transaction) (core.PeriodStatus, error) {
	return s.update(key, docstore.AppendMutation(tx))
}

func (s *Store) MarkFullUsage(_ context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	return s.update(key, docstore.FullUsageMutation())
}

func (s *Store) Allocate(_ context.Context, key core.StatusKey, target core.AllocationTarget) (core.PeriodStatus, error) {
	return s.update(key, docstore.AllocateMutation(target))
}

func (s *Store) Reset(_ context.Context, key core.StatusKey, requiredMinimum core.Money) (core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := core.NewPeriodStatus(key, requiredMinimum, s.now())
	if prev, ok := s.statuses[key.DocID()]; ok {
		st.CreatedAt = prev.CreatedAt
	}
	s.statuses[key.DocID()] = st
	return st.Clone(), nil
}

func (s *Store) Delete(_ context.Context, key core.StatusKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, key.DocID())
	return nil
}

func (s *Store) ListByPeriod(_ context.Context, period core.PeriodKey) ([]core.PeriodStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.PeriodStatus{}
	for _, st := range s.statuses {
		if st.Period == period {
			out = append(out, st.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (s *Store) update(key core.StatusKey, mut docstore.Mutation) (core.PeriodStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[key.DocID()]
	if !ok {
		return core.PeriodStatus{}, docstore.ErrNotFound
	}
	st = st.Clone()
	changed, err := mut(&st, s.now())
	if err != nil {
		return core.PeriodStatus{}, err
	}
	if changed {
		s.statuses[key.DocID()] = st
	}
	return st.Clone(), nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.profiles[p.MemberID]; ok && !prev.CreatedAt.IsZero() {
		p.CreatedAt = prev.CreatedAt
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	s.profiles[p.MemberID] = p
	return nil
}

func (s *Store) GetProfile(_ context.Context, memberID string) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[strings.TrimSpace(memberID)]
	if !ok {
		return core.Profile{}, docstore.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (s *Store) SaveContactRequest(_ context.Context, c core.ContactRequest) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, c)
	return nil
}

func (s *Store) ListContactRequests(_ context.Context) ([]core.ContactRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.ContactRequest(nil), s.contacts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if out == nil {
		out = []core.ContactRequest{}
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
