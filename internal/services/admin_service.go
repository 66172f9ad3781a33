package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"minshare/internal/cache"
	"minshare/internal/core"
	"minshare/internal/events"
	"minshare/internal/log"
)

// StatusLister reads every member's document for a period.
type StatusLister interface {
	ListByPeriod(ctx context.Context, period core.PeriodKey) ([]core.PeriodStatus, error)
}

// ProfileLister reads onboarding profiles for display joins.
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]core.Profile, error)
}

// MemberResetter performs the privileged delete-and-recreate of a document.
type MemberResetter interface {
	AdminReset(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error)
}

// MemberRow is one line of the admin listing.
type MemberRow struct {
	MemberID         string                 `json:"memberId"`
	Name             string                 `json:"name"`
	Email            string                 `json:"email,omitempty"`
	MemberNumber     string                 `json:"clubMemberNumber,omitempty"`
	ActualUsage      core.Money             `json:"actualUsage"`
	RequiredMinimum  core.Money             `json:"requiredMinimum"`
	DonatedAmount    core.Money             `json:"donatedAmount"`
	AllocationTarget *core.AllocationTarget `json:"allocationTarget,omitempty"`
	IsFullUsage      bool                   `json:"isFullUsage"`
	Transactions     int                    `json:"transactionCount"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// Overview is the admin view of one period.
type Overview struct {
	Summary core.PoolSummary `json:"summary"`
	Members []MemberRow      `json:"members"`
}

// AdminConfig tunes the overview cache.
type AdminConfig struct {
	CacheSize int
	CacheTTL  time.Duration
	Logger    *log.Logger
}

func DefaultAdminConfig() AdminConfig {
	return AdminConfig{CacheSize: 24, CacheTTL: 5 * time.Minute}
}

// AdminService builds the privileged period overview and resets members.
// Authorization happens at the HTTP boundary.
type AdminService struct {
	statuses StatusLister
	profiles ProfileLister
	resetter MemberResetter
	cache    *cache.LRUCache[Overview]
	logger   *log.Logger

	// genMu guards the invalidation generations. An overview is cached only
	// if no invalidation of its period happened while it was being built.
	genMu   sync.Mutex
	genAll  uint64
	periods map[core.PeriodKey]uint64
}

type generation struct{ all, period uint64 }

func NewAdminService(statuses StatusLister, profiles ProfileLister, resetter MemberResetter, cfg AdminConfig) *AdminService {
	def := DefaultAdminConfig()
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &AdminService{
		statuses: statuses,
		profiles: profiles,
		resetter: resetter,
		cache:    cache.NewLRUCache[Overview](cfg.CacheSize, cfg.CacheTTL),
		logger:   cfg.Logger.WithComponent(log.ComponentAdmin),
		periods:  map[core.PeriodKey]uint64{},
	}
}

// Cache exposes the overview cache for registration with a cache.Manager.
func (s *AdminService) Cache() *cache.LRUCache[Overview] { return s.cache }

// Subscribe drops the cached overview of every period that changes.
func (s *AdminService) Subscribe(hub *events.Hub) {
	hub.OnChange(func(ctx context.Context, c events.Change) {
		s.Invalidate(c.Status.Period)
	})
}

// Invalidate drops the cached overview for period.
func (s *AdminService) Invalidate(period core.PeriodKey) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.periods[period]++
	s.cache.Delete(string(period))
}

// InvalidateAll drops every cached overview, e.g. after a profile change.
func (s *AdminService) InvalidateAll() {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.genAll++
	s.cache.Purge()
}

func (s *AdminService) generation(period core.PeriodKey) generation {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return generation{all: s.genAll, period: s.periods[period]}
}

// cacheIfCurrent stores ov unless period was invalidated after gen was taken.
func (s *AdminService) cacheIfCurrent(period core.PeriodKey, gen generation, ov Overview) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.genAll != gen.all || s.periods[period] != gen.period {
		return false
	}
	s.cache.Set(string(period), ov)
	return true
}

// Overview lists every member document of period with pool totals.
func (s *AdminService) Overview(ctx context.Context, period core.PeriodKey) (Overview, error) {
	if err := period.Validate(); err != nil {
		return Overview{}, err
	}
	if ov, ok := s.cache.Get(string(period)); ok {
		return ov, nil
	}
	gen := s.generation(period)

	statuses, err := s.statuses.ListByPeriod(ctx, period)
	if err != nil {
		return Overview{}, fmt.Errorf("list statuses %s: %w", period, err)
	}
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("list profiles: %w", err)
	}
	byID := make(map[string]core.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.MemberID] = p
	}

	ov := Overview{
		Summary: core.SummarizePool(period, statuses),
		Members: make([]MemberRow, 0, len(statuses)),
	}
	for _, st := range statuses {
		ov.Members = append(ov.Members, memberRow(st, byID[st.MemberID]))
	}
	cached := s.cacheIfCurrent(period, gen, ov)

	s.logger.DebugContext(ctx, "Overview built", log.NewFields().
		WithOperation(log.OpList).
		With(log.FieldPeriod, string(period)).
		With("members", len(ov.Members)).
		With("cached", cached).
		ToSlice()...)
	return ov, nil
}

func memberRow(st core.PeriodStatus, p core.Profile) MemberRow {
	name := st.MemberID
	if p.MemberID != "" {
		name = p.Label()
	}
	row := MemberRow{
		MemberID:        st.MemberID,
		Name:            name,
		Email:           p.Email,
		MemberNumber:    p.ClubMemberNumber,
		ActualUsage:     st.ActualUsage,
		RequiredMinimum: st.RequiredMinimum,
		DonatedAmount:   st.DonatedAmount,
		IsFullUsage:     st.IsFullUsage,
		Transactions:    len(st.Transactions),
		UpdatedAt:       st.UpdatedAt,
	}
	if st.AllocationTarget != nil {
		row.AllocationTarget = st.AllocationTarget.Ptr()
	}
	return row
}

// ResetMember deletes and recreates memberID's document for period.
func (s *AdminService) ResetMember(ctx context.Context, memberID string, period core.PeriodKey) (core.PeriodStatus, error) {
	key, err := core.NewStatusKey(memberID, period)
	if err != nil {
		return core.PeriodStatus{}, err
	}
	st, err := s.resetter.AdminReset(ctx, key)
	if err != nil {
		return core.PeriodStatus{}, err
	}
	s.Invalidate(period)
	s.logger.InfoContext(ctx, "Member period reset by admin", log.NewFields().
		WithStatusKey(key.MemberID, string(key.Period)).
		WithOperation(core.OpAdminReset.String()).
		ToSlice()...)
	return st, nil
}
