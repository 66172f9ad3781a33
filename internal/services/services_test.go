package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"minshare/internal/allocation"
	"minshare/internal/core"
	"minshare/internal/docstore"
	"minshare/internal/docstore/memory"
	"minshare/internal/events"
	"minshare/internal/log"
)

var testNow = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

const testPeriod core.PeriodKey = "2025-06"

type fixture struct {
	store  *memory.Store
	hub    *events.Hub
	engine *allocation.Engine
	admin  *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	store := memory.New(memory.WithClock(clock))
	hub := events.NewHub()
	n := 0
	engine := allocation.New(store, hub, allocation.Config{
		RequiredMinimum: core.Dollars(75, 0),
		Resolver:        core.Resolver{Now: clock, Location: time.UTC},
		Logger:          log.Discard(),
		NewID: func() (string, error) {
			n++
			return fmt.Sprintf("tx-%d", n), nil
		},
	})
	admin := NewAdminService(store, store, engine, AdminConfig{Logger: log.Discard()})
	admin.Subscribe(hub)
	return &fixture{store: store, hub: hub, engine: engine, admin: admin}
}

func (f *fixture) key(t *testing.T, member string) core.StatusKey {
	t.Helper()
	k, err := core.NewStatusKey(member, testPeriod)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestOverviewJoinsProfilesAndSumsPools(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.store.SaveProfile(ctx, core.Profile{MemberID: "alice", DisplayName: "Alice Doe", Email: "alice@club.test"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.RecordTransaction(ctx, f.key(t, "alice"), core.Dollars(25, 0), "Dinner"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.DonateSurplus(ctx, f.key(t, "alice"), core.TargetStaff); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.DonateSurplus(ctx, f.key(t, "bob"), core.TargetCharity); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.MarkFullUsage(ctx, f.key(t, "carol")); err != nil {
		t.Fatal(err)
	}

	ov, err := f.admin.Overview(ctx, testPeriod)
	if err != nil {
		t.Fatal(err)
	}

	want := core.PoolSummary{
		Period:       testPeriod,
		Members:      3,
		Total:        core.Dollars(125, 0),
		Staff:        core.Dollars(50, 0),
		Charity:      core.Dollars(75, 0),
		StaffCount:   1,
		CharityCount: 1,
		FullUsage:    1,
	}
	if diff := cmp.Diff(want, ov.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	var names []string
	for _, m := range ov.Members {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"Alice Doe", "bob", "carol"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if ov.Members[0].Transactions != 1 || ov.Members[0].Email != "alice@club.test" {
		t.Errorf("alice row = %+v", ov.Members[0])
	}
}

func TestOverviewCacheInvalidatedByWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	k := f.key(t, "alice")

	if _, err := f.engine.RecordTransaction(ctx, k, core.Dollars(10, 0), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.admin.Overview(ctx, testPeriod); err != nil {
		t.Fatal(err)
	}
	if f.admin.Cache().Size() != 1 {
		t.Fatalf("cache size = %d, want 1", f.admin.Cache().Size())
	}

	if _, err := f.engine.DonateSurplus(ctx, k, core.TargetCharity); err != nil {
		t.Fatal(err)
	}
	if f.admin.Cache().Size() != 0 {
		t.Fatal("write did not invalidate the cached overview")
	}

	ov, err := f.admin.Overview(ctx, testPeriod)
	if err != nil {
		t.Fatal(err)
	}
	if ov.Summary.Charity != core.Dollars(65, 0) {
		t.Errorf("charity pool = %v, want 65.00", ov.Summary.Charity)
	}
}

// racingLister runs during once after reading, as if a write committed
// between the store read and the cache fill.
type racingLister struct {
	StatusLister
	during func()
}

func (l *racingLister) ListByPeriod(ctx context.Context, period core.PeriodKey) ([]core.PeriodStatus, error) {
	out, err := l.StatusLister.ListByPeriod(ctx, period)
	if l.during != nil {
		l.during()
		l.during = nil
	}
	return out, err
}

func TestOverviewNotCachedWhenWriteInterleaves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	k := f.key(t, "alice")

	if _, err := f.engine.RecordTransaction(ctx, k, core.Dollars(10, 0), ""); err != nil {
		t.Fatal(err)
	}
	lister := &racingLister{StatusLister: f.store, during: func() {
		if _, err := f.engine.DonateSurplus(ctx, k, core.TargetStaff); err != nil {
			t.Error(err)
		}
	}}
	admin := NewAdminService(lister, f.store, f.engine, AdminConfig{Logger: log.Discard()})
	admin.Subscribe(f.hub)

	stale, err := admin.Overview(ctx, testPeriod)
	if err != nil {
		t.Fatal(err)
	}
	if !stale.Summary.Staff.IsZero() {
		t.Fatalf("first read already saw the donation: %v", stale.Summary.Staff)
	}
	if admin.Cache().Size() != 0 {
		t.Fatal("overview read before an invalidation was cached")
	}

	ov, err := admin.Overview(ctx, testPeriod)
	if err != nil {
		t.Fatal(err)
	}
	if ov.Summary.Staff != core.Dollars(65, 0) {
		t.Errorf("staff pool = %v, want 65.00", ov.Summary.Staff)
	}
	if admin.Cache().Size() != 1 {
		t.Errorf("cache size = %d, want 1", admin.Cache().Size())
	}
}

func TestOverviewNotCachedAcrossInvalidateAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var admin *AdminService
	lister := &racingLister{StatusLister: f.store, during: func() { admin.InvalidateAll() }}
	admin = NewAdminService(lister, f.store, f.engine, AdminConfig{Logger: log.Discard()})

	if _, err := admin.Overview(ctx, testPeriod); err != nil {
		t.Fatal(err)
	}
	if admin.Cache().Size() != 0 {
		t.Fatal("overview cached across a profile invalidation")
	}
}

func TestOverviewRejectsBadPeriod(t *testing.T) {
	f := newFixture(t)
	if _, err := f.admin.Overview(context.Background(), "2025-13"); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("err = %v, want ErrInvalidPeriod", err)
	}
}

func TestResetMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	k := f.key(t, "alice")

	if _, err := f.engine.RecordTransaction(ctx, k, core.Dollars(30, 0), "Lunch"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.DonateSurplus(ctx, k, core.TargetStaff); err != nil {
		t.Fatal(err)
	}

	st, err := f.admin.ResetMember(ctx, "alice", testPeriod)
	if err != nil {
		t.Fatal(err)
	}
	if !st.ActualUsage.IsZero() || st.HasAllocation() || len(st.Transactions) != 0 {
		t.Errorf("status after reset = %+v", st)
	}

	if _, err := f.admin.ResetMember(ctx, "  ", testPeriod); !errors.Is(err, core.ErrEmptyMemberID) {
		t.Errorf("blank member err = %v", err)
	}
}

func TestProfileSave(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	var saved []string
	svc := NewProfileService(store, log.Discard(),
		WithProfileClock(func() time.Time { return testNow }),
		OnProfileSaved(func(p core.Profile) { saved = append(saved, p.MemberID) }))

	if _, err := svc.Get(ctx, "alice"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Get before onboarding err = %v", err)
	}

	p, err := svc.Save(ctx, core.Profile{MemberID: "alice", FirstName: " Alice ", LastName: "Doe", Email: "alice@club.test"})
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "Alice Doe" || p.Role != core.DefaultRole || !p.CreatedAt.Equal(testNow) {
		t.Errorf("saved profile = %+v", p)
	}

	later := NewProfileService(store, log.Discard(), WithProfileClock(func() time.Time { return testNow.Add(time.Hour) }))
	p, err = later.Save(ctx, core.Profile{MemberID: "alice", FirstName: "Alicia", PhoneNumber: "555"})
	if err != nil {
		t.Fatal(err)
	}
	if !p.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want original %v", p.CreatedAt, testNow)
	}

	got, err := svc.Get(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.DisplayName != "Alicia" || got.PhoneNumber != "555" {
		t.Errorf("stored profile = %+v", got)
	}
	if diff := cmp.Diff([]string{"alice"}, saved); diff != "" {
		t.Errorf("hook calls (-want +got):\n%s", diff)
	}
}

func TestProfileSaveValidation(t *testing.T) {
	svc := NewProfileService(memory.New(), nil)
	tests := []struct {
		name string
		p    core.Profile
		want error
	}{
		{"missing member", core.Profile{FirstName: "A"}, core.ErrEmptyMemberID},
		{"missing name", core.Profile{MemberID: "m"}, core.ErrMissingName},
		{"bad email", core.Profile{MemberID: "m", FirstName: "A", Email: "nope"}, core.ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Save(context.Background(), tt.p); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestContactSubmit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewContactService(store, nil)
	svc.now = func() time.Time { return testNow }

	c, err := svc.Submit(ctx, core.ContactRequest{Name: " Dana ", Email: "dana@example.com", Message: "Interested in joining"})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID == "" || c.Status != core.ContactStatusNew || c.Name != "Dana" || !c.CreatedAt.Equal(testNow) {
		t.Errorf("submitted = %+v", c)
	}

	if _, err := svc.Submit(ctx, core.ContactRequest{Name: "Eve", Email: "eve@example.com"}); !errors.Is(err, core.ErrMissingMessage) {
		t.Errorf("missing message err = %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != c.ID {
		t.Errorf("list = %+v", list)
	}
}
