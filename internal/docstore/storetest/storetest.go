// Package storetest is a behavioural test suite shared by every docstore
// implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"minshare/internal/core"
	"minshare/internal/docstore"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) docstore.Store

var minimum = core.DefaultRequiredMinimum

func key(member string) core.StatusKey {
	return core.StatusKey{MemberID: member, Period: "2025-06"}
}

func tx(id string, cents int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		Amount:      core.Money{Cents: cents},
		Description: core.DefaultDescription,
		Date:        time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s docstore.Store)
	}{
		{"LoadOrInitCreatesZeroDocument", testLoadOrInit},
		{"ConcurrentFirstLoadConverges", testConcurrentLoad},
		{"AppendTransaction", testAppend},
		{"ConcurrentAppendsAllLand", testConcurrentAppend},
		{"AppendRejectsUsageOverLimit", testUsageLimit},
		{"MutationsRequireDocument", testMissingDocument},
		{"AllocateOnce", testAllocateOnce},
		{"ConcurrentAllocateSingleWinner", testConcurrentAllocate},
		{"AllocateZeroSurplusIsNoop", testAllocateZeroSurplus},
		{"MarkFullUsage", testMarkFullUsage},
		{"ResetRestoresDefaults", testReset},
		{"DeleteIsIdempotent", testDelete},
		{"ListByPeriod", testListByPeriod},
		{"Profiles", testProfiles},
		{"ContactRequests", testContacts},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func mustLoad(t *testing.T, s docstore.Store, k core.StatusKey) core.PeriodStatus {
	t.Helper()
	st, err := s.LoadOrInit(context.Background(), k, minimum)
	if err != nil {
		t.Fatalf("LoadOrInit(%s): %v", k, err)
	}
	return st
}

func testLoadOrInit(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	k := key("m1")
	if _, err := s.Get(ctx, k); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Get before init: expected ErrNotFound, got %v", err)
	}

	first := mustLoad(t, s, k)
	if first.MemberID != "m1" || first.Period != "2025-06" || first.RequiredMinimum != minimum {
		t.Fatalf("unexpected identity fields: %+v", first)
	}
	if !first.ActualUsage.IsZero() || !first.DonatedAmount.IsZero() || first.IsFullUsage || first.HasAllocation() || len(first.Transactions) != 0 {
		t.Fatalf("document not zeroed: %+v", first)
	}

	second := mustLoad(t, s, k)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second LoadOrInit differs (-first +second):\n%s", diff)
	}

	if _, err := s.LoadOrInit(ctx, core.StatusKey{MemberID: "", Period: "2025-06"}, minimum); err == nil {
		t.Fatal("expected error for empty member id")
	}
}

func testConcurrentLoad(t *testing.T, s docstore.Store) {
	k := key("m1")
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.LoadOrInit(context.Background(), k, minimum); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("LoadOrInit: %v", err)
	}
	list, err := s.ListByPeriod(context.Background(), k.Period)
	if err != nil {
		t.Fatalf("ListByPeriod: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one document, got %d", len(list))
	}
}

func testAppend(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	k := key("m1")
	mustLoad(t, s, k)

	if _, err := s.AppendTransaction(ctx, k, tx("a", 2500)); err != nil {
		t.Fatalf("append a: %v", err)
	}
	st, err := s.AppendTransaction(ctx, k, tx("b", 1800))
	if err != nil {
		t.Fatalf("append b: %v", err)
	}
	if st.ActualUsage.Cents != 4300 || len(st.Transactions) != 2 {
		t.Fatalf("usage=%d transactions=%d", st.ActualUsage.Cents, len(st.Transactions))
	}
	if st.Transactions[0].ID != "a" || st.Transactions[1].ID != "b" {
		t.Fatalf("transactions out of insertion order: %+v", st.Transactions)
	}
	if st.Surplus().Cents != 3200 {
		t.Fatalf("surplus = %d", st.Surplus().Cents)
	}

	got, err := s.Get(ctx, k)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(st, got); diff != "" {
		t.Fatalf("stored document differs (-returned +stored):\n%s", diff)
	}

	if _, err := s.AppendTransaction(ctx, k, tx("c", 0)); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
}

func testConcurrentAppend(t *testing.T, s docstore.Store) {
	k := key("m1")
	mustLoad(t, s, k)
	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.AppendTransaction(context.Background(), k, tx(fmt.Sprintf("tx-%02d", i), 100)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}
	st, err := s.Get(context.Background(), k)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.ActualUsage.Cents != n*100 || len(st.Transactions) != n {
		t.Fatalf("lost updates: usage=%d transactions=%d", st.ActualUsage.Cents, len(st.Transactions))
	}
}

func testUsageLimit(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	k := key("whale")
	if _, err := s.LoadOrInit(ctx, k, core.MaxUsage.Sub(core.Money{Cents: 1})); err != nil {
		t.Fatalf("LoadOrInit: %v", err)
	}
	if _, err := s.MarkFullUsage(ctx, k); err != nil {
		t.Fatalf("MarkFullUsage: %v", err)
	}
	st, err := s.AppendTransaction(ctx, k, tx("last-cent", 1))
	if err != nil {
		t.Fatalf("append up to the limit: %v", err)
	}
	if st.ActualUsage != core.MaxUsage {
		t.Fatalf("usage = %v, want %v", st.ActualUsage, core.MaxUsage)
	}

	if _, err := s.AppendTransaction(ctx, k, tx("over", 1)); !errors.Is(err, core.ErrUsageLimit) {
		t.Fatalf("expected ErrUsageLimit, got %v", err)
	}
	got, err := s.Get(ctx, k)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ActualUsage != core.MaxUsage || len(got.Transactions) != 1 {
		t.Fatalf("rejected append changed state: usage=%v transactions=%d", got.ActualUsage, len(got.Transactions))
	}
	if got.Surplus().Cents < 0 || got.Surplus().Cents > got.RequiredMinimum.Cents {
		t.Fatalf("surplus %v outside [0, %v]", got.Surplus(), got.RequiredMinimum)
	}
}

func testMissingDocument(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	k := key("ghost")
	if _, err := s.AppendTransaction(ctx, k, tx("a", 100)); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("AppendTransaction: expected ErrNotFound, got %v", err)
	}
	if _, err := s.MarkFullUsage(ctx, k); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("MarkFullUsage: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Allocate(ctx, k, core.TargetStaff); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Allocate: expected ErrNotFound, got %v", err)
	}
}

func testAllocateOnce(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	k := key("m1")
	mustLoad(t, s, k)
	if _, err := s.AppendTransaction(ctx, k, tx("a", 4300)); err != nil {
		t.Fatalf("append: %v", err)
	}

	st, err := s.Allocate(ctx, k, core.TargetCharity)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if st.DonatedAmount.Cents != 3200 || st.Target() != core.TargetCharity || !st.Surplus().IsZero() {
		t.Fatalf("after allocate: %+v", st)
	}

	if _, err := s.Allocate(ctx, k, core.TargetStaff); !errors.Is(err, docstore.ErrAlreadyAllocated) {
		t.Fatalf("second Allocate: expected ErrAlreadyAllocated, got %v", err)
	}
	got, _ := s.Get(ctx, k)
	if got.Target() != core.TargetCharity || got.DonatedAmount.Cents != 3200 {
		t.Fatalf("allocation changed by rejected call: %+v", got)
	}

	if _, err := s.Allocate(ctx, k, core.AllocationTarget("club")); !errors.Is(err, core.ErrInvalidTarget) {
		t.Fatalf("invalid target: expected ErrInvalidTarget, got %v", err)
	}
}

func testConcurrentAllocate(t *testing.T, s docstore.Store) {
	k := key("m1")
	mustLoad(t, s, k)
	targets := []core.AllocationTarget{core.TargetStaff, core.TargetCharity, core.TargetStaff, core.TargetCharity}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		winner  core.AllocationTarget
		unknown []error
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target core.AllocationTarget) {
			defer wg.Done()
			_, err := s.Allocate(context.Background(), k, target)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
				winner = target
			case !errors.Is(err, docstore.ErrAlreadyAllocated):
				unknown = append(unknown, err)
			}
		}(target)
	}
	wg.Wait()
	if len(unknown) > 0 {
		t.Fatalf("unexpected errors: %v", unknown)
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning allocation, got %d", wins)
	}
	st, _ := s.Get(context.Background(), k)
	if st.Target() != winner || st.DonatedAmount != minimum {
		t.Fatalf("stored allocation %q/%v, winner %q", st.Target(), st.DonatedAmount, winner)
	}
}

func testAllocateZeroSurplus(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	k := key("m1")
	mustLoad(t, s, k)
	if _, err := s.AppendTransaction(ctx, k, tx("a", 9000)); err != nil {
		t.Fatalf("append: %v", err)
	}
	st, err := s.Allocate(ctx, k, core.TargetStaff)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if st.HasAllocation() || !st.DonatedAmount.IsZero() {
		t.Fatalf("zero surplus allocation recorded: %+v", st)
	}
}

func testMarkFullUsage(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	k := key("m1")
	mustLoad(t, s, k)
	st, err := s.MarkFullUsage(ctx, k)
	if err != nil {
		t.Fatalf("MarkFullUsage: %v", err)
	}
	if st.ActualUsage != minimum || !st.IsFullUsage || !st.DonatedAmount.IsZero() || len(st.Transactions) != 0 {
		t.Fatalf("after full usage: %+v", st)
	}
	if !st.Surplus().IsZero() {
		t.Fatalf("surplus = %v", st.Surplus())
	}
}

func testReset(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	k := key("m1")
	mustLoad(t, s, k)
	if _, err := s.AppendTransaction(ctx, k, tx("a", 1000)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.Allocate(ctx, k, core.TargetStaff); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	st, err := s.Reset(ctx, k, minimum)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !st.ActualUsage.IsZero() || st.IsFullUsage || !st.DonatedAmount.IsZero() || st.HasAllocation() || len(st.Transactions) != 0 {
		t.Fatalf("after reset: %+v", st)
	}
	if st.Surplus() != minimum {
		t.Fatalf("surplus after reset = %v", st.Surplus())
	}
	got, err := s.Get(ctx, k)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Transactions) != 0 || got.HasAllocation() {
		t.Fatalf("stored document not reset: %+v", got)
	}
	// Reset on a missing document creates it.
	if _, err := s.Reset(ctx, key("fresh"), minimum); err != nil {
		t.Fatalf("Reset fresh: %v", err)
	}
}

func testDelete(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	k := key("m1")
	mustLoad(t, s, k)
	if _, err := s.AppendTransaction(ctx, k, tx("a", 100)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Delete(ctx, k); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, k); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Get(ctx, k); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Get after delete: expected ErrNotFound, got %v", err)
	}
	st := mustLoad(t, s, k)
	if len(st.Transactions) != 0 {
		t.Fatalf("recreated document kept transactions: %+v", st.Transactions)
	}
}

func testListByPeriod(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	mustLoad(t, s, key("b"))
	mustLoad(t, s, key("a"))
	mustLoad(t, s, core.StatusKey{MemberID: "a", Period: "2025-07"})

	list, err := s.ListByPeriod(ctx, "2025-06")
	if err != nil {
		t.Fatalf("ListByPeriod: %v", err)
	}
	if len(list) != 2 || list[0].MemberID != "a" || list[1].MemberID != "b" {
		t.Fatalf("unexpected listing: %+v", list)
	}
	empty, err := s.ListByPeriod(ctx, "2024-01")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty period: %v, %v", empty, err)
	}
}

func testProfiles(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	if _, err := s.GetProfile(ctx, "m1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("GetProfile unknown: expected ErrNotFound, got %v", err)
	}
	p := core.Profile{MemberID: "m1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	p.Normalize()
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	got, err := s.GetProfile(ctx, "m1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.DisplayName != "Ada Lovelace" || got.CreatedAt.IsZero() {
		t.Fatalf("stored profile: %+v", got)
	}

	p.PhoneNumber = "555-0100"
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile update: %v", err)
	}
	updated, _ := s.GetProfile(ctx, "m1")
	if updated.PhoneNumber != "555-0100" || !updated.CreatedAt.Equal(got.CreatedAt) {
		t.Fatalf("updated profile: %+v", updated)
	}

	list, err := s.ListProfiles(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListProfiles: %v, %v", list, err)
	}
}

func testContacts(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"Ada", "Grace"} {
		c := core.ContactRequest{
			ID:        fmt.Sprintf("c-%d", i),
			Name:      name,
			Email:     "someone@example.com",
			Message:   "hello",
			Status:    core.ContactStatusNew,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.SaveContactRequest(ctx, c); err != nil {
			t.Fatalf("SaveContactRequest: %v", err)
		}
	}
	if err := s.SaveContactRequest(ctx, core.ContactRequest{ID: "bad", Email: "x@example.com"}); err == nil {
		t.Fatal("expected validation error")
	}
	list, err := s.ListContactRequests(ctx)
	if err != nil {
		t.Fatalf("ListContactRequests: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Grace" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}
