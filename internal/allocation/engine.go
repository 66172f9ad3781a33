// Package allocation implements the monthly minimum allocation engine: it
// records spend against a member's monthly minimum and freezes any surplus
// as a donation to staff or charity.
package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"minshare/internal/core"
	"minshare/internal/docstore"
	"minshare/internal/events"
	"minshare/internal/log"
)

// Config holds the engine's collaborators beyond its store.
type Config struct {
	RequiredMinimum core.Money
	Resolver        core.Resolver
	Logger          *log.Logger
	// NewID generates transaction ids. Defaults to UUIDv7.
	NewID func() (string, error)
}

type Engine struct {
	store    docstore.StatusStore
	hub      *events.Hub
	resolver core.Resolver
	minimum  core.Money
	newID    func() (string, error)
	logger   *log.Logger
	inits    singleflight.Group
	writes   *keyLock
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// New returns an engine. A nil hub disables live updates.
func New(store docstore.StatusStore, hub *events.Hub, cfg Config) *Engine {
	if cfg.RequiredMinimum.Cents <= 0 {
		cfg.RequiredMinimum = core.DefaultRequiredMinimum
	}
	if cfg.NewID == nil {
		cfg.NewID = newUUIDv7
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	if hub == nil {
		hub = events.NewHub()
	}
	return &Engine{
		store:    store,
		hub:      hub,
		resolver: cfg.Resolver,
		minimum:  cfg.RequiredMinimum,
		newID:    cfg.NewID,
		logger:   cfg.Logger.WithComponent(log.ComponentAllocation),
		writes:   newKeyLock(),
	}
}

// RequiredMinimum is the minimum applied to newly created documents.
func (e *Engine) RequiredMinimum() core.Money { return e.minimum }

// Resolver returns the engine's period resolver.
func (e *Engine) Resolver() core.Resolver { return e.resolver }

// Hub returns the hub snapshots are published to.
func (e *Engine) Hub() *events.Hub { return e.hub }

// CurrentKey resolves memberID's document for the current period.
func (e *Engine) CurrentKey(memberID string) (core.StatusKey, error) {
	return core.NewStatusKey(memberID, e.resolver.CurrentPeriodKey())
}

// Status returns the key's document, creating the zeroed default on first access.
func (e *Engine) Status(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	// The shared load must outlive any single caller giving up.
	shared := context.WithoutCancel(ctx)
	v, err, _ := e.inits.Do(key.DocID(), func() (any, error) {
		return e.store.LoadOrInit(shared, key, e.minimum)
	})
	if err != nil {
		return core.PeriodStatus{}, fmt.Errorf("load status %s: %w", key, err)
	}
	return v.(core.PeriodStatus).Clone(), nil
}

// Watch streams snapshots of key: the current state first, then one per
// successful write. The channel closes when ctx ends.
func (e *Engine) Watch(ctx context.Context, key core.StatusKey) (<-chan core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return e.hub.Subscribe(ctx, key, func(ctx context.Context) (core.PeriodStatus, error) {
		return e.Status(ctx, key)
	})
}

// RecordTransaction logs a spend of amount against the period. The amount
// must be positive; a blank description becomes "Manual Entry".
func (e *Engine) RecordTransaction(ctx context.Context, key core.StatusKey, amount core.Money, description string) (core.PeriodStatus, error) {
	if err := amount.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	desc, err := core.NormalizeDescription(description)
	if err != nil {
		return core.PeriodStatus{}, err
	}
	if _, err := e.Status(ctx, key); err != nil {
		return core.PeriodStatus{}, err
	}
	id, err := e.newID()
	if err != nil {
		return core.PeriodStatus{}, fmt.Errorf("generate transaction id: %w", err)
	}
	tx := core.Transaction{
		ID:          id,
		Amount:      amount,
		Description: desc,
		Date:        e.resolver.Time().UTC(),
	}
	unlock := e.writes.Lock(key.DocID())
	defer unlock()
	st, err := e.store.AppendTransaction(ctx, key, tx)
	if err != nil {
		return core.PeriodStatus{}, e.fail(ctx, core.OpRecordTransaction, key, err)
	}
	e.logger.InfoContext(ctx, "Transaction recorded", log.NewFields().
		WithStatusKey(key.MemberID, string(key.Period)).
		WithOperation(core.OpRecordTransaction.String()).
		ToSlice()...)
	e.publish(ctx, core.OpRecordTransaction, st)
	return st, nil
}

// MarkFullUsage declares the whole minimum spent: usage becomes the minimum
// and any donation is cleared. No transaction is recorded.
func (e *Engine) MarkFullUsage(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	if _, err := e.Status(ctx, key); err != nil {
		return core.PeriodStatus{}, err
	}
	unlock := e.writes.Lock(key.DocID())
	defer unlock()
	st, err := e.store.MarkFullUsage(ctx, key)
	if err != nil {
		return core.PeriodStatus{}, e.fail(ctx, core.OpMarkFullUsage, key, err)
	}
	e.logger.InfoContext(ctx, "Full usage marked", log.NewFields().
		WithStatusKey(key.MemberID, string(key.Period)).
		WithOperation(core.OpMarkFullUsage.String()).
		ToSlice()...)
	e.publish(ctx, core.OpMarkFullUsage, st)
	return st, nil
}

// DonateSurplus freezes the current surplus as a donation to target. A
// period can be allocated once; later calls fail with
// docstore.ErrAlreadyAllocated. A zero surplus leaves the document unchanged.
func (e *Engine) DonateSurplus(ctx context.Context, key core.StatusKey, target core.AllocationTarget) (core.PeriodStatus, error) {
	if err := target.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	if _, err := e.Status(ctx, key); err != nil {
		return core.PeriodStatus{}, err
	}
	unlock := e.writes.Lock(key.DocID())
	defer unlock()
	st, err := e.store.Allocate(ctx, key, target)
	if err != nil {
		return core.PeriodStatus{}, e.fail(ctx, core.OpDonateSurplus, key, err)
	}
	if !st.HasAllocation() {
		e.logger.DebugContext(ctx, "No surplus to donate", log.NewFields().
			WithStatusKey(key.MemberID, string(key.Period)).ToSlice()...)
		return st, nil
	}
	e.logger.InfoContext(ctx, "Surplus donated", log.NewFields().
		WithStatusKey(key.MemberID, string(key.Period)).
		WithOperation(core.OpDonateSurplus.String()).
		WithAllocation(st.DonatedAmount.Cents, string(st.Target())).
		ToSlice()...)
	e.publish(ctx, core.OpDonateSurplus, st)
	return st, nil
}

// ResetPeriod replaces the document with the zeroed default.
func (e *Engine) ResetPeriod(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	unlock := e.writes.Lock(key.DocID())
	defer unlock()
	return e.reset(ctx, key, core.OpResetPeriod)
}

// AdminReset deletes a member's document for the period and recreates the
// default. Authorization is the caller's job.
func (e *Engine) AdminReset(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	unlock := e.writes.Lock(key.DocID())
	defer unlock()
	if err := e.store.Delete(ctx, key); err != nil {
		return core.PeriodStatus{}, e.fail(ctx, core.OpAdminReset, key, err)
	}
	return e.reset(ctx, key, core.OpAdminReset)
}

// reset runs with the key's write lock held.
func (e *Engine) reset(ctx context.Context, key core.StatusKey, op core.Operation) (core.PeriodStatus, error) {
	st, err := e.store.Reset(ctx, key, e.minimum)
	if err != nil {
		return core.PeriodStatus{}, e.fail(ctx, op, key, err)
	}
	e.logger.InfoContext(ctx, "Period reset", log.NewFields().
		WithStatusKey(key.MemberID, string(key.Period)).
		WithOperation(op.String()).
		ToSlice()...)
	e.publish(ctx, op, st)
	return st, nil
}

// publish runs with the key's write lock held, so subscribers see snapshots
// in commit order.
func (e *Engine) publish(ctx context.Context, op core.Operation, st core.PeriodStatus) {
	e.hub.Publish(ctx, op, st)
}

// fail logs store failures and wraps err. Rule violations are returned as is.
func (e *Engine) fail(ctx context.Context, op core.Operation, key core.StatusKey, err error) error {
	if errors.Is(err, docstore.ErrAlreadyAllocated) || errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrUsageLimit) || errors.Is(err, core.ErrInvalidTarget) {
		return err
	}
	e.logger.ErrorContext(ctx, "Status write failed", log.NewFields().
		WithStatusKey(key.MemberID, string(key.Period)).
		WithOperation(op.String()).
		WithError(err).
		ToSlice()...)
	return fmt.Errorf("%s %s: %w", op, key, err)
}
