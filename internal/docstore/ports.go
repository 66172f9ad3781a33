// Package docstore defines the persistence ports for period status
// documents, member profiles and contact requests.
package docstore

import (
	"context"
	"errors"

	"minshare/internal/core"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyAllocated is returned when a period's surplus has already
	// been given a destination.
	ErrAlreadyAllocated = errors.New("surplus already allocated for this period")
)

// Ports for outbound adapters.
type (
	// StatusStore persists one PeriodStatus per (member, period). Every
	// mutating method is a single atomic unit against the stored document.
	StatusStore interface {
		// LoadOrInit returns the stored document or atomically creates the
		// zeroed default. Concurrent first calls converge on one record.
		LoadOrInit(ctx context.Context, key core.StatusKey, requiredMinimum core.Money) (core.PeriodStatus, error)
		// Get returns ErrNotFound when the document does not exist.
		Get(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error)
		// AppendTransaction appends tx and increments actualUsage by its amount.
		AppendTransaction(ctx context.Context, key core.StatusKey, tx core.Transaction) (core.PeriodStatus, error)
		MarkFullUsage(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error)
		// Allocate freezes the stored surplus under target. It fails with
		// ErrAlreadyAllocated when a target is already recorded and leaves the
		// document untouched when the surplus is zero.
		Allocate(ctx context.Context, key core.StatusKey, target core.AllocationTarget) (core.PeriodStatus, error)
		// Reset replaces the document with the zeroed default.
		Reset(ctx context.Context, key core.StatusKey, requiredMinimum core.Money) (core.PeriodStatus, error)
		// Delete removes the document. Deleting a missing document is not an error.
		Delete(ctx context.Context, key core.StatusKey) error
		// ListByPeriod returns every member's document for period ordered by member id.
		ListByPeriod(ctx context.Context, period core.PeriodKey) ([]core.PeriodStatus, error)
	}

	ProfileStore interface {
		SaveProfile(ctx context.Context, p core.Profile) error
		// GetProfile returns ErrNotFound for unknown members.
		GetProfile(ctx context.Context, memberID string) (core.Profile, error)
		ListProfiles(ctx context.Context) ([]core.Profile, error)
	}

	ContactStore interface {
		SaveContactRequest(ctx context.Context, c core.ContactRequest) error
		// ListContactRequests returns requests newest first.
		ListContactRequests(ctx context.Context) ([]core.ContactRequest, error)
	}

	// Store bundles every port a backend provides.
	Store interface {
		StatusStore
		ProfileStore
		ContactStore
		Close() error
	}
)
