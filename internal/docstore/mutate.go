package docstore

import (
	"time"

	"minshare/internal/core"
)

// Mutation edits a loaded status inside a store's write unit. It reports
// whether the document changed and must be persisted.
type Mutation func(s *core.PeriodStatus, now time.Time) (bool, error)

// AppendMutation appends tx and increments usage.
func AppendMutation(tx core.Transaction) Mutation {
	return func(s *core.PeriodStatus, now time.Time) (bool, error) {
		if err := tx.Validate(); err != nil {
			return false, err
		}
		if err := s.ApplyTransaction(tx, now); err != nil {
			return false, err
		}
		return true, nil
	}
}

// FullUsageMutation overrides usage to the required minimum.
func FullUsageMutation() Mutation {
	return func(s *core.PeriodStatus, now time.Time) (bool, error) {
		s.ApplyFullUsage(now)
		return true, nil
	}
}

// AllocateMutation is the compare-and-set on allocationTarget.
func AllocateMutation(target core.AllocationTarget) Mutation {
	return func(s *core.PeriodStatus, now time.Time) (bool, error) {
		if err := target.Validate(); err != nil {
			return false, err
		}
		if s.HasAllocation() {
			return false, ErrAlreadyAllocated
		}
		return s.ApplyAllocation(target, now), nil
	}
}
