package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TargetStaff   AllocationTarget = "staff"
	TargetCharity AllocationTarget = "charity"
)

// DefaultDescription is used when a transaction is logged without one.
const DefaultDescription = "Manual Entry"

// MaxDescriptionLength bounds transaction descriptions.
const MaxDescriptionLength = 200

// DefaultRequiredMinimum is the club-wide monthly minimum.
var DefaultRequiredMinimum = Dollars(75, 0)

type (
	// AllocationTarget is where a period's surplus is sent.
	AllocationTarget string

	// Transaction is one itemized spend entry. Immutable once created.
	Transaction struct {
		ID          string    `json:"id"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Date        time.Time `json:"date"`
	}

	// StatusKey identifies one Period Status document.
	StatusKey struct {
		MemberID string
		Period   PeriodKey
	}

	// PeriodStatus is the aggregate record for one member and one month.
	//
	// ActualUsage is an explicit aggregate: it equals the sum of Transactions
	// except after a full-usage mark, which overrides it without a ledger entry.
	PeriodStatus struct {
		MemberID         string            `json:"uid"`
		Period           PeriodKey         `json:"month"`
		RequiredMinimum  Money             `json:"requiredMinimum"`
		ActualUsage      Money             `json:"actualUsage"`
		IsFullUsage      bool              `json:"isFullUsage"`
		DonatedAmount    Money             `json:"donatedAmount"`
		AllocationTarget *AllocationTarget `json:"allocationTarget,omitempty"`
		Transactions     []Transaction     `json:"transactions"`
		CreatedAt        time.Time         `json:"createdAt"`
		UpdatedAt        time.Time         `json:"updatedAt"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTarget      = errors.New("invalid allocation target")
	ErrInvalidPeriod      = errors.New("invalid period key")
	ErrEmptyMemberID      = errors.New("empty member id")
	ErrUsageLimit         = fmt.Errorf("period usage limit exceeded (max %s)", MaxUsage)
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
)

// ParseAllocationTarget validates a raw target name.
func ParseAllocationTarget(s string) (AllocationTarget, error) {
	t := AllocationTarget(strings.ToLower(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (t AllocationTarget) Validate() error {
	switch t {
	case TargetStaff, TargetCharity:
		return nil
	default:
		return ErrInvalidTarget
	}
}

// Label is the member-facing destination name.
func (t AllocationTarget) Label() string {
	switch t {
	case TargetStaff:
		return "Staff Food"
	case TargetCharity:
		return "Charity"
	default:
		return string(t)
	}
}

// Ptr returns a pointer to a copy of t.
func (t AllocationTarget) Ptr() *AllocationTarget { return &t }

// NewStatusKey builds and validates a key.
func NewStatusKey(memberID string, period PeriodKey) (StatusKey, error) {
	k := StatusKey{MemberID: strings.TrimSpace(memberID), Period: period}
	if err := k.Validate(); err != nil {
		return StatusKey{}, err
	}
	return k, nil
}

func (k StatusKey) Validate() error {
	if k.MemberID == "" {
		return ErrEmptyMemberID
	}
	return k.Period.Validate()
}

// DocID is the document identifier "<memberId>_<periodKey>".
func (k StatusKey) DocID() string {
	return k.MemberID + "_" + string(k.Period)
}

func (k StatusKey) String() string { return k.DocID() }

// NormalizeDescription trims the description, applying the default when blank.
func NormalizeDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return DefaultDescription, nil
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return "", ErrDescriptionTooLong
	}
	return desc, nil
}

func (tx Transaction) Validate() error {
	if strings.TrimSpace(tx.ID) == "" {
		return errors.New("empty transaction id")
	}
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(tx.Description) == "" {
		return errors.New("empty description")
	}
	if utf8.RuneCountInString(tx.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if tx.Date.IsZero() {
		return errors.New("transaction date cannot be zero")
	}
	return nil
}

// NewPeriodStatus returns the zeroed default document for key.
func NewPeriodStatus(key StatusKey, requiredMinimum Money, now time.Time) PeriodStatus {
	return PeriodStatus{
		MemberID:        key.MemberID,
		Period:          key.Period,
		RequiredMinimum: requiredMinimum,
		Transactions:    []Transaction{},
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
}

// Key returns the status' document key.
func (s PeriodStatus) Key() StatusKey {
	return StatusKey{MemberID: s.MemberID, Period: s.Period}
}

// Surplus is the part of the minimum neither self-spent nor donated, never negative.
func (s PeriodStatus) Surplus() Money {
	return s.RequiredMinimum.Sub(s.ActualUsage).Sub(s.DonatedAmount).Max0()
}

// HasAllocation reports whether a donation target has been recorded.
func (s PeriodStatus) HasAllocation() bool {
	return s.AllocationTarget != nil
}

// Target returns the allocation target or "" when none.
func (s PeriodStatus) Target() AllocationTarget {
	if s.AllocationTarget == nil {
		return ""
	}
	return *s.AllocationTarget
}

// LedgerTotal sums the itemized transactions.
func (s PeriodStatus) LedgerTotal() Money {
	var total Money
	for _, tx := range s.Transactions {
		total = total.Add(tx.Amount)
	}
	return total
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s PeriodStatus) Clone() PeriodStatus {
	out := s
	out.Transactions = append([]Transaction(nil), s.Transactions...)
	if out.Transactions == nil {
		out.Transactions = []Transaction{}
	}
	if s.AllocationTarget != nil {
		out.AllocationTarget = s.AllocationTarget.Ptr()
	}
	return out
}

// TransactionsNewestFirst returns the ledger sorted by date descending.
// The stored order (insertion order) is left untouched.
func (s PeriodStatus) TransactionsNewestFirst() []Transaction {
	out := append([]Transaction(nil), s.Transactions...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// ApplyTransaction appends tx and increments the usage aggregate. The
// status is left untouched when the new usage would pass MaxUsage.
func (s *PeriodStatus) ApplyTransaction(tx Transaction, now time.Time) error {
	usage, err := s.ActualUsage.AddUsage(tx.Amount)
	if err != nil {
		return err
	}
	s.Transactions = append(s.Transactions, tx)
	s.ActualUsage = usage
	s.UpdatedAt = now.UTC()
	return nil
}

// ApplyFullUsage overrides usage to the minimum and clears any donation.
func (s *PeriodStatus) ApplyFullUsage(now time.Time) {
	s.ActualUsage = s.RequiredMinimum
	s.IsFullUsage = true
	s.DonatedAmount = Money{}
	s.AllocationTarget = nil
	s.UpdatedAt = now.UTC()
}

// ApplyAllocation freezes the outstanding surplus as donated to target.
// It reports false when there was nothing to allocate.
func (s *PeriodStatus) ApplyAllocation(target AllocationTarget, now time.Time) bool {
	surplus := s.Surplus()
	if surplus.IsZero() {
		return false
	}
	s.DonatedAmount = surplus
	s.AllocationTarget = target.Ptr()
	s.UpdatedAt = now.UTC()
	return true
}
