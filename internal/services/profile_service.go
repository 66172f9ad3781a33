package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"minshare/internal/core"
	"minshare/internal/docstore"
	"minshare/internal/log"
)

// ProfileService stores onboarding profiles.
type ProfileService struct {
	store   docstore.ProfileStore
	now     func() time.Time
	onSaved func(core.Profile)
	logger  *log.Logger
}

// ProfileOption configures a ProfileService.
type ProfileOption func(*ProfileService)

// WithProfileClock overrides the creation timestamp source.
func WithProfileClock(now func() time.Time) ProfileOption {
	return func(s *ProfileService) { s.now = now }
}

// OnProfileSaved registers a hook run after every successful save.
func OnProfileSaved(fn func(core.Profile)) ProfileOption {
	return func(s *ProfileService) { s.onSaved = fn }
}

func NewProfileService(store docstore.ProfileStore, logger *log.Logger, opts ...ProfileOption) *ProfileService {
	if logger == nil {
		logger = log.Discard()
	}
	s := &ProfileService{store: store, now: time.Now, logger: logger.WithComponent(log.ComponentApp)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns memberID's profile; docstore.ErrNotFound when not onboarded.
func (s *ProfileService) Get(ctx context.Context, memberID string) (core.Profile, error) {
	return s.store.GetProfile(ctx, memberID)
}

// Save validates and stores p, keeping the original creation time of an
// existing profile.
func (s *ProfileService) Save(ctx context.Context, p core.Profile) (core.Profile, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	existing, err := s.store.GetProfile(ctx, p.MemberID)
	switch {
	case err == nil:
		p.CreatedAt = existing.CreatedAt
		if existing.Role != "" {
			p.Role = existing.Role
		}
	case errors.Is(err, docstore.ErrNotFound):
		p.CreatedAt = s.now().UTC()
	default:
		return core.Profile{}, fmt.Errorf("load profile %s: %w", p.MemberID, err)
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return core.Profile{}, fmt.Errorf("save profile %s: %w", p.MemberID, err)
	}
	s.logger.InfoContext(ctx, "Profile saved", log.FieldMemberID, p.MemberID)
	if s.onSaved != nil {
		s.onSaved(p)
	}
	return p, nil
}

// ContactService captures messages from the public contact form.
type ContactService struct {
	store  docstore.ContactStore
	now    func() time.Time
	newID  func() (string, error)
	logger *log.Logger
}

func NewContactService(store docstore.ContactStore, logger *log.Logger) *ContactService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ContactService{
		store: store,
		now:   time.Now,
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			return id.String(), err
		},
		logger: logger.WithComponent(log.ComponentApp),
	}
}

// Submit stores c as a new request and returns it with id and timestamp set.
func (s *ContactService) Submit(ctx context.Context, c core.ContactRequest) (core.ContactRequest, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Message = strings.TrimSpace(c.Message)
	if err := c.Validate(); err != nil {
		return core.ContactRequest{}, err
	}
	id, err := s.newID()
	if err != nil {
		return core.ContactRequest{}, fmt.Errorf("generate contact id: %w", err)
	}
	c.ID = id
	c.Status = core.ContactStatusNew
	c.CreatedAt = s.now().UTC()
	if err := s.store.SaveContactRequest(ctx, c); err != nil {
		return core.ContactRequest{}, fmt.Errorf("save contact request: %w", err)
	}
	s.logger.InfoContext(ctx, "Contact request received", "contact_id", c.ID)
	return c, nil
}

// List returns every request newest first.
func (s *ContactService) List(ctx context.Context) ([]core.ContactRequest, error) {
	return s.store.ListContactRequests(ctx)
}
