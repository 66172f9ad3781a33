package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// DefaultRole is assigned to profiles created during onboarding.
const DefaultRole = "member"

// ContactStatusNew marks a contact request nobody has handled yet.
const ContactStatusNew = "new"

var (
	ErrMissingName    = errors.New("name is required")
	ErrMissingEmail   = errors.New("email is required")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrMissingMessage = errors.New("message is required")
)

// Profile is a member's onboarding record, used for display joins only.
type Profile struct {
	MemberID         string    `json:"memberId"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	DisplayName      string    `json:"displayName"`
	ClubMemberNumber string    `json:"clubMemberNumber"`
	PhoneNumber      string    `json:"phoneNumber"`
	Role             string    `json:"role"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Normalize trims every field, fills DisplayName and the default role.
func (p *Profile) Normalize() {
	p.MemberID = strings.TrimSpace(p.MemberID)
	p.Email = strings.TrimSpace(p.Email)
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.ClubMemberNumber = strings.TrimSpace(p.ClubMemberNumber)
	p.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
	p.DisplayName = strings.TrimSpace(p.FirstName + " " + p.LastName)
	if strings.TrimSpace(p.Role) == "" {
		p.Role = DefaultRole
	}
}

func (p Profile) Validate() error {
	if p.MemberID == "" {
		return ErrEmptyMemberID
	}
	if p.FirstName == "" && p.LastName == "" {
		return ErrMissingName
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	return nil
}

// Label is the name shown in admin listings, falling back to the email.
func (p Profile) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Email != "" {
		return p.Email
	}
	return p.MemberID
}

// ContactRequest is a message left through the public contact form.
type ContactRequest struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c ContactRequest) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(c.Email) == "" {
		return ErrMissingEmail
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(c.Message) == "" {
		return ErrMissingMessage
	}
	return nil
}
