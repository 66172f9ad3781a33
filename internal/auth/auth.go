// Package auth resolves the calling member and decides admin privilege.
package auth

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
)

const (
	HeaderMemberID    = "X-Member-ID"
	HeaderMemberEmail = "X-Member-Email"
)

// ErrUnauthenticated is returned when a request carries no member identity.
var ErrUnauthenticated = errors.New("no authenticated member")

// Identity is the authenticated caller as asserted by the identity proxy.
type Identity struct {
	MemberID string
	Email    string
}

// FromRequest reads the identity headers set by the fronting proxy.
func FromRequest(r *http.Request) (Identity, error) {
	id := Identity{
		MemberID: strings.TrimSpace(r.Header.Get(HeaderMemberID)),
		Email:    strings.TrimSpace(r.Header.Get(HeaderMemberEmail)),
	}
	if id.MemberID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

type ctxKey struct{}

// NewContext returns ctx carrying id.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by NewContext.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Allowlist is the static set of privileged emails.
type Allowlist struct {
	emails map[string]struct{}
}

// NewAllowlist builds an allowlist; matching is case-insensitive.
func NewAllowlist(emails []string) Allowlist {
	a := Allowlist{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		e = normalize(e)
		if e != "" {
			a.emails[e] = struct{}{}
		}
	}
	return a
}

// ParseAllowlist splits a comma separated email list.
func ParseAllowlist(s string) Allowlist {
	return NewAllowlist(strings.Split(s, ","))
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsPrivileged reports whether id may use admin operations.
func (a Allowlist) IsPrivileged(id Identity) bool {
	if id.Email == "" {
		return false
	}
	_, ok := a.emails[normalize(id.Email)]
	return ok
}

// Emails returns the configured addresses sorted.
func (a Allowlist) Emails() []string {
	out := make([]string, 0, len(a.emails))
	for e := range a.emails {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Len is the number of privileged addresses.
func (a Allowlist) Len() int { return len(a.emails) }
