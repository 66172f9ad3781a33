package auth

import (
	"net/http/httptest"
	"testing"
)

func TestAllowlistIsPrivileged(t *testing.T) {
	a := ParseAllowlist(" Admin@Club.org , ops@club.org,,")
	if a.Len() != 2 {
		t.Fatalf("Len = %d", a.Len())
	}
	cases := []struct {
		email string
		want  bool
	}{
		{"admin@club.org", true},
		{"ADMIN@CLUB.ORG", true},
		{" ops@club.org ", true},
		{"member@club.org", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := a.IsPrivileged(Identity{MemberID: "m", Email: tc.email}); got != tc.want {
			t.Errorf("IsPrivileged(%q) = %v, want %v", tc.email, got, tc.want)
		}
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/status", nil)
	if _, err := FromRequest(r); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	r.Header.Set(HeaderMemberID, " m1 ")
	r.Header.Set(HeaderMemberEmail, "ada@example.com")
	id, err := FromRequest(r)
	if err != nil {
		t.Fatalf("FromRequest: %v", err)
	}
	if id.MemberID != "m1" || id.Email != "ada@example.com" {
		t.Fatalf("identity = %+v", id)
	}

	ctx := NewContext(r.Context(), id)
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Fatalf("FromContext = %+v, %v", got, ok)
	}
}
