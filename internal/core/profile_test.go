package core

import "testing"

func TestProfileNormalize(t *testing.T) {
	p := Profile{MemberID: " m1 ", FirstName: " Ada ", LastName: "Lovelace "}
	p.Normalize()
	if p.DisplayName != "Ada Lovelace" || p.Role != DefaultRole || p.MemberID != "m1" {
		t.Fatalf("normalized: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	p = Profile{MemberID: "m1", FirstName: "Ada", Email: "not-an-email"}
	p.Normalize()
	if err := p.Validate(); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestContactRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  ContactRequest
		err  error
	}{
		{"ok", ContactRequest{Name: "Ada", Email: "ada@example.com", Message: "hi"}, nil},
		{"no name", ContactRequest{Email: "ada@example.com", Message: "hi"}, ErrMissingName},
		{"no email", ContactRequest{Name: "Ada", Message: "hi"}, ErrMissingEmail},
		{"bad email", ContactRequest{Name: "Ada", Email: "ada", Message: "hi"}, ErrInvalidEmail},
		{"no message", ContactRequest{Name: "Ada", Email: "ada@example.com", Message: "  "}, ErrMissingMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.req.Validate(); err != tc.err {
				t.Fatalf("Validate = %v, want %v", err, tc.err)
			}
		})
	}
}
