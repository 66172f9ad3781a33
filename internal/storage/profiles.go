package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"minshare/internal/core"
	"minshare/internal/docstore"
)

const selectProfile = `SELECT member_id, email, first_name, last_name, display_name,
	club_member_number, phone_number, role, created_at FROM users`

func scanProfile(row rowScanner) (core.Profile, error) {
	var (
		p       core.Profile
		created string
	)
	if err := row.Scan(&p.MemberID, &p.Email, &p.FirstName, &p.LastName, &p.DisplayName,
		&p.ClubMemberNumber, &p.PhoneNumber, &p.Role, &created); err != nil {
		return core.Profile{}, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

// SaveProfile upserts the profile, keeping the original creation time.
func (r *SQLiteRepository) SaveProfile(ctx context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	created := r.stamp()
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt.UTC().Format(timeLayout)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO users
		(member_id, email, first_name, last_name, display_name, club_member_number, phone_number, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id) DO UPDATE SET
			email = excluded.email, first_name = excluded.first_name,
			last_name = excluded.last_name, display_name = excluded.display_name,
			club_member_number = excluded.club_member_number,
			phone_number = excluded.phone_number, role = excluded.role`,
		p.MemberID, p.Email, p.FirstName, p.LastName, p.DisplayName,
		p.ClubMemberNumber, p.PhoneNumber, p.Role, created)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.MemberID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, memberID string) (core.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, selectProfile+` WHERE member_id = ?`, strings.TrimSpace(memberID)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, docstore.ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile %s: %w", memberID, err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListProfiles(ctx context.Context) ([]core.Profile, error) {
	rows, err := r.db.QueryContext(ctx, selectProfile+` ORDER BY member_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()
	out := []core.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveContactRequest(ctx context.Context, c core.ContactRequest) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		return errors.New("contact request id is required")
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO contact_requests
		(id, name, email, phone, message, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Phone, c.Message, c.Status, c.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save contact request: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListContactRequests(ctx context.Context) ([]core.ContactRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, phone, message, status, created_at FROM contact_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contact requests: %w", err)
	}
	defer rows.Close()
	out := []core.ContactRequest{}
	for rows.Next() {
		var (
			c       core.ContactRequest
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Message, &c.Status, &created); err != nil {
			return nil, fmt.Errorf("scan contact request: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
