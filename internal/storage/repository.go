// Package storage is the SQLite docstore. Status documents live in
// monthly_status with their ledger in status_transactions.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"minshare/internal/core"
	"minshare/internal/docstore"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ docstore.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens dbPath, applies migrations and returns the store.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// SetClock overrides the timestamp source.
func (r *SQLiteRepository) SetClock(now func() time.Time) { r.now = now }

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// withTx runs fn in one transaction, committing only when fn succeeds.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const selectStatus = `SELECT uid, month, required_minimum_cents, actual_usage_cents, is_full_usage,
	donated_amount_cents, allocation_target, created_at, updated_at FROM monthly_status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(row rowScanner) (core.PeriodStatus, error) {
	var (
		st                 core.PeriodStatus
		period             string
		full               int64
		target             sql.NullString
		created, updated   string
		minimum, usage, dn int64
	)
	if err := row.Scan(&st.MemberID, &period, &minimum, &usage, &full, &dn, &target, &created, &updated); err != nil {
		return core.PeriodStatus{}, err
	}
	st.Period = core.PeriodKey(period)
	st.RequiredMinimum = core.Money{Cents: minimum}
	st.ActualUsage = core.Money{Cents: usage}
	st.IsFullUsage = full != 0
	st.DonatedAmount = core.Money{Cents: dn}
	if target.Valid {
		st.AllocationTarget = core.AllocationTarget(target.String).Ptr()
	}
	var err error
	if st.CreatedAt, err = parseTime(created); err != nil {
		return core.PeriodStatus{}, err
	}
	if st.UpdatedAt, err = parseTime(updated); err != nil {
		return core.PeriodStatus{}, err
	}
	st.Transactions = []core.Transaction{}
	return st, nil
}

func (r *SQLiteRepository) load(ctx context.Context, q querier, key core.StatusKey) (core.PeriodStatus, error) {
	st, err := scanStatus(q.QueryRowContext(ctx, selectStatus+` WHERE id = ?`, key.DocID()))
	if errors.Is(err, sql.ErrNoRows) {
		return core.PeriodStatus{}, docstore.ErrNotFound
	}
	if err != nil {
		return core.PeriodStatus{}, fmt.Errorf("select status %s: %w", key, err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, amount_cents, description, date FROM status_transactions WHERE status_id = ? ORDER BY seq`,
		key.DocID())
	if err != nil {
		return core.PeriodStatus{}, fmt.Errorf("select transactions %s: %w", key, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t    core.Transaction
			date string
		)
		if err := rows.Scan(&t.ID, &t.Amount.Cents, &t.Description, &date); err != nil {
			return core.PeriodStatus{}, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = parseTime(date); err != nil {
			return core.PeriodStatus{}, err
		}
		st.Transactions = append(st.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return core.PeriodStatus{}, fmt.Errorf("iterate transactions: %w", err)
	}
	return st, nil
}

func (r *SQLiteRepository) LoadOrInit(ctx context.Context, key core.StatusKey, requiredMinimum core.Money) (core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	now := r.stamp()
	_, err := r.db.ExecContext(ctx, `INSERT INTO monthly_status
		(id, uid, month, required_minimum_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		key.DocID(), key.MemberID, string(key.Period), requiredMinimum.Cents, now, now)
	if err != nil {
		return core.PeriodStatus{}, fmt.Errorf("init status %s: %w", key, err)
	}
	return r.load(ctx, r.db, key)
}

func (r *SQLiteRepository) Get(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	return r.load(ctx, r.db, key)
}

// mustAffect maps a zero-row update to ErrNotFound.
func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) AppendTransaction(ctx context.Context, key core.StatusKey, t core.Transaction) (core.PeriodStatus, error) {
	if err := t.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	var st core.PeriodStatus
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE monthly_status SET actual_usage_cents = actual_usage_cents + ?, updated_at = ?
			WHERE id = ? AND actual_usage_cents <= ?`,
			t.Amount.Cents, r.stamp(), key.DocID(), core.MaxUsage.Cents-t.Amount.Cents)
		if err != nil {
			return fmt.Errorf("increment usage: %w", err)
		}
		if err := mustAffect(res); errors.Is(err, docstore.ErrNotFound) {
			if _, err := r.load(ctx, tx, key); err != nil {
				return err
			}
			return core.ErrUsageLimit
		} else if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO status_transactions (status_id, id, amount_cents, description, date) VALUES (?, ?, ?, ?, ?)`,
			key.DocID(), t.ID, t.Amount.Cents, t.Description, t.Date.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		st, err = r.load(ctx, tx, key)
		return err
	})
	if err != nil {
		return core.PeriodStatus{}, err
	}
	return st, nil
}

func (r *SQLiteRepository) MarkFullUsage(ctx context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	var st core.PeriodStatus
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE monthly_status
			SET actual_usage_cents = required_minimum_cents, is_full_usage = 1,
			    donated_amount_cents = 0, allocation_target = NULL, updated_at = ?
			WHERE id = ?`, r.stamp(), key.DocID())
		if err != nil {
			return fmt.Errorf("mark full usage: %w", err)
		}
		if err := mustAffect(res); err != nil {
			return err
		}
		st, err = r.load(ctx, tx, key)
		return err
	})
	if err != nil {
		return core.PeriodStatus{}, err
	}
	return st, nil
}

func (r *SQLiteRepository) Allocate(ctx context.Context, key core.StatusKey, target core.AllocationTarget) (core.PeriodStatus, error) {
	if err := target.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	var st core.PeriodStatus
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if st, err = r.load(ctx, tx, key); err != nil {
			return err
		}
		if st.HasAllocation() {
			return docstore.ErrAlreadyAllocated
		}
		surplus := st.Surplus()
		if surplus.IsZero() {
			return nil
		}
		res, err := tx.ExecContext(ctx, `UPDATE monthly_status
			SET donated_amount_cents = ?, allocation_target = ?, updated_at = ?
			WHERE id = ? AND allocation_target IS NULL`,
			surplus.Cents, string(target), r.stamp(), key.DocID())
		if err != nil {
			return fmt.Errorf("allocate surplus: %w", err)
		}
		if err := mustAffect(res); errors.Is(err, docstore.ErrNotFound) {
			return docstore.ErrAlreadyAllocated
		} else if err != nil {
			return err
		}
		st, err = r.load(ctx, tx, key)
		return err
	})
	if err != nil {
		return core.PeriodStatus{}, err
	}
	return st, nil
}

func (r *SQLiteRepository) Reset(ctx context.Context, key core.StatusKey, requiredMinimum core.Money) (core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	var st core.PeriodStatus
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM status_transactions WHERE status_id = ?`, key.DocID()); err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		now := r.stamp()
		if _, err := tx.ExecContext(ctx, `INSERT INTO monthly_status
			(id, uid, month, required_minimum_cents, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				required_minimum_cents = excluded.required_minimum_cents,
				actual_usage_cents = 0, is_full_usage = 0,
				donated_amount_cents = 0, allocation_target = NULL,
				updated_at = excluded.updated_at`,
			key.DocID(), key.MemberID, string(key.Period), requiredMinimum.Cents, now, now); err != nil {
			return fmt.Errorf("reset status: %w", err)
		}
		var err error
		st, err = r.load(ctx, tx, key)
		return err
	})
	if err != nil {
		return core.PeriodStatus{}, fmt.Errorf("reset %s: %w", key, err)
	}
	return st, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key core.StatusKey) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM status_transactions WHERE status_id = ?`, key.DocID()); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_status WHERE id = ?`, key.DocID()); err != nil {
			return fmt.Errorf("delete status: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) ListByPeriod(ctx context.Context, period core.PeriodKey) ([]core.PeriodStatus, error) {
	rows, err := r.db.QueryContext(ctx, selectStatus+` WHERE month = ? ORDER BY uid`, string(period))
	if err != nil {
		return nil, fmt.Errorf("list statuses for %s: %w", period, err)
	}
	var keys []core.StatusKey
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status: %w", err)
		}
		keys = append(keys, st.Key())
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}

	// Rows are drained before loading ledgers; the pool has one connection.
	out := make([]core.PeriodStatus, 0, len(keys))
	for _, k := range keys {
		st, err := r.load(ctx, r.db, k)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
