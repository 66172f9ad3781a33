// Package bolt provides a BoltDB-backed docstore.
//
// Each document is a JSON value in one of three buckets. Every mutating call
// runs inside a single bolt Update transaction, which serialises writers and
// makes the read-check-write of a mutation atomic.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"

	"minshare/internal/core"
	"minshare/internal/docstore"
)

var (
	statusBucket  = []byte("monthly_status")
	profileBucket = []byte("users")
	contactBucket = []byte("contact_requests")
)

type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (or creates) the database file at path and ensures every bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{statusBucket, profileBucket, contactBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Ping opens a read transaction to confirm the file is usable.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ docstore.Store = (*Store)(nil)

func getJSON(b *bolt.Bucket, key string, v any) error {
	raw := b.Get([]byte(key))
	if raw == nil {
		return docstore.ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func (s *Store) LoadOrInit(_ context.Context, key core.StatusKey, requiredMinimum core.Money) (core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	var st core.PeriodStatus
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(statusBucket)
		err := getJSON(b, key.DocID(), &st)
		if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		st = core.NewPeriodStatus(key, requiredMinimum, s.now())
		return putJSON(b, key.DocID(), st)
	})
	if err != nil {
		return core.PeriodStatus{}, fmt.Errorf("load status %s: %w", key, err)
	}
	return st, nil
}

func (s *Store) Get(_ context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	var st core.PeriodStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(statusBucket), key.DocID(), &st)
	})
	if err != nil {
		return core.PeriodStatus{}, err
	}
	return st, nil
}

func (s *Store) AppendTransaction(_ context.Context, key core.StatusKey, t core.Transaction) (core.PeriodStatus, error) {
	return s.update(key, docstore.AppendMutation(t))
}

func (s *Store) MarkFullUsage(_ context.Context, key core.StatusKey) (core.PeriodStatus, error) {
	return s.update(key, docstore.FullUsageMutation())
}

func (s *Store) Allocate(_ context.Context, key core.StatusKey, target core.AllocationTarget) (core.PeriodStatus, error) {
	return s.update(key, docstore.AllocateMutation(target))
}

func (s *Store) update(key core.StatusKey, mut docstore.Mutation) (core.PeriodStatus, error) {
	var st core.PeriodStatus
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(statusBucket)
		if err := getJSON(b, key.DocID(), &st); err != nil {
			return err
		}
		changed, err := mut(&st, s.now())
		if err != nil || !changed {
			return err
		}
		return putJSON(b, key.DocID(), st)
	})
	if err != nil {
		return core.PeriodStatus{}, err
	}
	return st, nil
}

func (s *Store) Reset(_ context.Context, key core.StatusKey, requiredMinimum core.Money) (core.PeriodStatus, error) {
	if err := key.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	st := core.NewPeriodStatus(key, requiredMinimum, s.now())
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(statusBucket)
		var prev core.PeriodStatus
		if err := getJSON(b, key.DocID(), &prev); err == nil {
			st.CreatedAt = prev.CreatedAt
		}
		return putJSON(b, key.DocID(), st)
	})
	if err != nil {
		return core.PeriodStatus{}, fmt.Errorf("reset status %s: %w", key, err)
	}
	return st, nil
}

// Delete is a no-op for missing documents.
func (s *Store) Delete(_ context.Context, key core.StatusKey) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(statusBucket).Delete([]byte(key.DocID()))
	})
}

func (s *Store) ListByPeriod(_ context.Context, period core.PeriodKey) ([]core.PeriodStatus, error) {
	items := []core.PeriodStatus{}
	suffix := "_" + string(period)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(statusBucket).ForEach(func(k, v []byte) error {
			if !strings.HasSuffix(string(k), suffix) {
				return nil
			}
			var st core.PeriodStatus
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
			if st.Period == period {
				items = append(items, st)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list statuses for %s: %w", period, err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].MemberID < items[j].MemberID })
	return items, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(profileBucket)
		var prev core.Profile
		if err := getJSON(b, p.MemberID, &prev); err == nil && !prev.CreatedAt.IsZero() {
			p.CreatedAt = prev.CreatedAt
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.now().UTC()
		}
		return putJSON(b, p.MemberID, p)
	})
}

func (s *Store) GetProfile(_ context.Context, memberID string) (core.Profile, error) {
	var p core.Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(profileBucket), strings.TrimSpace(memberID), &p)
	})
	return p, err
}

func (s *Store) ListProfiles(_ context.Context) ([]core.Profile, error) {
	items := []core.Profile{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(profileBucket).ForEach(func(_, v []byte) error {
			var p core.Profile
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			items = append(items, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return items, nil
}

func (s *Store) SaveContactRequest(_ context.Context, c core.ContactRequest) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		return errors.New("contact request id is required")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(contactBucket), c.ID, c)
	})
}

func (s *Store) ListContactRequests(_ context.Context) ([]core.ContactRequest, error) {
	items := []core.ContactRequest{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(contactBucket).ForEach(func(_, v []byte) error {
			var c core.ContactRequest
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			items = append(items, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list contact requests: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}
