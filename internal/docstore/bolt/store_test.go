package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"minshare/internal/core"
	"minshare/internal/docstore"
	"minshare/internal/docstore/bolt"
	"minshare/internal/docstore/storetest"
)

func newTestStore(t *testing.T) *bolt.Store {
	t.Helper()
	s, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return newTestStore(t)
	})
}

func TestReopenKeepsDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := bolt.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	k := core.StatusKey{MemberID: "m1", Period: "2025-06"}
	if _, err := s.LoadOrInit(ctx, k, core.DefaultRequiredMinimum); err != nil {
		t.Fatalf("LoadOrInit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = bolt.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.Get(ctx, k); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
