package cli

import (
	"context"
	"path/filepath"
	"testing"

	"minshare/internal/config"
	"minshare/internal/log"
)

func TestLoadAndValidateConfigReportsErrors(t *testing.T) {
	t.Setenv("CLUB_CONFIG_FILE", "")
	t.Setenv("DATA_BACKEND", "postgres")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestOpenBackend(t *testing.T) {
	cfg := &config.Config{DataBackend: "bolt", BoltDBPath: filepath.Join(t.TempDir(), "m.bolt")}
	store, err := OpenBackend(cfg, log.Discard())
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(context.Background(), log.Discard())
	cancel()
	<-ctx.Done()
}
