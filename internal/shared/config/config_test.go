package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if cfg.HeartbeatInterval != want.HeartbeatInterval {
		t.Fatalf("expected default heartbeat interval %v, got %v", want.HeartbeatInterval, cfg.HeartbeatInterval)
	}
	if cfg.MaxRetries != want.MaxRetries {
		t.Fatalf("expected default max retries %d, got %d", want.MaxRetries, cfg.MaxRetries)
	}
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acr.yaml")
	contents := "node_id: node-a\nmissed_threshold: 5\nclaim_timeout: 2m\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeID != "node-a" {
		t.Fatalf("expected node_id from file, got %q", cfg.NodeID)
	}
	if cfg.MissedThreshold != 5 {
		t.Fatalf("expected missed_threshold 5 from file, got %d", cfg.MissedThreshold)
	}
	if cfg.ClaimTimeout != 2*time.Minute {
		t.Fatalf("expected claim_timeout 2m from file, got %v", cfg.ClaimTimeout)
	}
	// Fields the file doesn't mention still fall back to defaults.
	if cfg.HeartbeatInterval != Defaults().HeartbeatInterval {
		t.Fatalf("expected unset field to keep default, got %v", cfg.HeartbeatInterval)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected missing config file to be tolerated, got error: %v", err)
	}
	if cfg.HeartbeatInterval != Defaults().HeartbeatInterval {
		t.Fatalf("expected defaults when file missing")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acr.yaml")
	if err := os.WriteFile(path, []byte("missed_threshold: 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ACR_MISSED_THRESHOLD", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MissedThreshold != 9 {
		t.Fatalf("expected environment to override file, got %d", cfg.MissedThreshold)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acr.yaml")

	want := Defaults()
	want.NodeID = "node-b"
	want.MaxRetries = 7

	if err := Save(want, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.NodeID != want.NodeID {
		t.Fatalf("expected node_id %q, got %q", want.NodeID, got.NodeID)
	}
	if got.MaxRetries != want.MaxRetries {
		t.Fatalf("expected max_retries %d, got %d", want.MaxRetries, got.MaxRetries)
	}
	if got.ClaimTimeout != want.ClaimTimeout {
		t.Fatalf("expected claim_timeout %v, got %v", want.ClaimTimeout, got.ClaimTimeout)
	}
}
