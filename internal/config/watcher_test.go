package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proclet.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\nwarnings:\n  deprecation: warn\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	applied := make(chan *Manifest, 4)
	failed := make(chan error, 4)
	w, err := Watch(path,
		func(m *Manifest) { applied <- m },
		func(err error) { failed <- err },
	)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("version: \"1\"\nwarnings:\n  deprecation: trace\n"), 0o644); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	select {
	case m := <-applied:
		if m.Warnings.Deprecation != "trace" {
			t.Fatalf("reloaded deprecation = %q, want trace", m.Warnings.Deprecation)
		}
	case err := <-failed:
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherReportsBrokenSaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proclet.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	applied := make(chan *Manifest, 4)
	failed := make(chan error, 4)
	w, err := Watch(path,
		func(m *Manifest) { applied <- m },
		func(err error) { failed <- err },
	)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("version: [broken\n"), 0o644); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	select {
	case <-failed:
	case m := <-applied:
		t.Fatalf("broken manifest was applied: %+v", m)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
}
