package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", s.Server.Port)
	}
	if s.Tasks.Timeout != 300*time.Second {
		t.Errorf("timeout = %v, want 300s", s.Tasks.Timeout)
	}
	if s.Tasks.Capacity != 10 {
		t.Errorf("capacity = %d, want 10", s.Tasks.Capacity)
	}
	if s.Clef.SourceClef != "alto" || s.Clef.TargetClef != "treble" {
		t.Errorf("clefs = %s -> %s", s.Clef.SourceClef, s.Clef.TargetClef)
	}
	if s.Storage.Driver != "memory" {
		t.Errorf("storage driver = %s, want memory", s.Storage.Driver)
	}
	if s.Upload.MaxBytes() != 100<<20 {
		t.Errorf("upload cap = %d, want 100 MB", s.Upload.MaxBytes())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clefshift.yaml")
	yaml := `
server:
  port: 9000
tasks:
  capacity: 3
  timeout: 30s
storage:
  driver: sqlite
  path: /var/lib/clefshift/tasks.db
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", s.Server.Port)
	}
	if s.Tasks.Capacity != 3 || s.Tasks.Timeout != 30*time.Second {
		t.Errorf("tasks = %+v", s.Tasks)
	}
	if s.Storage.Driver != "sqlite" {
		t.Errorf("driver = %s", s.Storage.Driver)
	}
	// Untouched keys keep their defaults.
	if s.Tasks.Workers != 4 {
		t.Errorf("workers = %d, want default 4", s.Tasks.Workers)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CLEFSHIFT_SERVER_PORT", "7777")
	t.Setenv("CLEFSHIFT_TASKS_CAPACITY", "2")

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Server.Port != 7777 {
		t.Errorf("port = %d, want 7777", s.Server.Port)
	}
	if s.Tasks.Capacity != 2 {
		t.Errorf("capacity = %d, want 2", s.Tasks.Capacity)
	}
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"bad capacity", "tasks:\n  capacity: 0\n"},
		{"bad driver", "storage:\n  driver: redis\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "clefshift.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestAddr(t *testing.T) {
	s := ServerSettings{Host: "127.0.0.1", Port: 8000}
	if got := s.Addr(); got != "127.0.0.1:8000" {
		t.Errorf("Addr() = %q", got)
	}
}
