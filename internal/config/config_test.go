package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/splitlab/splitlab/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("addr: \":9090\"\ndatabase:\n  driver: memory\nlog:\n  format: json\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("addr = %q, want :9090", cfg.Addr)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Database.Path != "./splitlab.db" {
		t.Errorf("unset keys must keep defaults, path = %q", cfg.Database.Path)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("format = %q, want json", cfg.Log.Format)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":9090\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("SPLITLAB_ADDR", ":7070")
	t.Setenv("SPLITLAB_DB_DRIVER", "memory")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Addr != ":7070" {
		t.Errorf("env must win over file, addr = %q", cfg.Addr)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %q, want memory", cfg.Database.Driver)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\t not yaml ["), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestOpenStore(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "memory"
	s, err := cfg.OpenStore()
	if err != nil {
		t.Fatalf("failed to open memory store: %v", err)
	}
	s.Close()

	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	s, err = cfg.OpenStore()
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	s.Close()

	cfg.Database.Driver = "postgres"
	if _, err := cfg.OpenStore(); err == nil {
		t.Error("expected error for unknown driver")
	}
}
