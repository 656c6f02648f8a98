package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Room.Name != "main" || cfg.Room.MaxMessages != 100 || cfg.Room.MaxMessageLength != 500 {
		t.Fatalf("unexpected room defaults %+v", cfg.Room)
	}
	if cfg.Room.Window() != 24*time.Hour {
		t.Fatalf("unexpected window %v", cfg.Room.Window())
	}
	if cfg.Rate.MaxMessages != 5 || cfg.Rate.Window != 10*time.Second || cfg.Rate.Timeout != time.Minute {
		t.Fatalf("unexpected rate defaults %+v", cfg.Rate)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("unexpected storage driver %q", cfg.Storage.Driver)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	yaml := []byte("room:\n  max_messages: 50\n  sweep_interval: 30s\nstorage:\n  driver: redis\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ADMIN_SECRET", "hunter2")
	t.Setenv("PORT", "9999")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Room.MaxMessages != 50 || cfg.Room.SweepInterval != 30*time.Second {
		t.Fatalf("file values not applied: %+v", cfg.Room)
	}
	if cfg.Storage.Driver != "redis" {
		t.Fatalf("unexpected driver %q", cfg.Storage.Driver)
	}
	if cfg.Admin.Secret != "hunter2" || cfg.Server.Port != 9999 {
		t.Fatalf("env not applied: secret=%q port=%d", cfg.Admin.Secret, cfg.Server.Port)
	}
	if p := cfg.Persist(); p.Driver != "redis" || p.Redis.KeyPrefix != "chat" {
		t.Fatalf("unexpected persist config %+v", p)
	}
}
