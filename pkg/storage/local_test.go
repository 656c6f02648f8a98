package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Read(ctx, "rooms/main/flags.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Write(ctx, "rooms/main/flags.json", strings.NewReader(`{"frozen":true}`), -1, "application/json"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Exists(ctx, "rooms/main/flags.json")
	if err != nil || !ok {
		t.Fatalf("expected object to exist, ok=%v err=%v", ok, err)
	}
	rc, err := s.Read(ctx, "rooms/main/flags.json")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != `{"frozen":true}` {
		t.Fatalf("unexpected content %q", data)
	}

	if err := s.Delete(ctx, "rooms/main/flags.json"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "rooms/main/flags.json"); err != nil {
		t.Fatalf("deleting a missing key must succeed: %v", err)
	}
}

func TestLocalStorageStaysInBase(t *testing.T) {
	base := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{BasePath: filepath.Join(base, "inner")})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(context.Background(), "../escape.json", strings.NewReader("x"), 1, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(base, "escape.json")); !os.IsNotExist(err) {
		t.Fatal("key escaped the base directory")
	}
	if _, err := os.Stat(filepath.Join(s.BasePath(), "escape.json")); err != nil {
		t.Fatalf("expected file inside base: %v", err)
	}
}
