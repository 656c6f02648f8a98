package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/pkg/database"
	"github.com/filmnt/chat/pkg/storage"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, store StateStore) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx, "main")
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(empty.Messages) != 0 || len(empty.Bans) != 0 || empty.Flags.Frozen || len(empty.Admins) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", empty)
	}

	until := int64(1_700_000_060_000)
	msgs := []domain.ChatMessage{
		{ID: "m2", Content: "second", User: "bob", UserID: "u2", Role: "bob", Timestamp: 2},
		{ID: "m1", Content: "first", User: "alice", UserID: "u1", Role: "alice", Timestamp: 1},
	}
	bans := []domain.BannedUser{
		{UserID: "u3", Nickname: "carol", Until: &until},
		{UserID: "u4", Nickname: "dave"},
	}
	if err := store.SaveMessages(ctx, "main", msgs); err != nil {
		t.Fatalf("save messages: %v", err)
	}
	if err := store.SaveBans(ctx, "main", bans); err != nil {
		t.Fatalf("save bans: %v", err)
	}
	if err := store.SaveFlags(ctx, "main", domain.Flags{Frozen: true}); err != nil {
		t.Fatalf("save flags: %v", err)
	}
	if err := store.SaveAdmins(ctx, "main", []string{"u1"}); err != nil {
		t.Fatalf("save admins: %v", err)
	}
	// Saving flags after admins must not drop the admin set.
	if err := store.SaveFlags(ctx, "main", domain.Flags{Frozen: true, AdminOnly: true}); err != nil {
		t.Fatalf("save flags: %v", err)
	}

	snap, err := store.Load(ctx, "main")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Messages) != 2 || snap.Messages[0].ID != "m2" || snap.Messages[1].Content != "first" {
		t.Fatalf("unexpected messages %+v", snap.Messages)
	}
	if len(snap.Bans) != 2 || snap.Bans[0].Until == nil || *snap.Bans[0].Until != until || snap.Bans[1].Until != nil {
		t.Fatalf("unexpected bans %+v", snap.Bans)
	}
	if !snap.Flags.Frozen || !snap.Flags.AdminOnly {
		t.Fatalf("unexpected flags %+v", snap.Flags)
	}
	if len(snap.Admins) != 1 || snap.Admins[0] != "u1" {
		t.Fatalf("unexpected admins %v", snap.Admins)
	}

	if err := store.SaveMessages(ctx, "main", nil); err != nil {
		t.Fatalf("clear messages: %v", err)
	}
	other, err := store.Load(ctx, "other")
	if err != nil {
		t.Fatal(err)
	}
	if len(other.Messages) != 0 {
		t.Fatal("rooms must not share state")
	}
	snap, err = store.Load(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Messages) != 0 {
		t.Fatalf("expected cleared messages, got %+v", snap.Messages)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := newRedisStore(client, "test")
	defer store.Close()

	exerciseStore(t, store)
	if !mr.Exists("test:room:main:flags") {
		t.Fatal("expected flags key in redis")
	}
}

func TestBlobStoreLocal(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: dir})
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, NewBlobStore(local))

	ok, err := local.Exists(context.Background(), "rooms/main/bans.json")
	if err != nil || !ok {
		t.Fatalf("expected bans object on disk, ok=%v err=%v", ok, err)
	}
}

func TestGormStoreSQLite(t *testing.T) {
	store, err := NewGormStore(&database.Config{
		Driver:   "sqlite",
		FilePath: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), Config{Driver: "etcd"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
