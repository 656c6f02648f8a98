package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/filmnt/chat/chat-service/internal/domain"
)

func TestWriterFlushesLatestOnShutdown(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, "main", WriterConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	w.SaveFlags(domain.Flags{Frozen: true})
	w.SaveFlags(domain.Flags{Frozen: false, AdminOnly: true})
	w.SaveAdmins([]string{"u1"})
	w.SaveMessages([]domain.ChatMessage{{ID: "m1", Content: "hi", Timestamp: 1}})
	cancel()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not stop")
	}

	snap, err := store.Load(context.Background(), "main")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Flags.Frozen || !snap.Flags.AdminOnly {
		t.Fatalf("expected latest flags, got %+v", snap.Flags)
	}
	if len(snap.Admins) != 1 || len(snap.Messages) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

type flakyStore struct {
	StateStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) SaveBans(ctx context.Context, room string, bans []domain.BannedUser) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("unavailable")
	}
	return f.StateStore.SaveBans(ctx, room, bans)
}

func TestWriterRetries(t *testing.T) {
	store := &flakyStore{StateStore: NewMemoryStore(), failures: 2}
	w := NewWriter(store, "main", WriterConfig{MaxAttempts: 3, RetryBackoff: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	w.SaveBans([]domain.BannedUser{{UserID: "u1", Nickname: "bob"}})

	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err := store.Load(context.Background(), "main")
		if err != nil {
			t.Fatal(err)
		}
		if len(snap.Bans) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bans were never saved")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-w.Done()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
}
