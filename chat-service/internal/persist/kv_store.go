package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/filmnt/chat/chat-service/internal/domain"
)

// blobKV is a byte store keyed by room and record. ok is false when the
// record was never saved.
type blobKV interface {
	get(ctx context.Context, room string, rec Record) (data []byte, ok bool, err error)
	put(ctx context.Context, room string, rec Record, data []byte) error
	close() error
}

// kvStore encodes each record as JSON on top of a blobKV.
type kvStore struct {
	kv blobKV
}

func (s *kvStore) Load(ctx context.Context, room string) (*Snapshot, error) {
	snap := &Snapshot{}
	targets := map[Record]any{
		RecordMessages: &snap.Messages,
		RecordBans:     &snap.Bans,
		RecordFlags:    &snap.Flags,
		RecordAdmins:   &snap.Admins,
	}
	for _, rec := range Records {
		data, ok, err := s.kv.get(ctx, room, rec)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", rec, err)
		}
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, targets[rec]); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec, err)
		}
	}
	return snap, nil
}

func (s *kvStore) save(ctx context.Context, room string, rec Record, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec, err)
	}
	if err := s.kv.put(ctx, room, rec, data); err != nil {
		return fmt.Errorf("save %s: %w", rec, err)
	}
	return nil
}

func (s *kvStore) SaveMessages(ctx context.Context, room string, msgs []domain.ChatMessage) error {
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return s.save(ctx, room, RecordMessages, msgs)
}

func (s *kvStore) SaveBans(ctx context.Context, room string, bans []domain.BannedUser) error {
	if bans == nil {
		bans = []domain.BannedUser{}
	}
	return s.save(ctx, room, RecordBans, bans)
}

func (s *kvStore) SaveFlags(ctx context.Context, room string, flags domain.Flags) error {
	return s.save(ctx, room, RecordFlags, flags)
}

func (s *kvStore) SaveAdmins(ctx context.Context, room string, admins []string) error {
	if admins == nil {
		admins = []string{}
	}
	return s.save(ctx, room, RecordAdmins, admins)
}

func (s *kvStore) Close() error {
	return s.kv.close()
}

// NewMemoryStore returns a process-local StateStore. State is lost on
// restart.
func NewMemoryStore() StateStore {
	return &kvStore{kv: &memoryKV{data: make(map[string][]byte)}}
}

type memoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryKV) get(_ context.Context, room string, rec Record) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[room+"/"+string(rec)]
	return data, ok, nil
}

func (m *memoryKV) put(_ context.Context, room string, rec Record, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[room+"/"+string(rec)] = data
	return nil
}

func (m *memoryKV) close() error { return nil }
