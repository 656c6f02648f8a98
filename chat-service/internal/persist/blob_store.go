package persist

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"

	"github.com/filmnt/chat/pkg/storage"
)

// storageKV keeps each record as a JSON object at rooms/{room}/{record}.json.
type storageKV struct {
	store storage.Storage
}

// NewBlobStore creates a state store on top of a blob storage backend,
// local disk or S3.
func NewBlobStore(store storage.Storage) StateStore {
	return &kvStore{kv: &storageKV{store: store}}
}

func objectKey(room string, rec Record) string {
	return path.Join("rooms", room, string(rec)+".json")
}

func (s *storageKV) get(ctx context.Context, room string, rec Record) ([]byte, bool, error) {
	rc, err := s.store.Read(ctx, objectKey(room, rec))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *storageKV) put(ctx context.Context, room string, rec Record, data []byte) error {
	return s.store.Write(ctx, objectKey(room, rec), bytes.NewReader(data), int64(len(data)), "application/json")
}

func (s *storageKV) close() error { return nil }
