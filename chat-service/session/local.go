package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/pkg/storage"
)

const (
	identityKey = "session/identity.json"
	messagesKey = "session/messages.json"
)

// identity is what the session remembers about its user.
type identity struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	AdminKey string `json:"adminKey,omitempty"`
}

// localState reads and writes remembered values. A nil store remembers
// nothing.
type localState struct {
	store storage.Storage
}

func (l *localState) loadIdentity(ctx context.Context) (identity, error) {
	var id identity
	err := l.read(ctx, identityKey, &id)
	return id, err
}

func (l *localState) saveIdentity(ctx context.Context, id identity) error {
	return l.write(ctx, identityKey, id)
}

func (l *localState) loadMessages(ctx context.Context) ([]domain.ChatMessage, error) {
	var msgs []domain.ChatMessage
	err := l.read(ctx, messagesKey, &msgs)
	return msgs, err
}

func (l *localState) saveMessages(ctx context.Context, msgs []domain.ChatMessage) error {
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return l.write(ctx, messagesKey, msgs)
}

func (l *localState) read(ctx context.Context, key string, v any) error {
	if l.store == nil {
		return nil
	}
	rc, err := l.store.Read(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		// A corrupt cache is dropped rather than blocking the session.
		return nil
	}
	return nil
}

func (l *localState) write(ctx context.Context, key string, v any) error {
	if l.store == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := l.store.Write(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
