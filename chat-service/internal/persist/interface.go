// Package persist saves and loads the durable state of a room: its
// message window, ban table, flags and admin set. Each record is stored
// and loaded independently.
package persist

import (
	"context"

	"github.com/filmnt/chat/chat-service/internal/domain"
)

// Record names one independently stored part of the room state.
type Record string

const (
	RecordMessages Record = "messages"
	RecordBans     Record = "bans"
	RecordFlags    Record = "flags"
	RecordAdmins   Record = "admins"
)

// Records lists every record in save order.
var Records = []Record{RecordMessages, RecordBans, RecordFlags, RecordAdmins}

// Snapshot is the loaded state of a room. Missing records are left zero.
type Snapshot struct {
	Messages []domain.ChatMessage
	Bans     []domain.BannedUser
	Flags    domain.Flags
	Admins   []string
}

// StateStore is the durable backing of room state.
type StateStore interface {
	Load(ctx context.Context, room string) (*Snapshot, error)
	SaveMessages(ctx context.Context, room string, msgs []domain.ChatMessage) error
	SaveBans(ctx context.Context, room string, bans []domain.BannedUser) error
	SaveFlags(ctx context.Context, room string, flags domain.Flags) error
	SaveAdmins(ctx context.Context, room string, admins []string) error
	Close() error
}

// Saver accepts state records to be written. Writer implements it
// asynchronously.
type Saver interface {
	SaveMessages(msgs []domain.ChatMessage)
	SaveBans(bans []domain.BannedUser)
	SaveFlags(flags domain.Flags)
	SaveAdmins(admins []string)
}
