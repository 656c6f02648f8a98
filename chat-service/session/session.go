// Package session is a Go client for the chat room. It mirrors room state
// from server broadcasts, keeps the identity and message window in local
// storage, and applies the same posting rules as the server so callers get
// an early answer.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/chat-service/internal/history"
	"github.com/filmnt/chat/chat-service/internal/ratelimit"
	"github.com/filmnt/chat/pkg/log"
	"github.com/filmnt/chat/pkg/storage"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned when sending on a closed session.
var ErrClosed = errors.New("session closed")

// Config configures a Session.
type Config struct {
	URL         string
	UserID      string // generated and remembered when empty
	Nickname    string // remembered value used when empty
	AdminKey    string // remembered value used when empty
	Window      time.Duration
	MaxMessages int
	Rate        ratelimit.Config
	WriteWait   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = 100
	}
	if c.Rate.MaxMessages == 0 {
		c.Rate = ratelimit.Config{MaxMessages: 5, Window: 10 * time.Second, Timeout: time.Minute}
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	return c
}

// State is a snapshot of the mirrored room.
type State struct {
	UserID    string
	Nickname  string
	Messages  []domain.ChatMessage // newest first
	Users     []string
	Bans      []domain.BannedUser
	Frozen    bool
	AdminOnly bool
	IsAdmin   bool
	// Status is the code of the last error frame, cleared on the next
	// accepted message of ours.
	Status string
	Until  int64
}

// Session is one connection to the room.
type Session struct {
	cfg   Config
	conn  *websocket.Conn
	local *localState
	clock func() time.Time

	writeMu sync.Mutex

	mu       sync.Mutex
	identity identity
	// identityDirty is set when a frame changed the remembered identity.
	identityDirty bool

	msgs     *history.Store
	users    []string
	bans     []domain.BannedUser
	flags    domain.Flags
	isAdmin  bool
	status   string
	until    int64
	throttle *ratelimit.Limiter
	closed   bool

	updates chan struct{}
}

// Dial connects to the room, identifies and restores any remembered
// elevation. store may be nil, in which case nothing is remembered.
func Dial(ctx context.Context, cfg Config, store storage.Storage) (*Session, error) {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:      cfg,
		local:    &localState{store: store},
		clock:    time.Now,
		msgs:     history.New(),
		throttle: ratelimit.New(cfg.Rate),
		updates:  make(chan struct{}, 1),
	}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("dial %s: status %d: %w", cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	s.conn = conn

	if err := s.write(&domain.RequestSyncMessage{
		Type:     domain.MsgTypeRequestSync,
		UserID:   s.identity.UserID,
		Nickname: s.identity.Nickname,
	}); err != nil {
		conn.Close()
		return nil, err
	}
	if s.identity.AdminKey != "" {
		if err := s.write(&domain.AuthenticateMessage{Type: domain.MsgTypeAuthenticate, APIKey: s.identity.AdminKey}); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) restore(ctx context.Context) error {
	id, err := s.local.loadIdentity(ctx)
	if err != nil {
		return err
	}
	if s.cfg.UserID != "" {
		id.UserID = s.cfg.UserID
	}
	if id.UserID == "" {
		id.UserID = uuid.NewString()
	}
	if s.cfg.Nickname != "" {
		id.Nickname = s.cfg.Nickname
	}
	if id.Nickname == "" {
		return errors.New("session: nickname required")
	}
	if s.cfg.AdminKey != "" {
		id.AdminKey = s.cfg.AdminKey
	}
	s.identity = id
	if err := s.local.saveIdentity(ctx, id); err != nil {
		return err
	}

	cached, err := s.local.loadMessages(ctx)
	if err != nil {
		return err
	}
	s.msgs.Restore(cached, s.clock(), s.cfg.Window)
	return nil
}

// Run reads broadcasts until the connection ends or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if s.apply(data) {
			s.persistWindow(ctx)
		}
		s.persistIdentity(ctx)
		s.notify()
	}
}

// Updates signals after every applied frame. Signals are coalesced.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Close ends the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// State returns a copy of the mirrored room.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		UserID:    s.identity.UserID,
		Nickname:  s.identity.Nickname,
		Messages:  s.msgs.Snapshot(s.clock(), s.cfg.Window, s.cfg.MaxMessages),
		Users:     append([]string(nil), s.users...),
		Bans:      append([]domain.BannedUser(nil), s.bans...),
		Frozen:    s.flags.Frozen,
		AdminOnly: s.flags.AdminOnly,
		IsAdmin:   s.isAdmin,
		Status:    s.status,
		Until:     s.until,
	}
}

func (s *Session) write(v any) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) persistIdentity(ctx context.Context) {
	s.mu.Lock()
	dirty, id := s.identityDirty, s.identity
	s.identityDirty = false
	s.mu.Unlock()
	if !dirty {
		return
	}
	if err := s.local.saveIdentity(ctx, id); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("Failed to remember identity")
	}
}

func (s *Session) persistWindow(ctx context.Context) {
	s.mu.Lock()
	window := s.msgs.Persistable(s.clock(), s.cfg.Window, s.cfg.MaxMessages)
	s.mu.Unlock()
	if err := s.local.saveMessages(ctx, window); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("Failed to remember message window")
	}
}
