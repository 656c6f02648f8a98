package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/google/uuid"
)

// Send posts a new message. It returns the server's error code early when
// the mirrored state already says the post would be refused. The message
// appears in State only once the server broadcasts it back.
func (s *Session) Send(content string) (string, error) {
	id := uuid.NewString()
	return id, s.post(domain.MsgTypeAdd, id, content)
}

// Edit replaces the content of an existing message.
func (s *Session) Edit(id, content string) error {
	return s.post(domain.MsgTypeUpdate, id, content)
}

func (s *Session) post(typ, id, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty content", domain.ErrMalformedFrame)
	}
	if err := s.checkPost(); err != nil {
		return err
	}
	s.mu.Lock()
	msg := domain.ChatMessage{
		ID:        id,
		Content:   content,
		User:      s.identity.Nickname,
		UserID:    s.identity.UserID,
		Role:      s.identity.Nickname,
		Timestamp: s.clock().UnixMilli(),
	}
	s.mu.Unlock()
	return s.write(&domain.ChatMessageWS{Type: typ, ChatMessage: msg})
}

// checkPost applies the server's gates to the mirrored state and counts
// the send against the local throttle.
func (s *Session) checkPost() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if block := s.ownBlock(now); block.Kind != domain.NotBlocked {
		return s.fail(&domain.BlockedError{Block: block})
	}
	if s.flags.Frozen {
		return s.fail(domain.ErrFrozen)
	}
	if s.flags.AdminOnly && !s.isAdmin {
		return s.fail(domain.ErrAdminOnly)
	}
	if !s.isAdmin && !s.throttle.Allow(s.identity.UserID, now) {
		until := s.throttle.TimeoutUntil(now)
		s.throttle.Reset(s.identity.UserID)
		return s.fail(&domain.BlockedError{
			Block:       domain.Block{Kind: domain.TimedOut, Until: until.UnixMilli()},
			RateLimited: true,
		})
	}
	return nil
}

func (s *Session) ownBlock(now time.Time) domain.Block {
	for _, b := range s.bans {
		if b.UserID != s.identity.UserID {
			continue
		}
		if b.Until == nil {
			return domain.Block{Kind: domain.Banned}
		}
		if *b.Until > now.UnixMilli() {
			return domain.Block{Kind: domain.TimedOut, Until: *b.Until}
		}
	}
	return domain.Block{Kind: domain.NotBlocked}
}

// fail records err as the status. Callers hold s.mu.
func (s *Session) fail(err error) error {
	code, until := domain.CodeFor(err)
	s.status, s.until = code, 0
	if until != nil {
		s.until = *until
	}
	return err
}

// Rename changes the display name and remembers it.
func (s *Session) Rename(ctx context.Context, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return fmt.Errorf("%w: empty nickname", domain.ErrMalformedFrame)
	}
	s.mu.Lock()
	s.identity.Nickname = nickname
	id := s.identity
	s.mu.Unlock()
	if err := s.local.saveIdentity(ctx, id); err != nil {
		return err
	}
	return s.write(&domain.UpdateUserMessage{Type: domain.MsgTypeUpdateUser, Nickname: nickname})
}

// Authenticate asks for elevation and remembers the key for the next Dial.
func (s *Session) Authenticate(ctx context.Context, key string) error {
	s.mu.Lock()
	s.identity.AdminKey = key
	id := s.identity
	s.mu.Unlock()
	if err := s.local.saveIdentity(ctx, id); err != nil {
		return err
	}
	return s.write(&domain.AuthenticateMessage{Type: domain.MsgTypeAuthenticate, APIKey: key, UserID: id.UserID})
}

// Logout drops elevation and forgets the remembered key.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.identity.AdminKey = ""
	id := s.identity
	s.mu.Unlock()
	if err := s.local.saveIdentity(ctx, id); err != nil {
		return err
	}
	return s.write(&domain.LogoutAdminMessage{Type: domain.MsgTypeLogoutAdmin, UserID: id.UserID, Nickname: id.Nickname})
}

func (s *Session) Freeze(frozen bool) error {
	return s.write(&domain.FreezeChatMessage{Type: domain.MsgTypeFreezeChat, IsFrozen: &frozen})
}

func (s *Session) SetAdminOnly(adminOnly bool) error {
	return s.write(&domain.AdminOnlyMessage{Type: domain.MsgTypeAdminOnly, IsAdminOnly: &adminOnly})
}

func (s *Session) ClearChat() error {
	return s.write(&domain.BaseMessage{Type: domain.MsgTypeClearChat})
}

func (s *Session) DeleteUserMessages(targetUserID string) error {
	return s.write(&domain.DeleteUserMessagesMessage{Type: domain.MsgTypeDeleteUserMessages, TargetUserID: targetUserID})
}

// Ban bans targetUserID. A zero duration bans permanently.
func (s *Session) Ban(targetUserID, nickname string, duration time.Duration) error {
	msg := &domain.BanUserMessage{Type: domain.MsgTypeBanUser, TargetUserID: targetUserID, Nickname: nickname}
	if duration > 0 {
		ms := duration.Milliseconds()
		msg.Duration = &ms
	}
	return s.write(msg)
}

func (s *Session) Unban(targetUserID string) error {
	return s.write(&domain.UnbanUserMessage{Type: domain.MsgTypeUnbanUser, TargetUserID: targetUserID})
}

func (s *Session) Announce(content string) error {
	return s.write(&domain.AnnounceMessage{Type: domain.MsgTypeAnnounce, Content: content})
}

func (s *Session) Ping() error {
	return s.write(&domain.BaseMessage{Type: domain.MsgTypePing})
}
