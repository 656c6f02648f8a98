package session

import (
	"encoding/json"

	"github.com/filmnt/chat/chat-service/internal/domain"
)

// inbound is the union of every server frame.
type inbound struct {
	Type         string               `json:"type"`
	Messages     []domain.ChatMessage `json:"messages"`
	Users        []string             `json:"users"`
	BannedUsers  []domain.BannedUser  `json:"bannedUsers"`
	IsChatFrozen bool                 `json:"isChatFrozen"`
	IsFrozen     bool                 `json:"isFrozen"`
	IsAdminOnly  bool                 `json:"isAdminOnly"`
	UserID       string               `json:"userId"`
	Message      string               `json:"message"`
	Until        *int64               `json:"until"`
	Payload      bool                 `json:"payload"`
	domain.ChatMessage
}

// apply folds one server frame into the mirror. It reports whether the
// message window changed.
func (s *Session) apply(data []byte) bool {
	var f inbound
	if err := json.Unmarshal(data, &f); err != nil {
		return false
	}
	// The embedded message shares userId with deleteUserMessages.
	f.ChatMessage.UserID = f.UserID

	s.mu.Lock()
	defer s.mu.Unlock()

	switch f.Type {
	case domain.MsgTypeSync:
		s.msgs.Restore(f.Messages, s.clock(), s.cfg.Window)
		s.msgs.Trim(s.cfg.MaxMessages)
		s.users = f.Users
		s.bans = f.BannedUsers
		s.flags = domain.Flags{Frozen: f.IsChatFrozen, AdminOnly: f.IsAdminOnly}
		return true

	case domain.MsgTypeAdd, domain.MsgTypeUpdate:
		if f.ID == "" {
			return false
		}
		if f.UserID == s.identity.UserID && !f.IsSystem {
			s.status, s.until = "", 0
		}
		msg := s.msgs.AppendOrReplace(f.ChatMessage)
		s.msgs.Trim(s.cfg.MaxMessages)
		return !msg.IsSystem

	case domain.MsgTypeUsers:
		s.users = f.Users

	case domain.MsgTypeBannedUsers:
		s.bans = f.BannedUsers

	case domain.MsgTypeChatFrozen:
		s.flags.Frozen = f.IsFrozen

	case domain.MsgTypeAdminOnly:
		s.flags.AdminOnly = f.IsAdminOnly

	case domain.MsgTypeClearChat:
		s.msgs.Clear()
		return true

	case domain.MsgTypeDeleteUserMessages:
		s.msgs.DeleteByAuthor(f.UserID)
		return true

	case domain.MsgTypeSetAdmin:
		s.isAdmin = f.Payload

	case domain.MsgTypeError:
		if f.Message == domain.CodeInvalidAPIKey {
			s.identity.AdminKey = ""
			s.identityDirty = true
		}
		s.status = f.Message
		s.until = 0
		if f.Until != nil {
			s.until = *f.Until
		}
	}
	return false
}
