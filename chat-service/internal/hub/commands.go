package hub

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/filmnt/chat/chat-service/internal/audit"
	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/chat-service/internal/metrics"
	"github.com/filmnt/chat/chat-service/internal/moderation"
	"github.com/filmnt/chat/pkg/log"
)

const (
	systemUser = "System"
	systemRole = "system"
	// Client clocks further ahead than this are not trusted.
	maxClockSkew = time.Minute
)

type commandFunc func(h *Hub, sess *domain.Session, data []byte) error

var commands = map[string]commandFunc{
	domain.MsgTypeRequestSync:        (*Hub).handleRequestSync,
	domain.MsgTypeAdd:                (*Hub).handleChatMessage,
	domain.MsgTypeUpdate:             (*Hub).handleChatMessage,
	domain.MsgTypeAuthenticate:       (*Hub).handleAuthenticate,
	domain.MsgTypeLogoutAdmin:        (*Hub).handleLogoutAdmin,
	domain.MsgTypeFreezeChat:         (*Hub).handleFreezeChat,
	domain.MsgTypeAdminOnly:          (*Hub).handleAdminOnly,
	domain.MsgTypeClearChat:          (*Hub).handleClearChat,
	domain.MsgTypeDeleteUserMessages: (*Hub).handleDeleteUserMessages,
	domain.MsgTypeBanUser:            (*Hub).handleBanUser,
	domain.MsgTypeUnbanUser:          (*Hub).handleUnbanUser,
	domain.MsgTypeUpdateUser:         (*Hub).handleUpdateUser,
	domain.MsgTypeAnnounce:           (*Hub).handleAnnounce,
	domain.MsgTypePing:               (*Hub).handlePing,
}

func (h *Hub) handleFrame(connID string, data []byte) {
	sess, ok := h.roster.Lookup(connID)
	if !ok {
		return
	}

	var base domain.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		h.reject(sess, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err))
		return
	}
	cmd, ok := commands[base.Type]
	if !ok {
		metrics.CommandsTotal.WithLabelValues("unknown").Inc()
		h.reject(sess, fmt.Errorf("%w: unknown type %q", domain.ErrMalformedFrame, base.Type))
		return
	}
	metrics.CommandsTotal.WithLabelValues(base.Type).Inc()

	// A command can drop its own connection when the peer is slow.
	if err := cmd(h, sess, data); err != nil {
		if _, live := h.peers[connID]; live {
			h.reject(sess, err)
		}
	}
}

func (h *Hub) reject(sess *domain.Session, err error) {
	frame := domain.NewErrorFor(err)
	metrics.RejectedCommands.WithLabelValues(frame.Message).Inc()
	l := h.logger()
	l.Debug().Err(err).
		Str(log.FieldConnID, sess.ConnID).
		Str(log.FieldUserID, sess.UserID).
		Str("code", frame.Message).
		Msg("command rejected")
	h.sendJSON(sess.ConnID, frame)
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}
	return nil
}

func (h *Hub) validNickname(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty nickname", domain.ErrMalformedFrame)
	}
	if max := h.opts.Room.MaxNicknameLength; max > 0 && utf8.RuneCountInString(name) > max {
		return "", fmt.Errorf("%w: nickname too long", domain.ErrMalformedFrame)
	}
	return name, nil
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func (h *Hub) systemMessage(content string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        h.opts.NewID(),
		Content:   content,
		User:      systemUser,
		Role:      systemRole,
		Timestamp: h.now().UnixMilli(),
		IsSystem:  true,
	}
}

// sendToAuthor unicasts v to every connection bound to authorID.
func (h *Hub) sendToAuthor(authorID string, v any) {
	for _, id := range h.roster.ConnsFor(authorID) {
		h.sendJSON(id, v)
	}
}

func (h *Hub) handleRequestSync(sess *domain.Session, data []byte) error {
	var msg domain.RequestSyncMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	userID := strings.TrimSpace(msg.UserID)
	if userID == "" {
		return fmt.Errorf("%w: missing userId", domain.ErrMalformedFrame)
	}
	name, err := h.validNickname(msg.Nickname)
	if err != nil {
		return err
	}
	h.roster.Bind(sess.ConnID, userID, name)

	now := h.now()
	flags := h.mod.Flags()
	h.sendJSON(sess.ConnID, &domain.SyncMessage{
		Type:         domain.MsgTypeSync,
		Messages:     h.history.Snapshot(now, h.opts.Room.Window(), h.opts.Room.MaxMessages),
		Users:        h.roster.Names(),
		BannedUsers:  h.mod.ActiveBans(now),
		IsChatFrozen: flags.Frozen,
		IsAdminOnly:  flags.AdminOnly,
	})
	if h.mod.IsAdmin(userID) {
		h.sendJSON(sess.ConnID, &domain.SetAdminMessage{Type: domain.MsgTypeSetAdmin, Payload: true})
	}
	if greeting := h.opts.Room.Greeting; greeting != "" {
		h.sendJSON(sess.ConnID, &domain.ChatMessageOut{Type: domain.MsgTypeAdd, ChatMessage: h.systemMessage(greeting)})
	}

	l := h.logger()
	l.Info().Str(log.FieldConnID, sess.ConnID).Str(log.FieldUserID, userID).Msg("client identified")
	h.broadcastUsers()
	return nil
}

// handleChatMessage serves add and update. Gates run in order: identity,
// ban, room flags, then the send throttle. Only coordinator system messages
// pass a frozen room.
func (h *Hub) handleChatMessage(sess *domain.Session, data []byte) error {
	var msg domain.ChatMessageWS
	if err := decode(data, &msg); err != nil {
		return err
	}
	if !sess.IsIdentified() {
		return domain.ErrNotIdentified
	}
	now := h.now()
	if block := h.mod.Blocked(sess.UserID, now); block.Kind != domain.NotBlocked {
		return &domain.BlockedError{Block: block}
	}
	isAdmin := h.mod.IsAdmin(sess.UserID)
	flags := h.mod.Flags()
	if flags.Frozen {
		return domain.ErrFrozen
	}
	if flags.AdminOnly && !isAdmin {
		return domain.ErrAdminOnly
	}
	if strings.TrimSpace(msg.ID) == "" {
		return fmt.Errorf("%w: missing id", domain.ErrMalformedFrame)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("%w: empty content", domain.ErrMalformedFrame)
	}
	if !isAdmin && !h.limiter.Allow(sess.UserID, now) {
		return h.throttle(sess, now)
	}

	role := sess.DisplayName
	if isAdmin {
		role = h.opts.Room.AdminRole
	}
	ts := msg.Timestamp
	if ts <= 0 || ts > now.Add(maxClockSkew).UnixMilli() {
		ts = now.UnixMilli()
	}
	stored := h.history.AppendOrReplace(domain.ChatMessage{
		ID:        msg.ID,
		Content:   truncate(msg.Content, h.opts.Room.MaxMessageLength),
		User:      sess.DisplayName,
		UserID:    sess.UserID,
		Role:      role,
		Timestamp: ts,
	})
	h.history.Trim(h.opts.Room.MaxMessages)

	out := &domain.ChatMessageOut{Type: msg.Type, ChatMessage: stored}
	h.broadcast(out)
	h.saveMessages()
	h.export(msg.Type, sess.UserID, stored)
	return nil
}

// throttle times out an author who exceeded the send budget.
func (h *Hub) throttle(sess *domain.Session, now time.Time) error {
	until := h.limiter.TimeoutUntil(now)
	h.mod.Impose(sess.UserID, sess.DisplayName, until)
	h.limiter.Reset(sess.UserID)
	metrics.RateLimitHits.Inc()
	audit.LogTarget(h.ctx, audit.ActionRateLimited, sess.UserID, sess.UserID, until.UTC().Format(time.RFC3339), "Author timed out by send throttle")

	h.saveBans()
	h.broadcastBans()
	return &domain.BlockedError{
		Block:       domain.Block{Kind: domain.TimedOut, Until: until.UnixMilli()},
		RateLimited: true,
	}
}

func (h *Hub) handleAuthenticate(sess *domain.Session, data []byte) error {
	var msg domain.AuthenticateMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	userID := sess.UserID
	if userID == "" {
		userID = strings.TrimSpace(msg.UserID)
	}
	if err := h.mod.Authenticate(userID, msg.APIKey); err != nil {
		if userID != "" {
			audit.Log(h.ctx, audit.ActionAuthenticateFailed, userID, "Admin authentication failed")
		}
		return err
	}
	h.saveAdmins()
	audit.Log(h.ctx, audit.ActionAuthenticate, userID, "Admin authenticated")

	elevated := &domain.SetAdminMessage{Type: domain.MsgTypeSetAdmin, Payload: true}
	h.sendJSON(sess.ConnID, elevated)
	for _, id := range h.roster.ConnsFor(userID) {
		if id != sess.ConnID {
			h.sendJSON(id, elevated)
		}
	}
	return nil
}

func (h *Hub) handleLogoutAdmin(sess *domain.Session, data []byte) error {
	var msg domain.LogoutAdminMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	if err := h.mod.Logout(sess.UserID); err != nil {
		return err
	}
	h.saveAdmins()
	audit.Log(h.ctx, audit.ActionLogout, sess.UserID, "Admin logged out")

	if name, err := h.validNickname(msg.Nickname); err == nil {
		for _, id := range h.roster.ConnsFor(sess.UserID) {
			h.roster.Rename(id, name)
		}
	}
	h.sendToAuthor(sess.UserID, &domain.SetAdminMessage{Type: domain.MsgTypeSetAdmin, Payload: false})
	h.broadcastUsers()
	return nil
}

func (h *Hub) handleFreezeChat(sess *domain.Session, data []byte) error {
	var msg domain.FreezeChatMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	if msg.IsFrozen == nil {
		if !h.mod.IsAdmin(sess.UserID) {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("%w: missing isFrozen", domain.ErrMalformedFrame)
	}
	if err := h.mod.SetFrozen(sess.UserID, *msg.IsFrozen); err != nil {
		return err
	}
	h.saveFlags()
	audit.LogTarget(h.ctx, audit.ActionFreeze, sess.UserID, h.opts.Room.Name, fmt.Sprint(*msg.IsFrozen), "Chat freeze changed")

	h.broadcast(&domain.ChatFrozenMessage{Type: domain.MsgTypeChatFrozen, IsFrozen: *msg.IsFrozen})
	h.export(domain.MsgTypeChatFrozen, sess.UserID, h.mod.Flags())
	return nil
}

func (h *Hub) handleAdminOnly(sess *domain.Session, data []byte) error {
	var msg domain.AdminOnlyMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	if msg.IsAdminOnly == nil {
		if !h.mod.IsAdmin(sess.UserID) {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("%w: missing isAdminOnly", domain.ErrMalformedFrame)
	}
	if err := h.mod.SetAdminOnly(sess.UserID, *msg.IsAdminOnly); err != nil {
		return err
	}
	h.saveFlags()
	audit.LogTarget(h.ctx, audit.ActionAdminOnly, sess.UserID, h.opts.Room.Name, fmt.Sprint(*msg.IsAdminOnly), "Admin-only mode changed")

	h.broadcast(&domain.AdminOnlyStateMessage{Type: domain.MsgTypeAdminOnly, IsAdminOnly: *msg.IsAdminOnly})
	h.export(domain.MsgTypeAdminOnly, sess.UserID, h.mod.Flags())
	return nil
}

func (h *Hub) handleClearChat(sess *domain.Session, _ []byte) error {
	if !h.mod.IsAdmin(sess.UserID) {
		return domain.ErrUnauthorized
	}
	h.history.Clear()
	h.saveMessages()
	audit.Log(h.ctx, audit.ActionClear, sess.UserID, "Chat cleared")

	h.broadcast(&domain.ClearChatNotice{Type: domain.MsgTypeClearChat})
	h.export(domain.MsgTypeClearChat, sess.UserID, struct{}{})
	return nil
}

func (h *Hub) handleDeleteUserMessages(sess *domain.Session, data []byte) error {
	var msg domain.DeleteUserMessagesMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	if !h.mod.IsAdmin(sess.UserID) {
		return domain.ErrUnauthorized
	}
	if msg.TargetUserID == "" {
		return fmt.Errorf("%w: missing targetUserId", domain.ErrMalformedFrame)
	}
	n := h.history.DeleteByAuthor(msg.TargetUserID)
	h.saveMessages()
	audit.LogTarget(h.ctx, audit.ActionDeleteMessages, sess.UserID, msg.TargetUserID, fmt.Sprintf("%d messages", n), "Author messages deleted")

	notice := &domain.DeleteUserMessagesNotice{Type: domain.MsgTypeDeleteUserMessages, UserID: msg.TargetUserID}
	h.broadcast(notice)
	h.export(domain.MsgTypeDeleteUserMessages, sess.UserID, notice)
	return nil
}

func (h *Hub) handleBanUser(sess *domain.Session, data []byte) error {
	var msg domain.BanUserMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	var duration time.Duration
	if msg.Duration != nil {
		ms := *msg.Duration
		if ms > moderation.MaxBanDuration.Milliseconds() {
			return fmt.Errorf("%w: duration out of range", domain.ErrMalformedFrame)
		}
		duration = time.Duration(ms) * time.Millisecond
	}
	now := h.now()
	entry, err := h.mod.Ban(sess.UserID, msg.TargetUserID, strings.TrimSpace(msg.Nickname), duration, now)
	if err != nil {
		return err
	}
	h.saveBans()
	detail := "permanent"
	if at, ok := entry.Expiry.At(); ok {
		detail = time.UnixMilli(at).UTC().Format(time.RFC3339)
	}
	audit.LogTarget(h.ctx, audit.ActionBan, sess.UserID, msg.TargetUserID, detail, "Author banned")

	h.broadcastBans()
	h.sendToAuthor(msg.TargetUserID, domain.NewErrorFor(&domain.BlockedError{Block: h.mod.Blocked(msg.TargetUserID, now)}))
	h.export(domain.MsgTypeBanUser, sess.UserID, entry.ToBannedUser(msg.TargetUserID))
	return nil
}

func (h *Hub) handleUnbanUser(sess *domain.Session, data []byte) error {
	var msg domain.UnbanUserMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	if err := h.mod.Unban(sess.UserID, msg.TargetUserID); err != nil {
		return err
	}
	h.saveBans()
	audit.LogTarget(h.ctx, audit.ActionUnban, sess.UserID, msg.TargetUserID, "", "Author unbanned")

	h.broadcastBans()
	h.export(domain.MsgTypeUnbanUser, sess.UserID, msg.TargetUserID)
	return nil
}

func (h *Hub) handleUpdateUser(sess *domain.Session, data []byte) error {
	var msg domain.UpdateUserMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	if !sess.IsIdentified() {
		return domain.ErrNotIdentified
	}
	name, err := h.validNickname(msg.Nickname)
	if err != nil {
		return err
	}
	h.roster.Rename(sess.ConnID, name)
	h.broadcastUsers()
	return nil
}

func (h *Hub) handleAnnounce(sess *domain.Session, data []byte) error {
	var msg domain.AnnounceMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	if !h.mod.IsAdmin(sess.UserID) {
		return domain.ErrUnauthorized
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return fmt.Errorf("%w: empty announcement", domain.ErrMalformedFrame)
	}
	audit.Log(h.ctx, audit.ActionAnnounce, sess.UserID, "Announcement sent")
	h.announce(content)
	return nil
}

func (h *Hub) handlePing(sess *domain.Session, _ []byte) error {
	h.sendJSON(sess.ConnID, &domain.PongMessage{Type: domain.MsgTypePong})
	return nil
}

// announce broadcasts a system message without storing it.
func (h *Hub) announce(content string) {
	msg := h.systemMessage(truncate(content, h.opts.Room.MaxMessageLength))
	h.broadcast(&domain.ChatMessageOut{Type: domain.MsgTypeAdd, ChatMessage: msg})
	h.export(domain.MsgTypeAnnounce, "", msg)
}
