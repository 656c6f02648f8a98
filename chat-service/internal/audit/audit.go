package audit

import (
	"context"

	"github.com/filmnt/chat/pkg/log"
)

// Audit actions for room moderation.
const (
	ActionAuthenticate       = "chat.authenticate"
	ActionAuthenticateFailed = "chat.authenticate_failed"
	ActionLogout             = "chat.logout_admin"
	ActionBan                = "chat.ban_user"
	ActionUnban              = "chat.unban_user"
	ActionRateLimited        = "chat.rate_limited"
	ActionFreeze             = "chat.freeze"
	ActionAdminOnly          = "chat.admin_only"
	ActionClear              = "chat.clear"
	ActionDeleteMessages     = "chat.delete_user_messages"
	ActionAnnounce           = "chat.announce"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogTarget emits an audit entry for an action taken on another author.
func LogTarget(ctx context.Context, action string, userID string, targetID string, detail string, msg string) {
	l := log.Ctx(ctx)
	e := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID)
	if detail != "" {
		e = e.Str(FieldDetail, detail)
	}
	e.Msg(msg)
}
