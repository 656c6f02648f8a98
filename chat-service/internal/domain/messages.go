package domain

// WebSocket message types from client.
const (
	MsgTypeRequestSync        = "requestSync"
	MsgTypeAdd                = "add"
	MsgTypeUpdate             = "update"
	MsgTypeAuthenticate       = "authenticate"
	MsgTypeLogoutAdmin        = "logoutAdmin"
	MsgTypeFreezeChat         = "freezeChat"
	MsgTypeAdminOnly          = "adminOnly"
	MsgTypeClearChat          = "clearChat"
	MsgTypeDeleteUserMessages = "deleteUserMessages"
	MsgTypeBanUser            = "banUser"
	MsgTypeUnbanUser          = "unbanUser"
	MsgTypeUpdateUser         = "updateUser"
	MsgTypeAnnounce           = "announce"
	MsgTypePing               = "ping"
)

// WebSocket message types to client. add, update, adminOnly, clearChat and
// deleteUserMessages are shared with the inbound set.
const (
	MsgTypeSync        = "sync"
	MsgTypeUsers       = "users"
	MsgTypeBannedUsers = "bannedUsers"
	MsgTypeChatFrozen  = "chatFrozen"
	MsgTypeSetAdmin    = "SET_ADMIN"
	MsgTypeError       = "error"
	MsgTypePong        = "pong"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type RequestSyncMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

// ChatMessageWS carries add and update. Identity fields are accepted for
// compatibility but the server overwrites them from the connection.
type ChatMessageWS struct {
	Type string `json:"type"`
	ChatMessage
}

type AuthenticateMessage struct {
	Type   string `json:"type"`
	APIKey string `json:"apiKey"`
	UserID string `json:"userId,omitempty"`
}

type LogoutAdminMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"userId,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

type FreezeChatMessage struct {
	Type     string `json:"type"`
	IsFrozen *bool  `json:"isFrozen"`
}

type AdminOnlyMessage struct {
	Type        string `json:"type"`
	IsAdminOnly *bool  `json:"isAdminOnly"`
}

type DeleteUserMessagesMessage struct {
	Type         string `json:"type"`
	TargetUserID string `json:"targetUserId"`
}

// BanUserMessage bans TargetUserID. Duration is in milliseconds; absent or
// zero means permanent.
type BanUserMessage struct {
	Type         string `json:"type"`
	TargetUserID string `json:"targetUserId"`
	Nickname     string `json:"nickname"`
	Duration     *int64 `json:"duration,omitempty"`
}

type UnbanUserMessage struct {
	Type         string `json:"type"`
	TargetUserID string `json:"targetUserId"`
}

type UpdateUserMessage struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname"`
}

type AnnounceMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Server -> Client messages

type SyncMessage struct {
	Type         string        `json:"type"`
	Messages     []ChatMessage `json:"messages"`
	Users        []string      `json:"users"`
	BannedUsers  []BannedUser  `json:"bannedUsers"`
	IsChatFrozen bool          `json:"isChatFrozen"`
	IsAdminOnly  bool          `json:"isAdminOnly"`
}

type UsersMessage struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

type BannedUsersMessage struct {
	Type        string       `json:"type"`
	BannedUsers []BannedUser `json:"bannedUsers"`
}

type ChatFrozenMessage struct {
	Type     string `json:"type"`
	IsFrozen bool   `json:"isFrozen"`
}

type AdminOnlyStateMessage struct {
	Type        string `json:"type"`
	IsAdminOnly bool   `json:"isAdminOnly"`
}

type ClearChatNotice struct {
	Type string `json:"type"`
}

type DeleteUserMessagesNotice struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type SetAdminMessage struct {
	Type    string `json:"type"`
	Payload bool   `json:"payload"`
}

type ChatMessageOut struct {
	Type string `json:"type"`
	ChatMessage
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Until   *int64 `json:"until,omitempty"`
}

func NewErrorMessage(code string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Message: code,
	}
}
