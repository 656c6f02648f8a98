package domain

// ChatMessage is one entry in the room log.
type ChatMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	User      string `json:"user"`
	UserID    string `json:"userId,omitempty"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`
	IsSystem  bool   `json:"isSystem"`
}

// Expiry is when a ban ends: either never, or at a fixed epoch-millis
// instant. The zero value is an expiry at the epoch, which is always past.
type Expiry struct {
	permanent bool
	at        int64
}

// Permanent returns an expiry that never passes.
func Permanent() Expiry {
	return Expiry{permanent: true}
}

// ExpiresAt returns an expiry at the given epoch-millis instant.
func ExpiresAt(ms int64) Expiry {
	return Expiry{at: ms}
}

// IsPermanent reports whether the expiry never passes.
func (e Expiry) IsPermanent() bool {
	return e.permanent
}

// At returns the expiry instant. ok is false for a permanent expiry.
func (e Expiry) At() (ms int64, ok bool) {
	if e.permanent {
		return 0, false
	}
	return e.at, true
}

// Passed reports whether the expiry is at or before now.
func (e Expiry) Passed(now int64) bool {
	return !e.permanent && e.at <= now
}

// BanEntry is one row of the ban table, keyed by author id.
type BanEntry struct {
	DisplayName string
	Expiry      Expiry
}

// BannedUser is the wire and storage shape of a ban entry. Until is absent
// for a permanent ban.
type BannedUser struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Until    *int64 `json:"until,omitempty"`
}

// ToBannedUser converts a ban entry to its wire shape.
func (b BanEntry) ToBannedUser(userID string) BannedUser {
	out := BannedUser{UserID: userID, Nickname: b.DisplayName}
	if at, ok := b.Expiry.At(); ok {
		out.Until = &at
	}
	return out
}

// ToBanEntry converts the wire shape back to a ban entry.
func (u BannedUser) ToBanEntry() BanEntry {
	if u.Until == nil {
		return BanEntry{DisplayName: u.Nickname, Expiry: Permanent()}
	}
	return BanEntry{DisplayName: u.Nickname, Expiry: ExpiresAt(*u.Until)}
}

// BlockKind classifies whether an author may post.
type BlockKind int

const (
	NotBlocked BlockKind = iota
	TimedOut
	Banned
)

// Block is the derived ban status of an author at an instant.
type Block struct {
	Kind  BlockKind
	Until int64 // set for TimedOut
}

// Flags are the room-wide moderation switches.
type Flags struct {
	Frozen    bool `json:"frozen"`
	AdminOnly bool `json:"adminOnly"`
}
