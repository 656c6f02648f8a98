// Package moderation holds the room roster, ban table, room flags and the
// set of elevated authors. Like history, it is owned by the hub goroutine.
package moderation

import (
	"crypto/subtle"
	"sort"
	"time"

	"github.com/filmnt/chat/chat-service/internal/domain"
)

// MaxBanDuration is the longest timed ban. Longer requests are refused;
// a permanent ban has no duration at all.
const MaxBanDuration = 100 * 365 * 24 * time.Hour

// State is the moderation state of the room.
type State struct {
	secret string
	bans   map[string]domain.BanEntry
	admins map[string]struct{}
	flags  domain.Flags
}

// NewState creates an empty state checked against the given admin secret.
// An empty secret disables elevation.
func NewState(secret string) *State {
	return &State{
		secret: secret,
		bans:   make(map[string]domain.BanEntry),
		admins: make(map[string]struct{}),
	}
}

func (s *State) IsAdmin(authorID string) bool {
	_, ok := s.admins[authorID]
	return ok
}

// Ban records a ban on target, replacing any earlier entry. duration zero
// means permanent. Only admins may ban, except that any author may time
// themselves out for a positive duration.
func (s *State) Ban(actor, target, name string, duration time.Duration, now time.Time) (domain.BanEntry, error) {
	if target == "" || duration < 0 || duration > MaxBanDuration {
		return domain.BanEntry{}, domain.ErrMalformedFrame
	}
	selfTimeout := actor == target && duration > 0
	if !s.IsAdmin(actor) && !selfTimeout {
		return domain.BanEntry{}, domain.ErrUnauthorized
	}
	entry := domain.BanEntry{DisplayName: name, Expiry: domain.Permanent()}
	if duration > 0 {
		entry.Expiry = domain.ExpiresAt(now.Add(duration).UnixMilli())
	}
	s.bans[target] = entry
	return entry, nil
}

// Impose records a timeout without an actor check. The hub uses it when the
// send throttle trips.
func (s *State) Impose(target, name string, until time.Time) domain.BanEntry {
	entry := domain.BanEntry{DisplayName: name, Expiry: domain.ExpiresAt(until.UnixMilli())}
	s.bans[target] = entry
	return entry
}

// Unban removes any ban on target. Unbanning an author with no entry
// succeeds.
func (s *State) Unban(actor, target string) error {
	if !s.IsAdmin(actor) {
		return domain.ErrUnauthorized
	}
	if target == "" {
		return domain.ErrMalformedFrame
	}
	delete(s.bans, target)
	return nil
}

// Blocked derives the ban status of an author at now. Expired entries are
// treated as absent.
func (s *State) Blocked(authorID string, now time.Time) domain.Block {
	entry, ok := s.bans[authorID]
	if !ok || entry.Expiry.Passed(now.UnixMilli()) {
		return domain.Block{Kind: domain.NotBlocked}
	}
	if at, timed := entry.Expiry.At(); timed {
		return domain.Block{Kind: domain.TimedOut, Until: at}
	}
	return domain.Block{Kind: domain.Banned}
}

// Authenticate elevates authorID when secret matches the configured one.
func (s *State) Authenticate(authorID, secret string) error {
	if authorID == "" {
		return domain.ErrNotIdentified
	}
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.secret)) != 1 {
		return domain.ErrInvalidCredential
	}
	s.admins[authorID] = struct{}{}
	return nil
}

// Logout drops the elevation of an admin.
func (s *State) Logout(authorID string) error {
	if !s.IsAdmin(authorID) {
		return domain.ErrUnauthorized
	}
	delete(s.admins, authorID)
	return nil
}

func (s *State) SetFrozen(actor string, frozen bool) error {
	if !s.IsAdmin(actor) {
		return domain.ErrUnauthorized
	}
	s.flags.Frozen = frozen
	return nil
}

func (s *State) SetAdminOnly(actor string, adminOnly bool) error {
	if !s.IsAdmin(actor) {
		return domain.ErrUnauthorized
	}
	s.flags.AdminOnly = adminOnly
	return nil
}

func (s *State) Flags() domain.Flags {
	return s.flags
}

// ActiveBans lists unexpired bans sorted by author id.
func (s *State) ActiveBans(now time.Time) []domain.BannedUser {
	nowMs := now.UnixMilli()
	out := make([]domain.BannedUser, 0, len(s.bans))
	for id, entry := range s.bans {
		if entry.Expiry.Passed(nowMs) {
			continue
		}
		out = append(out, entry.ToBannedUser(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// PurgeExpired deletes expired ban entries and returns how many went.
func (s *State) PurgeExpired(now time.Time) int {
	nowMs := now.UnixMilli()
	n := 0
	for id, entry := range s.bans {
		if entry.Expiry.Passed(nowMs) {
			delete(s.bans, id)
			n++
		}
	}
	return n
}

// Admins lists elevated author ids, sorted.
func (s *State) Admins() []string {
	out := make([]string, 0, len(s.admins))
	for id := range s.admins {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Restore replaces the state with loaded records. Expired bans are dropped.
func (s *State) Restore(bans []domain.BannedUser, flags domain.Flags, admins []string, now time.Time) {
	s.bans = make(map[string]domain.BanEntry, len(bans))
	for _, b := range bans {
		if b.UserID == "" {
			continue
		}
		s.bans[b.UserID] = b.ToBanEntry()
	}
	s.PurgeExpired(now)
	s.flags = flags
	s.admins = make(map[string]struct{}, len(admins))
	for _, id := range admins {
		if id != "" {
			s.admins[id] = struct{}{}
		}
	}
}
