package moderation

import (
	"errors"
	"testing"
	"time"

	"github.com/filmnt/chat/chat-service/internal/domain"
)

var now = time.UnixMilli(1_700_000_000_000)

func adminState(t *testing.T) *State {
	t.Helper()
	s := NewState("s3cret")
	if err := s.Authenticate("admin", "s3cret"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return s
}

func TestBanPrecedence(t *testing.T) {
	s := adminState(t)
	if _, err := s.Ban("admin", "u1", "bob", time.Minute, now); err != nil {
		t.Fatalf("ban: %v", err)
	}
	b := s.Blocked("u1", now.Add(30*time.Second))
	if b.Kind != domain.TimedOut || b.Until != now.Add(time.Minute).UnixMilli() {
		t.Fatalf("expected timeout until expiry, got %+v", b)
	}
	if b := s.Blocked("u1", now.Add(time.Minute)); b.Kind != domain.NotBlocked {
		t.Fatalf("expected expired ban to be absent, got %+v", b)
	}
	if bans := s.ActiveBans(now.Add(2 * time.Minute)); len(bans) != 0 {
		t.Fatalf("expected no active bans, got %+v", bans)
	}

	if _, err := s.Ban("admin", "u1", "bob", 0, now); err != nil {
		t.Fatalf("permanent ban: %v", err)
	}
	if b := s.Blocked("u1", now.Add(1000*time.Hour)); b.Kind != domain.Banned {
		t.Fatalf("expected permanent ban, got %+v", b)
	}
}

func TestBanAuthorization(t *testing.T) {
	s := adminState(t)
	tests := []struct {
		name     string
		actor    string
		target   string
		duration time.Duration
		wantErr  error
	}{
		{"admin ban", "admin", "u1", 0, nil},
		{"self timeout", "u2", "u2", time.Minute, nil},
		{"self permanent", "u2", "u2", 0, domain.ErrUnauthorized},
		{"ban other", "u2", "u3", time.Minute, domain.ErrUnauthorized},
		{"negative duration", "admin", "u1", -time.Second, domain.ErrMalformedFrame},
		{"no target", "admin", "", 0, domain.ErrMalformedFrame},
		{"too long", "admin", "u1", MaxBanDuration + time.Hour, domain.ErrMalformedFrame},
		{"longest allowed", "admin", "u1", MaxBanDuration, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Ban(tt.actor, tt.target, "name", tt.duration, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUnbanIdempotent(t *testing.T) {
	s := adminState(t)
	if _, err := s.Ban("admin", "u1", "bob", 0, now); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Unban("admin", "u1"); err != nil {
			t.Fatalf("unban %d: %v", i, err)
		}
	}
	if b := s.Blocked("u1", now); b.Kind != domain.NotBlocked {
		t.Fatalf("expected unblocked, got %+v", b)
	}
	if err := s.Unban("u1", "u1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAuthenticateAndFlags(t *testing.T) {
	s := NewState("s3cret")
	if err := s.Authenticate("u1", "wrong"); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
	if err := s.SetFrozen("u1", true); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := s.Authenticate("u1", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFrozen("u1", true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAdminOnly("u1", true); err != nil {
		t.Fatal(err)
	}
	if f := s.Flags(); !f.Frozen || !f.AdminOnly {
		t.Fatalf("unexpected flags %+v", f)
	}
	if err := s.Logout("u1"); err != nil {
		t.Fatal(err)
	}
	if s.IsAdmin("u1") {
		t.Fatal("expected admin status to be dropped")
	}

	empty := NewState("")
	if err := empty.Authenticate("u1", ""); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("empty secret must never elevate, got %v", err)
	}
}

func TestRestoreDropsExpired(t *testing.T) {
	past := now.Add(-time.Minute).UnixMilli()
	future := now.Add(time.Minute).UnixMilli()
	s := NewState("x")
	s.Restore([]domain.BannedUser{
		{UserID: "gone", Nickname: "a", Until: &past},
		{UserID: "timed", Nickname: "b", Until: &future},
		{UserID: "perm", Nickname: "c"},
	}, domain.Flags{Frozen: true}, []string{"root"}, now)

	bans := s.ActiveBans(now)
	if len(bans) != 2 || bans[0].UserID != "perm" || bans[1].UserID != "timed" {
		t.Fatalf("unexpected bans %+v", bans)
	}
	if bans[0].Until != nil {
		t.Fatal("permanent ban must not carry until")
	}
	if !s.Flags().Frozen || !s.IsAdmin("root") {
		t.Fatal("flags or admins not restored")
	}
}
