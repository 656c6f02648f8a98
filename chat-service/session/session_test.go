package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/filmnt/chat/chat-service/internal/config"
	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/chat-service/internal/handler"
	"github.com/filmnt/chat/chat-service/internal/history"
	"github.com/filmnt/chat/chat-service/internal/hub"
	"github.com/filmnt/chat/chat-service/internal/ratelimit"
	"github.com/filmnt/chat/pkg/storage"
	"github.com/gin-gonic/gin"
)

func startRoom(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := hub.NewHub(hub.Options{
		Room:        config.RoomConfig{Name: "main", WindowHours: 24, MaxMessages: 100, MaxMessageLength: 500, MaxNicknameLength: 32, AdminRole: "Admin"},
		Rate:        ratelimit.Config{MaxMessages: 50, Window: 10 * time.Second, Timeout: time.Minute},
		AdminSecret: "k",
	})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	r := gin.New()
	handler.NewWSHandler(h, config.WebSocketConfig{
		PingInterval: time.Second,
		PongWait:     5 * time.Second,
		WriteWait:    time.Second,
		SendBuffer:   64,
	}).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-h.Done()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat"
}

func open(t *testing.T, cfg Config, store storage.Storage) *Session {
	t.Helper()
	s, err := Dial(context.Background(), cfg, store)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func waitFor(t *testing.T, s *Session, what string, cond func(State) bool) State {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		st := s.State()
		if cond(st) {
			return st
		}
		select {
		case <-s.Updates():
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %s; state %+v", what, st)
		}
	}
}

func TestSessionMirrorsRoom(t *testing.T) {
	url := startRoom(t)
	alice := open(t, Config{URL: url, Nickname: "alice"}, nil)
	bob := open(t, Config{URL: url, Nickname: "bob"}, nil)

	waitFor(t, alice, "both users", func(st State) bool { return len(st.Users) == 2 })

	id, err := alice.Send("hello")
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, bob, "alice's message", func(st State) bool {
		return len(st.Messages) == 1 && st.Messages[0].ID == id && st.Messages[0].User == "alice"
	})
	waitFor(t, alice, "echo", func(st State) bool { return len(st.Messages) == 1 })

	if err := alice.Edit(id, "hello!"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, bob, "edit", func(st State) bool {
		return len(st.Messages) == 1 && st.Messages[0].Content == "hello!"
	})

	if err := bob.Rename(context.Background(), "robert"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, alice, "rename", func(st State) bool {
		return len(st.Users) == 2 && st.Users[1] == "robert"
	})
}

func TestSessionAdminFlow(t *testing.T) {
	url := startRoom(t)
	admin := open(t, Config{URL: url, Nickname: "root"}, nil)
	user := open(t, Config{URL: url, Nickname: "bob"}, nil)
	waitFor(t, user, "sync", func(st State) bool { return len(st.Users) == 2 })

	if err := admin.Authenticate(context.Background(), "wrong"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, admin, "invalid key status", func(st State) bool { return st.Status == domain.CodeInvalidAPIKey })

	if err := admin.Authenticate(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, admin, "elevation", func(st State) bool { return st.IsAdmin })

	if err := admin.Freeze(true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, user, "freeze", func(st State) bool { return st.Frozen })
	if _, err := user.Send("hi"); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("expected frozen, got %v", err)
	}
	waitFor(t, admin, "freeze", func(st State) bool { return st.Frozen })
	if _, err := admin.Send("admins wait too"); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("expected frozen for admin, got %v", err)
	}

	if err := admin.Freeze(false); err != nil {
		t.Fatal(err)
	}
	waitFor(t, admin, "thaw", func(st State) bool { return !st.Frozen })
	if _, err := admin.Send("back again"); err != nil {
		t.Fatalf("admin send: %v", err)
	}
	waitFor(t, user, "admin message", func(st State) bool { return len(st.Messages) == 1 })
	if err := admin.Ban(user.State().UserID, "bob", time.Minute); err != nil {
		t.Fatal(err)
	}
	st := waitFor(t, user, "ban", func(st State) bool {
		return len(st.Bans) == 1 && !st.Frozen && st.Status == domain.CodeTimeout
	})
	if st.Until == 0 {
		t.Fatalf("expected timeout until, got %+v", st)
	}
	var blocked *domain.BlockedError
	if _, err := user.Send("let me in"); !errors.As(err, &blocked) {
		t.Fatalf("expected blocked error, got %v", err)
	}

	if err := admin.ClearChat(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, user, "clear", func(st State) bool { return len(st.Messages) == 0 })
}

func TestSessionThrottle(t *testing.T) {
	url := startRoom(t)
	s := open(t, Config{URL: url, Nickname: "spam", Rate: ratelimit.Config{MaxMessages: 2, Window: time.Minute, Timeout: time.Minute}}, nil)
	waitFor(t, s, "sync", func(st State) bool { return len(st.Users) == 1 })

	for i := 0; i < 2; i++ {
		if _, err := s.Send("x"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	_, err := s.Send("x")
	var blocked *domain.BlockedError
	if !errors.As(err, &blocked) || !blocked.RateLimited {
		t.Fatalf("expected local throttle, got %v", err)
	}
	if st := s.State(); st.Status != domain.CodeTimeout {
		t.Fatalf("expected timeout status, got %q", st.Status)
	}
}

func TestSessionRemembersIdentityAndWindow(t *testing.T) {
	url := startRoom(t)
	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	first, err := Dial(context.Background(), Config{URL: url, Nickname: "alice"}, local)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		first.Run(ctx)
		close(done)
	}()
	if _, err := first.Send("remember me"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, first, "echo", func(st State) bool { return len(st.Messages) == 1 })
	userID := first.State().UserID
	cancel()
	<-done

	// Without a server the remembered state is still restored before Dial fails.
	second := &Session{cfg: Config{}.withDefaults(), local: &localState{store: local}, clock: time.Now}
	second.msgs = history.New()
	if err := second.restore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if second.identity.UserID != userID || second.identity.Nickname != "alice" {
		t.Fatalf("identity not remembered: %+v", second.identity)
	}
	if second.msgs.Len() != 1 {
		t.Fatalf("expected remembered message, got %d", second.msgs.Len())
	}
}
