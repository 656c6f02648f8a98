package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/filmnt/chat/chat-service/internal/client"
	"github.com/filmnt/chat/chat-service/internal/config"
	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/chat-service/internal/hub"
	"github.com/filmnt/chat/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type fakeVerifier struct {
	result *client.VerifyResult
	err    error
	token  string
}

func (f *fakeVerifier) Verify(_ context.Context, token, _ string) (*client.VerifyResult, error) {
	f.token = token
	return f.result, f.err
}

var wsCfg = config.WebSocketConfig{
	PingInterval:   time.Second,
	PongWait:       5 * time.Second,
	WriteWait:      time.Second,
	MaxMessageSize: 8192,
	SendBuffer:     64,
}

func newRouter(t *testing.T, v Verifier) (*gin.Engine, *hub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := hub.NewHub(hub.Options{
		Room: config.RoomConfig{Name: "main", WindowHours: 24, MaxMessages: 100, MaxMessageLength: 500, MaxNicknameLength: 32},
	})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})

	r := gin.New()
	NewWSHandler(h, wsCfg).RegisterRoutes(r)
	NewHTTPHandler(v, h).RegisterRoutes(r)
	return r, h
}

func TestChatRequiresUpgrade(t *testing.T) {
	r, _ := newRouter(t, &fakeVerifier{})
	for _, path := range []string{"/chat", "/chat/anything"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUpgradeRequired {
			t.Fatalf("%s: expected 426, got %d", path, w.Code)
		}
		if w.Body.String() != "Expected WebSocket" {
			t.Fatalf("%s: unexpected body %q", path, w.Body.String())
		}
	}
}

func TestChatUpgradeAndSync(t *testing.T) {
	r, _ := newRouter(t, &fakeVerifier{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/main"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	if err := conn.WriteJSON(map[string]string{"type": "requestSync", "userId": "u1", "nickname": "alice"}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var sync domain.SyncMessage
	if err := conn.ReadJSON(&sync); err != nil {
		t.Fatalf("read sync: %v", err)
	}
	if sync.Type != domain.MsgTypeSync || len(sync.Users) != 1 || sync.Users[0] != "alice" {
		t.Fatalf("unexpected sync %+v", sync)
	}

	if err := conn.WriteJSON(map[string]string{"type": "add", "id": "m1", "content": "hello"}); err != nil {
		t.Fatal(err)
	}
	// The users broadcast precedes the echo of our own message.
	for {
		var frame domain.ChatMessageOut
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		if frame.Type == domain.MsgTypeAdd {
			if frame.ID != "m1" || frame.UserID != "u1" {
				t.Fatalf("unexpected echo %+v", frame)
			}
			break
		}
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		verifier *fakeVerifier
		body     string
		wantCode int
		want     response.Verification
	}{
		{
			name:     "passed",
			verifier: &fakeVerifier{result: &client.VerifyResult{Success: true}},
			body:     `{"token":"abc"}`,
			wantCode: http.StatusOK,
			want:     response.Verification{Success: true, Error: []string{}},
		},
		{
			name:     "rejected",
			verifier: &fakeVerifier{result: &client.VerifyResult{ErrorCodes: []string{"timeout-or-duplicate"}}},
			body:     `{"token":"abc"}`,
			wantCode: http.StatusOK,
			want:     response.Verification{Error: []string{"timeout-or-duplicate"}},
		},
		{
			name:     "upstream failure",
			verifier: &fakeVerifier{err: errors.New("connection refused")},
			body:     `{"token":"abc"}`,
			wantCode: http.StatusOK,
			want:     response.Verification{Error: []string{CodeInternalError}},
		},
		{
			name:     "missing token",
			verifier: &fakeVerifier{},
			body:     `{}`,
			wantCode: http.StatusBadRequest,
			want:     response.Verification{Error: []string{CodeMissingInput}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newRouter(t, tt.verifier)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			var got response.Verification
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Success != tt.want.Success || strings.Join(got.Error, ",") != strings.Join(tt.want.Error, ",") {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
			if got.Error == nil {
				t.Fatal("error must always be a list")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t, &fakeVerifier{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["connections"] != float64(0) {
		t.Fatalf("unexpected body %v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "chat_connections_active") {
		t.Fatalf("metrics not exposed: %d", w.Code)
	}
}
