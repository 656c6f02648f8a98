package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/filmnt/chat/chat-service/internal/hub"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakeStats struct{ healthy atomic.Bool }

func (f *fakeStats) Stats(context.Context) (hub.Stats, error) {
	if f.healthy.Load() {
		return hub.Stats{Connections: 1}, nil
	}
	return hub.Stats{}, errors.New("room stopped")
}

func TestHealthFollowsRoom(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s, hs := NewServer(zerolog.Nop())
	go s.Serve(lis)
	defer s.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	src := &fakeStats{}
	src.healthy.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go WatchRoom(ctx, hs, src, 10*time.Millisecond)

	waitFor := func(want healthpb.HealthCheckResponse_ServingStatus) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for {
			resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
			if err == nil && resp.GetStatus() == want {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("status never became %v (last err %v)", want, err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	waitFor(healthpb.HealthCheckResponse_SERVING)
	src.healthy.Store(false)
	waitFor(healthpb.HealthCheckResponse_NOT_SERVING)
}
