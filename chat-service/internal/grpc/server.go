package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/filmnt/chat/chat-service/internal/hub"
	"github.com/filmnt/chat/pkg/log"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the room.
const ServiceName = "chat.Room"

// StatsSource is the part of the hub the health server watches.
type StatsSource interface {
	Stats(ctx context.Context) (hub.Stats, error)
}

// NewServer builds a gRPC server exposing the standard health service.
func NewServer(logger zerolog.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(log.StreamServerInterceptor(logger)),
	)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// StartGRPCServer listens on addr and serves in the background.
func StartGRPCServer(addr string, logger zerolog.Logger) (*grpc.Server, *health.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s, hs := NewServer(logger)

	go func() {
		l := log.L()
		l.Info().Str("address", addr).Msg("chat grpc server listening")
		if err := s.Serve(lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()

	return s, hs, nil
}

// WatchRoom polls the room and mirrors its liveness into the health
// service until ctx is cancelled.
func WatchRoom(ctx context.Context, hs *health.Server, src StatsSource, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_SERVING
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		if _, err := src.Stats(probeCtx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		cancel()
		hs.SetServingStatus(ServiceName, status)
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
		}
	}
}
