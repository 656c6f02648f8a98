package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filmnt/chat/chat-service/internal/client"
	"github.com/filmnt/chat/chat-service/internal/config"
	chatgrpc "github.com/filmnt/chat/chat-service/internal/grpc"
	"github.com/filmnt/chat/chat-service/internal/handler"
	"github.com/filmnt/chat/chat-service/internal/hub"
	"github.com/filmnt/chat/chat-service/internal/kafka"
	"github.com/filmnt/chat/chat-service/internal/persist"
	"github.com/filmnt/chat/pkg/log"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	l := log.L()
	l.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Str(log.FieldRoom, cfg.Room.Name).Msg("Starting Chat Service")

	if cfg.Admin.Secret == "" {
		l.Warn().Msg("ADMIN_SECRET is empty, admin elevation is disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize state store
	store, err := persist.New(ctx, cfg.Persist())
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to initialize state store")
	}
	defer store.Close()
	l.Info().Str("driver", cfg.Storage.Driver).Msg("State store ready")

	writer := persist.NewWriter(store, cfg.Room.Name, persist.WriterConfig{})
	writerCtx, stopWriter := context.WithCancel(context.Background())
	go writer.Run(writerCtx)

	// Initialize Kafka producer
	var producer kafka.EventProducer = kafka.NoopProducer{}
	if cfg.Kafka.Enabled {
		cp, err := kafka.NewConfluentProducer(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			FlushTimeout: cfg.Kafka.FlushTimeout,
		})
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to initialize Kafka producer")
		}
		producer = cp
		l.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Connected to Kafka")
	}
	defer func() {
		if err := producer.Close(); err != nil {
			l.Warn().Err(err).Msg("Room event export closed with pending events")
		}
	}()

	// Initialize Hub
	roomHub := hub.NewHub(hub.Options{
		Room:        cfg.Room,
		Rate:        cfg.Rate,
		AdminSecret: cfg.Admin.Secret,
		Store:       store,
		Saver:       writer,
		Producer:    producer,
	})
	hubCtx, stopHub := context.WithCancel(ctx)
	go roomHub.Run(hubCtx)

	// Start gRPC health server
	if cfg.GRPC.Enabled {
		grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		grpcServer, healthServer, err := chatgrpc.StartGRPCServer(grpcAddr, l)
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to start gRPC server")
		}
		defer grpcServer.GracefulStop()
		go chatgrpc.WatchRoom(ctx, healthServer, roomHub, 5*time.Second)
	}

	verifier := client.NewVerifyClient(cfg.Verify.URL, cfg.Verify.Secret, cfg.Verify.Timeout)

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(l))

	handler.NewWSHandler(roomHub, cfg.WebSocket).RegisterRoutes(router)
	handler.NewHTTPHandler(verifier, roomHub).RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		l.Info().Str("address", server.Addr).Msg("Chat Service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("Shutting down Chat Service...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the room first so its last saves reach the writer.
	stopHub()
	<-roomHub.Done()
	stopWriter()
	<-writer.Done()

	l.Info().Msg("Chat Service stopped")
}
