package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/pdf-share-relay/backend/api/handlers"
	"github.com/pdf-share-relay/backend/internal/buffer"
	"github.com/pdf-share-relay/backend/internal/config"
	"github.com/pdf-share-relay/backend/internal/db"
	"github.com/pdf-share-relay/backend/internal/recorder"
	"github.com/pdf-share-relay/backend/internal/registry"
	"github.com/pdf-share-relay/backend/internal/repository"
	"github.com/pdf-share-relay/backend/internal/session"
	"github.com/pdf-share-relay/backend/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Keep the recent log in memory for /api/debug
	logTail := buffer.NewLogTail(buffer.DefaultLogTailSize)
	log.SetOutput(io.MultiWriter(os.Stderr, logTail))

	if cfg.Storage.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}

	// Initialize database
	database, err := db.InitDB(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	sessionRepo := repository.NewSessionRepository(database)
	observers := []session.Observer{repository.NewHistory(sessionRepo)}

	if cfg.Storage.RecordDir != "" {
		rec, err := recorder.New(cfg.Storage.RecordDir)
		if err != nil {
			log.Fatalf("Failed to initialize recorder: %v", err)
		}
		defer rec.Close()
		observers = append(observers, rec)
		log.Printf("Recording session timelines to %s", cfg.Storage.RecordDir)
	}

	connRegistry := registry.New()
	sessionManager := session.NewManager(connRegistry, session.Config{
		Retention:         cfg.Relay.SessionRetention,
		Observers:         observers,
		ObserverQueueSize: cfg.Relay.ObserverQueueSize,
	})
	defer sessionManager.Close()

	wsService := ws.NewService(connRegistry, sessionManager, ws.HandlerConfig{
		HeartbeatInterval: cfg.Relay.HeartbeatInterval,
		SendQueueSize:     cfg.Relay.SendQueueSize,
		MaxArtifactBytes:  cfg.Relay.MaxArtifactBytes,
	})
	defer wsService.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reaper := session.NewReaper(sessionManager, cfg.Relay.ReapInterval, wsService.SessionsReaped)
	go reaper.Run(ctx)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionManager, sessionRepo)
	wsHandler := handlers.NewWebSocketHandler(wsService.Handler())
	debugHandler := handlers.NewDebugHandler(wsService, sessionManager, logTail)

	r := gin.Default()
	r.Use(corsMiddleware())

	r.GET("/health", debugHandler.Health)
	wsHandler.RegisterRoutes(r)

	api := r.Group("/api")
	{
		sessionHandler.RegisterRoutes(api)
		debugHandler.RegisterRoutes(api)
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		wsService.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on %s (heartbeat %s, reap every %s, retention %s)",
		srv.Addr, cfg.Relay.HeartbeatInterval, cfg.Relay.ReapInterval, sessionManager.Retention())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// loadConfig resolves settings from the config file, then the environment,
// then command-line flags.
func loadConfig(args []string) (*config.Config, error) {
	fs := pflag.NewFlagSet("pdf-share-relay", pflag.ContinueOnError)
	configPath := fs.String("config", getEnv("CONFIG_PATH", "config.yaml"), "path to YAML config file")
	port := fs.Int("port", 0, "listen port (overrides PORT and the config file)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if fs.Changed("port") {
		cfg.Server.Port = *port
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("--port: %w", err)
		}
	}
	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
