package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"parking-status-monitor/config"
	"parking-status-monitor/internal/api"
	"parking-status-monitor/internal/db"
	"parking-status-monitor/internal/notification"
	"parking-status-monitor/internal/session"
	"parking-status-monitor/internal/status"
	"parking-status-monitor/internal/store"
	"parking-status-monitor/internal/upstream"
)

func main() {
	logger := log.New(os.Stdout, "parkmond ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Upstream.BaseURL == "" {
		logger.Fatalf("upstream.base_url must be configured")
	}

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys are not configured; push notifications are disabled")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	// Session wiring. The manager hydrates from the state dir, so a token
	// from the previous run survives the restart; its first re-validation
	// pass decides whether it is still trusted.
	fileStore, err := session.NewFileStore(cfg.Session.StateDir)
	if err != nil {
		logger.Fatalf("failed to open session state dir: %v", err)
	}

	var sessions *session.Manager
	client := upstream.NewClient(&cfg.Upstream, tokenSource(func() string {
		return sessions.Token()
	}))
	sessions = session.NewManager(fileStore, client, cfg.Session.VerifyInterval)
	go sessions.Run(ctx)

	var alerts status.AlertSink
	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		alerts = pool
	}

	monitor := status.NewSynchronizer(client, sessions, appStore, alerts, cfg.Monitor.Interval)
	if cfg.Monitor.Enabled {
		go monitor.Run(ctx)
	} else {
		logger.Println("status monitor is disabled; serving archived data only")
	}

	router := api.NewRouter(api.NewHandler(appStore, sessions, monitor, client, webpushOptions), &cfg.Server)
	runServer(ctx, logger, router, cfg.Server.Port)
}

// tokenSource adapts a closure to upstream.TokenSource, breaking the
// construction cycle between the client and the session manager.
type tokenSource func() string

func (f tokenSource) Token() string { return f() }

func runServer(ctx context.Context, logger *log.Logger, handler http.Handler, port int) {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case <-ctx.Done():
	}
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
