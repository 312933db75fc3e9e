package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/noorkids/storyplayer/internal/access"
	"github.com/noorkids/storyplayer/internal/api"
	"github.com/noorkids/storyplayer/internal/config"
	"github.com/noorkids/storyplayer/internal/exporter"
	"github.com/noorkids/storyplayer/internal/health"
	"github.com/noorkids/storyplayer/internal/notify"
	"github.com/noorkids/storyplayer/internal/session"
	"github.com/noorkids/storyplayer/internal/storage"
	"github.com/noorkids/storyplayer/internal/story"
	"github.com/noorkids/storyplayer/pkg/types"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/dev.example.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting StoryPlayer Server v%s", version)
	log.Printf("Configuration loaded from: %s", *configPath)

	// Initialize storage adapter
	storageAdapter, err := storage.NewAdapter(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create storage adapter: %v", err)
	}
	defer storageAdapter.Close()
	log.Printf("Storage adapter initialized: %s", cfg.Storage.Adapter)

	// Initialize story repository
	storyRepo := story.NewRepository(storageAdapter)
	log.Printf("Story repository initialized")

	// Notification hub and session manager
	hub := notify.NewHub()
	sessionManager := session.NewManager(storyRepo, hub, cfg.Player)
	log.Printf("Session manager initialized (target %d words/page)", cfg.Player.TargetWordsPerPage)

	// Export service
	exportService, err := exporter.NewService(storyRepo, storageAdapter, cfg.Export, cfg.Player)
	if err != nil {
		log.Fatalf("Failed to create export service: %v", err)
	}
	if cfg.Export.FontPath == "" {
		log.Printf("No export font configured, using built-in bitmap face")
	}

	// Initialize health checks
	healthHandler := health.NewHandler(version)

	healthHandler.Register("storage", func(ctx context.Context) (health.Status, error) {
		exists, err := storageAdapter.Exists(ctx, ".healthcheck")
		if err != nil {
			return health.StatusUnhealthy, err
		}
		_ = exists // Ignore result, just checking connectivity
		return health.StatusHealthy, nil
	})

	// Set up HTTP server and routes
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/health/live", healthHandler.LivenessHandler())
	mux.HandleFunc("/health/ready", healthHandler.ReadinessHandler())
	mux.HandleFunc("/health", healthHandler.HealthHandler())

	mux.HandleFunc("/api/v1/info", infoHandler(version, cfg))

	// Story endpoints
	storyHandler := api.NewStoryHandler(storyRepo, exportService, access.AllowAll{}, sessionManager, cfg.Player)
	mux.HandleFunc("/api/v1/stories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			storyHandler.CreateStory(w, r)
		} else {
			storyHandler.ListStories(w, r)
		}
	})
	mux.HandleFunc("/api/v1/stories/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if strings.HasSuffix(path, "/illustrations") {
			storyHandler.AttachIllustration(w, r)
		} else if strings.HasSuffix(path, "/audio") {
			storyHandler.AttachAudio(w, r)
		} else if strings.HasSuffix(path, "/export") {
			storyHandler.ExportStory(w, r)
		} else if strings.Contains(path, "/assets/") {
			storyHandler.GetAsset(w, r)
		} else {
			storyHandler.GetStory(w, r)
		}
	})

	// Session endpoints
	sessionHandler := api.NewSessionHandler(sessionManager, hub)
	mux.HandleFunc("/api/v1/sessions", sessionHandler.CreateSession)
	mux.HandleFunc("/api/v1/sessions/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if strings.HasSuffix(path, "/events") {
			sessionHandler.PostEvents(w, r)
		} else if strings.HasSuffix(path, "/controls") {
			sessionHandler.PostControls(w, r)
		} else if strings.HasSuffix(path, "/ws") {
			sessionHandler.ServeWS(w, r)
		} else if r.Method == http.MethodDelete {
			sessionHandler.CloseSession(w, r)
		} else {
			sessionHandler.GetSession(w, r)
		}
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Release live sessions before stopping the listener so clients get
	// their release commands
	sessionManager.CloseAll()
	hub.CloseAll()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// infoHandler returns basic server information
func infoHandler(version string, cfg *types.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":"%s","storage_adapter":"%s","target_words_per_page":%d}`,
			version, cfg.Storage.Adapter, cfg.Player.TargetWordsPerPage)
	}
}
