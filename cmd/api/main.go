package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slidecast/slidecast/internal/api"
	"github.com/slidecast/slidecast/internal/config"
	"github.com/slidecast/slidecast/internal/db"
	"github.com/slidecast/slidecast/internal/pipeline"
	"github.com/slidecast/slidecast/internal/queue"
	"github.com/slidecast/slidecast/internal/services"
	"github.com/slidecast/slidecast/internal/storage"
	"github.com/slidecast/slidecast/internal/worker"
)

func main() {
	log.Println("Starting Slidecast API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Object storage is optional: no endpoint means final videos are
	// served from local disk only.
	var stor *storage.Storage
	if cfg.MinioEndpoint != "" {
		stor, err = storage.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := stor.EnsureBucket(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to ensure storage bucket: %v", err)
		}
		cancel()
		log.Printf("Object storage enabled (bucket: %s)", cfg.MinioBucket)
	} else {
		log.Println("Object storage disabled — serving final videos from local disk")
	}

	// Start worker if enabled
	var w *worker.Worker
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		// Engine selection fails here, at startup, never mid-export
		ttsEngine, err := services.ParseTTSEngine(cfg.TTSEngine)
		if err != nil {
			log.Fatalf("Invalid TTS configuration: %v", err)
		}
		ttsSvc, err := services.NewTTSService(services.TTSConfig{
			Engine:            ttsEngine,
			OpenAIKey:         cfg.OpenAIKey,
			OpenAIVoice:       cfg.OpenAIVoice,
			ElevenLabsKey:     cfg.ElevenLabsKey,
			ElevenLabsVoiceID: cfg.ElevenLabsVoiceID,
			CartesiaKey:       cfg.CartesiaKey,
			CartesiaURL:       cfg.CartesiaURL,
			CartesiaVoiceID:   cfg.CartesiaVoiceID,
		})
		if err != nil {
			log.Fatalf("Failed to build TTS service: %v", err)
		}
		log.Printf("TTS engine: %s", ttsEngine)

		avatarEngine, err := services.ParseAvatarEngine(cfg.AvatarEngine)
		if err != nil {
			log.Fatalf("Invalid avatar configuration: %v", err)
		}
		avatarSvc, err := services.NewAvatarService(services.AvatarConfig{
			Engine:       avatarEngine,
			SadTalkerURL: cfg.SadTalkerURL,
			SadTalkerKey: cfg.SadTalkerAPIKey,
			GeminiKey:    cfg.GeminiKey,
			VeoModel:     cfg.VeoModel,
			Character:    cfg.AvatarCharacter,
		})
		if err != nil {
			log.Fatalf("Failed to build avatar service: %v", err)
		}
		if avatarSvc != nil {
			log.Printf("Avatar engine: %s", avatarEngine)
		} else {
			log.Println("Avatar rendering disabled")
		}

		ffmpegSvc := services.NewFFmpegService()
		comp := pipeline.NewCompositor(ttsSvc, avatarSvc, ffmpegSvc, cfg.MediaBaseDir, cfg.DefaultBackground, cfg.StrictAvatar)
		assembler := pipeline.NewAssembler(comp, ffmpegSvc, cfg.MediaBaseDir,
			pipeline.FailurePolicy(cfg.SceneFailurePolicy), cfg.MaxConcurrentScenes)

		w = worker.New(database, q, stor, assembler)

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	// Create API handler. The worker doubles as the export canceler; when
	// it is disabled, running jobs cannot be cancelled from this process.
	var canceler api.Canceler
	if w != nil {
		canceler = w
	}
	handler := api.NewHandler(database, q, stor, canceler)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
