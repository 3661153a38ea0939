package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatpdf/internal/config"
	"chatpdf/internal/database"
	"chatpdf/internal/handlers"
	"chatpdf/internal/logger"
	"chatpdf/internal/middleware"
	"chatpdf/internal/rag"
	"chatpdf/internal/repository"
	"chatpdf/internal/router"
	"chatpdf/internal/services"
	"chatpdf/internal/session"
	"chatpdf/internal/websocket"
	"chatpdf/web"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("🚀 Starting ChatPDF...")
	log.Info("✓ Environment variables loaded")

	// ──── Step 2: Initialize Model Provider ────
	var (
		embedder  rag.Embedder
		generator rag.Generator
	)
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		ollama := services.NewOllamaService(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaEmbeddingModel)
		embedder, generator = ollama, ollama
		log.Info("✓ Ollama client initialized", zap.String("url", cfg.OllamaURL), zap.String("model", cfg.OllamaModel))
	default:
		gemini, err := services.NewGeminiService(
			cfg.GeminiAPIKey,
			cfg.GeminiModel,
			cfg.GeminiEmbeddingModel,
			cfg.GeminiConcurrentReqs,
			log,
		)
		if err != nil {
			log.Fatal("✗ Gemini client initialization failed", zap.Error(err))
		}
		defer gemini.Close()
		embedder, generator = gemini, gemini
		log.Info("✓ Gemini client initialized", zap.String("model", cfg.GeminiModel))
	}

	// ──── Step 3: Initialize Vector Store ────
	newStore := func(sessionID string) rag.VectorStore { return rag.NewMemoryStore() }
	if cfg.VectorStore == config.StorePgvector {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("✗ PostgreSQL connection failed", zap.Error(err))
		}
		defer pool.Close()
		log.Info("✓ PostgreSQL connected")

		if err := database.RunMigrations(pool, cfg.MigrationsDir, log); err != nil {
			log.Fatal("✗ Database migration failed", zap.Error(err))
		}
		log.Info("✓ Database migrations applied")

		chunkRepo := repository.NewChunkRepo(pool)
		// Sessions live in memory, so chunks left by a previous process are orphaned.
		purgeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		purged, err := chunkRepo.Purge(purgeCtx)
		cancel()
		if err != nil {
			log.Fatal("✗ Purging stale chunks failed", zap.Error(err))
		}
		log.Info("✓ pgvector store ready", zap.Int64("purged_chunks", purged))

		newStore = func(sessionID string) rag.VectorStore { return chunkRepo.Collection(sessionID) }
	} else {
		log.Info("✓ In-memory vector store ready")
	}

	// ──── Step 4: Initialize Redis Clients (optional) ────
	var publisher, subscriber *redis.Client
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatal("✗ Redis connection failed", zap.Error(err))
		}
		defer redisClients.Close()
		publisher, subscriber = redisClients.Publisher, redisClients.Subscriber
		log.Info("✓ Redis connected")
	}

	// ──── Step 5: Start WebSocket Hub ────
	wsHub := websocket.NewHub(publisher, subscriber, cfg.FrontendURL, log)
	log.Info("✓ WebSocket hub started")

	// ──── Step 6: Initialize Sessions and Services ────
	pdfExtract := services.NewPDFExtractService()
	opts := rag.Options{
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		TopK:           cfg.RetrievalK,
		ScoreThreshold: cfg.ScoreThreshold,
	}
	manager := session.NewManager(cfg.SessionTTL, func(sessionID string) session.Assistant {
		return rag.NewAssistant(pdfExtract, embedder, generator, newStore(sessionID), opts)
	}, log)

	chatService := services.NewChatService(wsHub, cfg.TempDir, cfg.AskTimeout, cfg.IngestTimeout, log)

	renderer, err := web.NewRenderer()
	if err != nil {
		log.Fatal("✗ Template parsing failed", zap.Error(err))
	}

	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret, manager, cfg.SessionTTL, !cfg.IsDevelopment())
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	chatHandler := handlers.NewChatHandler(chatService, renderer, cfg.MaxUploadBytes, log)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(sessionAuth, chatHandler, wsHub, limiter, cfg.FrontendURL, log)

	writeTimeout := cfg.IngestTimeout
	if cfg.AskTimeout > writeTimeout {
		writeTimeout = cfg.AskTimeout
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: writeTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		limiter.Stop()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		manager.Close()
	}()

	log.Info(fmt.Sprintf("✓ ChatPDF ready on http://localhost:%s", cfg.Port))
	log.Info(fmt.Sprintf("  API: http://localhost:%s/api/v1", cfg.Port))
	log.Info(fmt.Sprintf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("Server error", zap.Error(err))
	}
	<-done
	log.Info("✓ Shutdown complete")
}
