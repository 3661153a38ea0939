package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	StoreMemory   = "memory"
	StorePgvector = "pgvector"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Session
	SessionSecret string
	SessionTTL    time.Duration

	// Model provider
	LLMProvider          string
	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string
	GeminiConcurrentReqs int
	OllamaURL            string
	OllamaModel          string
	OllamaEmbeddingModel string

	// Vector store
	VectorStore   string
	DatabaseURL   string
	MigrationsDir string

	// Redis (optional, enables cross-instance status events)
	RedisURL string

	// Retrieval
	ChunkSize      int
	ChunkOverlap   int
	RetrievalK     int
	ScoreThreshold float64

	// Limits
	MaxUploadBytes     int64
	AskTimeout         time.Duration
	IngestTimeout      time.Duration
	RateLimitPerMinute int
	TempDir            string

	// Frontend
	FrontendURL string

	// Logging
	LogLevel string
	LogFile  string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		SessionSecret:        mustGetEnv("SESSION_SECRET"),
		SessionTTL:           time.Duration(getEnvAsIntOrDefault("SESSION_TTL_MINUTES", 60)) * time.Minute,
		LLMProvider:          getEnvOrDefault("LLM_PROVIDER", ProviderGemini),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiEmbeddingModel: getEnvOrDefault("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		OllamaURL:            getEnvOrDefault("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:          getEnvOrDefault("OLLAMA_MODEL", "mistral"),
		OllamaEmbeddingModel: getEnvOrDefault("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		VectorStore:          getEnvOrDefault("VECTOR_STORE", StoreMemory),
		MigrationsDir:        getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		ChunkSize:            getEnvAsIntOrDefault("CHUNK_SIZE", 1024),
		ChunkOverlap:         getEnvAsIntOrDefault("CHUNK_OVERLAP", 100),
		RetrievalK:           getEnvAsIntOrDefault("RETRIEVAL_K", 3),
		ScoreThreshold:       getEnvAsFloatOrDefault("SCORE_THRESHOLD", 0.5),
		MaxUploadBytes:       int64(getEnvAsIntOrDefault("MAX_UPLOAD_MB", 100)) * 1024 * 1024,
		AskTimeout:           time.Duration(getEnvAsIntOrDefault("ASK_TIMEOUT_SECONDS", 120)) * time.Second,
		IngestTimeout:        time.Duration(getEnvAsIntOrDefault("INGEST_TIMEOUT_SECONDS", 300)) * time.Second,
		RateLimitPerMinute:   getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
		TempDir:              getEnvOrDefault("TEMP_DIR", ""),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", ""),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:              getEnvOrDefault("LOG_FILE", ""),
	}

	// Provider- and store-specific requirements
	if cfg.LLMProvider == ProviderGemini {
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	}
	if cfg.VectorStore == StorePgvector {
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	return cfg
}

// Validate checks enumerated settings and numeric ranges.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOllama, c.LLMProvider)
	}
	switch c.VectorStore {
	case StoreMemory, StorePgvector:
	default:
		return fmt.Errorf("VECTOR_STORE must be %q or %q, got %q", StoreMemory, StorePgvector, c.VectorStore)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be > 0")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("RETRIEVAL_K must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be > 0")
	}
	return nil
}

// IsDevelopment reports whether the server runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
