package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries everything the service reads from the environment. A .env
// file is honored when present; real environment variables win.
type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	AIAPIKey     string
	EmbedModel   string
	EmbedDim     int
	Port         string

	// Chunker tunables.
	MinTokens     int
	MaxTokens     int
	OverlapTokens int

	// Retrieval breadth.
	TopK int

	// Pipeline knobs.
	WorkerCount       int
	MaxFileSizeMB     int
	QueueDepth        int
	ProcessingTimeout int // minutes before a processing document counts as stuck
	SweepSpec         string

	LogLevel string
}

// Load reads the environment (and optional .env) and returns the config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "figwork-knowledge-docs"),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "gemini-embedding-001"),
		EmbedDim:     getEnvInt("EMBED_DIM", 1536),
		Port:         getEnv("PORT", "8080"),

		MinTokens:     getEnvInt("MIN_TOKENS", 300),
		MaxTokens:     getEnvInt("MAX_TOKENS", 600),
		OverlapTokens: getEnvInt("OVERLAP_TOKENS", 60),
		TopK:          getEnvInt("TOP_K", 5),

		WorkerCount:       getEnvInt("WORKER_COUNT", 2),
		MaxFileSizeMB:     getEnvInt("MAX_FILE_SIZE_MB", 25),
		QueueDepth:        getEnvInt("QUEUE_DEPTH", 64),
		ProcessingTimeout: getEnvInt("PROCESSING_TIMEOUT_MINUTES", 15),
		SweepSpec:         getEnv("SWEEP_SPEC", "* * * * *"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	if cfg.MinTokens <= 0 || cfg.MaxTokens <= cfg.MinTokens {
		return nil, fmt.Errorf("invalid chunk bounds: min=%d max=%d", cfg.MinTokens, cfg.MaxTokens)
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.MinTokens {
		return nil, fmt.Errorf("invalid overlap: %d", cfg.OverlapTokens)
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return cfg, nil
}

// getEnv reads an environment variable with a default fallback.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
