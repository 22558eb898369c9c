package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	LLMProvider string
	LLMModel    string

	Pipeline PipelineConfig

	QueueURL          string
	WorkerConcurrency int

	CORSAllowOrigins []string
	// Token-bucket limits per client IP on the synchronous analyze routes.
	RateLimitRPS   float64
	RateLimitBurst int
}

// PipelineConfig carries the timing and sizing knobs of the analysis engine.
type PipelineConfig struct {
	SentimentTimeout      time.Duration
	CategorizationTimeout time.Duration
	ActionsTimeout        time.Duration
	LegacyTimeout         time.Duration
	PipelineDeadline      time.Duration
	RetryBackoff          time.Duration

	BatchMaxConcurrency int
	BatchMaxItems       int
	BatchDeadline       time.Duration
}

// DefaultPipelineConfig returns the defaults used when no env override is set.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		SentimentTimeout:      20 * time.Second,
		CategorizationTimeout: 20 * time.Second,
		ActionsTimeout:        40 * time.Second,
		LegacyTimeout:         60 * time.Second,
		PipelineDeadline:      90 * time.Second,
		RetryBackoff:          300 * time.Millisecond,
		BatchMaxConcurrency:   4,
		BatchMaxItems:         100,
		BatchDeadline:         5 * time.Minute,
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:              getEnv("PORT", "8080"),
		Env:               env,
		DatabaseURL:       dbURL,
		LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
		LLMModel:          getEnv("LLM_MODEL", ""),
		Pipeline:          loadPipeline(DefaultPipelineConfig()),
		QueueURL:          strings.TrimSpace(os.Getenv("FB_SQS_QUEUE_URL")),
		WorkerConcurrency: getEnvInt("FB_WORKER_CONCURRENCY", 4),
		CORSAllowOrigins:  splitList(os.Getenv("FB_CORS_ALLOW_ORIGINS")),
		RateLimitRPS:      getEnvFloat("FB_RATE_LIMIT_RPS", 2),
		RateLimitBurst:    getEnvInt("FB_RATE_LIMIT_BURST", 20),
	}
}

// IsDevLike reports whether missing infrastructure may fall back to in-memory
// implementations.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func loadPipeline(defaults PipelineConfig) PipelineConfig {
	p := defaults
	p.SentimentTimeout = getEnvDuration("FB_SENTIMENT_TIMEOUT", p.SentimentTimeout)
	p.CategorizationTimeout = getEnvDuration("FB_CATEGORIZATION_TIMEOUT", p.CategorizationTimeout)
	p.ActionsTimeout = getEnvDuration("FB_ACTIONS_TIMEOUT", p.ActionsTimeout)
	p.LegacyTimeout = getEnvDuration("FB_LEGACY_TIMEOUT", p.LegacyTimeout)
	p.PipelineDeadline = getEnvDuration("FB_PIPELINE_DEADLINE", p.PipelineDeadline)
	p.RetryBackoff = getEnvDuration("FB_RETRY_BACKOFF", p.RetryBackoff)
	p.BatchMaxConcurrency = getEnvInt("FB_BATCH_MAX_CONCURRENCY", p.BatchMaxConcurrency)
	p.BatchMaxItems = getEnvInt("FB_BATCH_MAX_ITEMS", p.BatchMaxItems)
	p.BatchDeadline = getEnvDuration("FB_BATCH_DEADLINE", p.BatchDeadline)
	return p
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config env %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		log.Printf("config env %s invalid number %q, using %g", key, raw, def)
		return def
	}
	return val
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config env %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
