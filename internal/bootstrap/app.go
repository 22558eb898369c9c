// Package bootstrap wires configuration into the engine, stores, and transports
// shared by every binary.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/analysis"
	"feedback-backend/internal/feedback"
	"feedback-backend/internal/llm"
	openai "feedback-backend/internal/llm/openai"
	"feedback-backend/internal/outcomes"
	"feedback-backend/internal/queue"
	"feedback-backend/internal/services/health"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/server"
	"feedback-backend/internal/shared/storage/db"
)

// App holds shared dependencies.
type App struct {
	Config   config.Config
	DB       *sql.DB
	Queue    queue.Client
	LLM      llm.Invoker
	Outcomes outcomes.Repo
	Engine   *analysis.Engine
	Feedback *feedback.Handler
	Health   *health.Service
	Router   *gin.Engine
}

// Build prepares shared dependencies. profile picks the database pool sizing.
func Build(ctx context.Context, cfg config.Config, profile db.Profile) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := openDatabase(ctx, cfg, profile)
	if err != nil {
		return nil, err
	}

	invoker, err := buildLLM(cfg)
	if err != nil {
		releaseDB(sqlDB)
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		releaseDB(sqlDB)
		return nil, err
	}

	var repo outcomes.Repo
	if sqlDB != nil {
		repo = &outcomes.PGRepo{DB: sqlDB}
	} else {
		repo = outcomes.NewMemoryRepo()
	}

	engine := analysis.NewEngine(invoker, cfg.Pipeline,
		analysis.WithCompletionHook(outcomes.NewSink(repo).Hook()))

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Queue:    queueClient,
		LLM:      invoker,
		Outcomes: repo,
		Engine:   engine,
		Feedback: feedback.NewHandler(engine, repo, queueClient, cfg.Pipeline),
	}
	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	app.Health = health.NewService(pinger, queueClient != nil, cfg.LLMProvider)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Feedback: app.Feedback,
		Health:   app.Health,
	})
	return app, nil
}

var openDatabase = buildDB

// releaseDB closes a pool opened for a Build that failed. The Lambda pool is
// process-wide and stays open for the next invocation.
func releaseDB(conn *sql.DB) {
	if conn == nil || db.InLambda() {
		return
	}
	if err := conn.Close(); err != nil {
		log.Printf("bootstrap: close database: %v", err)
	}
}

func buildDB(ctx context.Context, cfg config.Config, profile db.Profile) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory outcome store")
			return nil, nil
		}
		return nil, fmt.Errorf("bootstrap: %w", db.ErrNoDatabaseURL)
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.InLambda() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.PoolConfigFor(db.ProfileLambda))
	} else {
		sqlDB, err = db.Open(ctx, cfg.DatabaseURL, db.PoolConfigFor(profile))
	}
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database connect failed; using in-memory outcome store: %v", err)
			return nil, nil
		}
		return nil, err
	}

	// Deployed environments migrate through cmd/migrate.
	if cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			releaseDB(sqlDB)
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildLLM(cfg config.Config) (llm.Invoker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "openai":
		client, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.LLMModel)
		if err != nil {
			if cfg.IsDevLike() {
				log.Printf("bootstrap: openai not configured, analyses use the lexicon fallback: %v", err)
				return llm.PlaceholderInvoker{}, nil
			}
			return nil, err
		}
		return client, nil
	case "", "none", "placeholder":
		return llm.PlaceholderInvoker{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.QueueURL == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL)
}
