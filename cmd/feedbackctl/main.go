// Command feedbackctl runs feedback analyses from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"feedback-backend/internal/bootstrap"
	"feedback-backend/internal/feedback"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/storage/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(buildEngine, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildEngine(ctx context.Context) (feedback.Analyzer, config.PipelineConfig, error) {
	cfg := config.Load()
	app, err := bootstrap.Build(ctx, cfg, db.ProfileMigrate)
	if err != nil {
		return nil, cfg.Pipeline, err
	}
	return app.Engine, cfg.Pipeline, nil
}
