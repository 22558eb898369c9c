package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"feedback-backend/internal/analysis"
	"feedback-backend/internal/feedback"
	"feedback-backend/internal/shared/config"
)

type engineFactory func(ctx context.Context) (feedback.Analyzer, config.PipelineConfig, error)

const maxLineBytes = 1 << 20

func newRootCmd(factory engineFactory, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "feedbackctl",
		Short:         "Analyze customer feedback with the layered analysis engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.AddCommand(newAnalyzeCmd(factory), newBatchCmd(factory))
	return root
}

func newAnalyzeCmd(factory engineFactory) *cobra.Command {
	var locale, correlationID string
	cmd := &cobra.Command{
		Use:   "analyze <text>",
		Short: "Analyze one piece of feedback and print the outcome as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("text must not be empty")
			}
			engine, _, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			out := engine.AnalyzeOne(cmd.Context(), analysis.Request{
				Text:          text,
				CorrelationID: correlationID,
				Locale:        locale,
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&locale, "locale", "", "locale hint, e.g. ar or en")
	cmd.Flags().StringVar(&correlationID, "id", "", "correlation id (generated when empty)")
	return cmd
}

type batchLine struct {
	Text          string `json:"text"`
	CorrelationID string `json:"correlationId"`
	Locale        string `json:"locale"`
}

func newBatchCmd(factory engineFactory) *cobra.Command {
	var (
		file        string
		concurrency int
		deadline    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Analyze JSONL feedback items and print one outcome per line, in input order",
		Long: `Each input line is a JSON object {"text": "...", "correlationId": "...", "locale": "..."}.
Use --file - to read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readBatch(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			engine, pipeline, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = pipeline.BatchMaxConcurrency
			}
			if deadline <= 0 {
				deadline = pipeline.BatchDeadline
			}

			ctx := cmd.Context()
			if deadline > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, deadline)
				defer cancel()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, out := range engine.AnalyzeBatch(ctx, reqs, concurrency) {
				if err := enc.Encode(out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSONL input file, - for stdin")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max items analyzed in parallel (default from FB_BATCH_MAX_CONCURRENCY)")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "batch deadline (default from FB_BATCH_DEADLINE)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readBatch(stdin io.Reader, file string) ([]analysis.Request, error) {
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open batch file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var reqs []analysis.Request
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var item batchLine
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		reqs = append(reqs, analysis.Request{
			Text:          item.Text,
			CorrelationID: item.CorrelationID,
			Locale:        item.Locale,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	if len(reqs) == 0 {
		return nil, errors.New("batch input has no items")
	}
	return reqs, nil
}
