package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/assetmeta/internal/classifier"
	"github.com/example/assetmeta/internal/config"
	"github.com/example/assetmeta/internal/logging"
	"github.com/example/assetmeta/internal/worker"
)

type processOptions struct {
	jobID        string
	source       string
	url          string
	output       string
	instructions []string
	testMode     bool
}

func newProcessCommand() *cobra.Command {
	opts := &processOptions{}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Classify one asset and write its metadata document",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			logger, err := logging.NewLogger(os.Getenv("LOG_LEVEL"))
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runProcess(ctx, cmd, opts, configPath, classifier.NewInvoker(), logger)
		},
	}
	cmd.Flags().StringVar(&opts.jobID, "job-id", "", "job identifier (generated when empty)")
	cmd.Flags().StringVar(&opts.source, "source", "", "local path of the source asset")
	cmd.Flags().StringVar(&opts.url, "url", "", "publicly fetchable URL of the source asset")
	cmd.Flags().StringVar(&opts.output, "output", "", "path of the metadata document to write")
	cmd.Flags().StringArrayVar(&opts.instructions, "instruction", nil, "job instruction as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.testMode, "test-mode", false, "read classifier credentials from ASSETMETA_* environment variables")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runProcess(ctx context.Context, cmd *cobra.Command, opts *processOptions, configPath string, caller worker.Caller, logger *zap.Logger) error {
	if opts.source == "" && opts.url == "" {
		return fmt.Errorf("one of --source or --url is required")
	}
	instructions, err := parseInstructions(opts.instructions)
	if err != nil {
		return err
	}

	defaults, err := config.LoadDefaults(configPath)
	if err != nil {
		return err
	}
	if opts.testMode {
		defaults = defaults.WithEnvironment(os.Getenv)
	}

	w := worker.NewWorker(caller, defaults, logger)
	result, err := w.Process(ctx, worker.Job{
		ID:           opts.jobID,
		Asset:        worker.Asset{Path: opts.source, URL: opts.url},
		Instructions: instructions,
		OutputPath:   opts.output,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"job_id":        result.JobID,
		"kind":          result.Kind,
		"feature_count": result.FeatureCount,
		"output":        result.OutputPath,
		"skipped":       result.Skipped,
	})
}

// parseInstructions turns repeated key=value flags into an instruction map.
// Later values override earlier ones.
func parseInstructions(pairs []string) (map[string]string, error) {
	instructions := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid instruction %q: expected key=value", pair)
		}
		instructions[key] = value
	}
	return instructions, nil
}
