package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hybrid_copilot/internal/app"
	"hybrid_copilot/internal/batch"
	"hybrid_copilot/internal/logger"

	"github.com/spf13/cobra"
)

var (
	runBatchPath   string // input JSONL
	runOutPath     string // output JSONL, "-" for stdout
	runMetricsAddr string // empty disables the metrics endpoint
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer a batch of questions",
	Long: `Reads one JSON question per line and writes one JSON result per line.

Each input line has "question" and optionally "id" and "format_hint".
Questions that fail are written as degraded records and the batch continues.
With --metrics-addr the Prometheus endpoint is scrapeable only until the
batch finishes.

Examples:
  copilot run --batch sample_questions.jsonl --out outputs.jsonl
  copilot run --batch questions.jsonl --out - --metrics-addr :9090`,
	RunE: runBatchCommand,
}

func init() {
	runCmd.Flags().StringVar(&runBatchPath, "batch", "sample_questions_hybrid_eval.jsonl",
		"Input JSONL file with questions")
	runCmd.Flags().StringVar(&runOutPath, "out", "outputs_hybrid.jsonl",
		"Output JSONL file for results")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address while the batch runs; the endpoint closes when the run ends (e.g. :9090)")
}

func runBatchCommand(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(runBatchPath); err != nil {
		return fmt.Errorf("input file '%s' not found: %w", runBatchPath, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, settings, err := app.LoadSettings(configPath)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, env, settings)
	if err != nil {
		return err
	}
	defer a.Close()

	processor, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}

	store, err := a.Store(ctx)
	if err != nil {
		return err
	}

	if runMetricsAddr != "" {
		go func() {
			if err := a.Recorder.Serve(ctx, runMetricsAddr); err != nil {
				logger.Error().Err(err).Str("addr", runMetricsAddr).Msg("Metrics server stopped")
			}
		}()
	}

	summary, err := batch.NewDriver(processor, store, a.Recorder).ProcessFile(ctx, runBatchPath, runOutPath)
	if err != nil {
		return err
	}

	logger.Info().
		Int("processed", summary.Total).
		Int("degraded", summary.Degraded).
		Str("out", runOutPath).
		Msg("Results written")
	return nil
}
