package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Hybrid analytics copilot over a SQLite dataset and a markdown corpus",
	Long: `Answers business questions by routing each one to document retrieval,
structured queries or both, then synthesizing a cited answer.

Environment:
  LLM_PROVIDER, LLM_MODEL, LLM_API_KEY, LLM_BASE_URL, LLM_TIMEOUT
  DATABASE_PATH, DOCS_DIR, REDIS_URL, RUN_TTL
  LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"Pipeline settings file (missing file uses defaults)")

	rootCmd.AddCommand(runCmd, askCmd, schemaCmd, searchCmd, sqlCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
