package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	ierr "github.com/mark3labs/prdloop/internal/errors"
	"github.com/mark3labs/prdloop/internal/logger"
	"github.com/spf13/cobra"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		// Exit codes distinguish the failure cause so an external driver
		// can react: 2 config, 3 concurrency, 4 agent, 5 validation.
		os.Exit(ierr.Code(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "prdloop",
	Short: "Autonomous PRD implementation loop",
	Long: `prdloop drives iterative implementation of a feature described by a
Product Requirements Document. Each iteration selects one unfinished
requirement, delegates it to an external coding agent, runs the
validation pipeline (fmt, lint, typecheck, and periodically test), and
records the outcome in an append-only ledger.

All state lives on disk in the PRD and the ledger, so the loop survives
crashes and restarts: an interrupted iteration simply resumes on the
next invocation.`,
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(iterateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setupCmd)
}
