package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/prdloop/internal/config"
	"github.com/mark3labs/prdloop/internal/logger"
	"github.com/mark3labs/prdloop/internal/orchestrator"
	"github.com/spf13/cobra"
)

var runFlags struct {
	iterations int
	failStreak int
	template   string
}

var runCmd = &cobra.Command{
	Use:   "run <slug>",
	Short: "Iterate until the feature is complete",
	Long: `Drive the iteration loop for a feature until every requirement is done
or blocked, the iteration budget runs out, or one requirement fails too
many times in a row.

The whole session shares one run identity, so the concurrency guard
lets consecutive iterations resume each other while rejecting a second
concurrent run of the same feature. Interrupt with Ctrl-C; all state is
on disk and the next run picks up where this one stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runFlags.iterations, "iterations", "i", 0, "Max iterations for this session, 0 = config default")
	runCmd.Flags().IntVar(&runFlags.failStreak, "fail-streak", 0, "Stop after this many consecutive failures on one requirement, 0 = config default")
	runCmd.Flags().StringVarP(&runFlags.template, "template", "t", "", "Custom prompt template file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	maxIterations := runFlags.iterations
	if maxIterations == 0 {
		maxIterations = cfg.MaxIterations
	}
	failStreak := runFlags.failStreak
	if failStreak == 0 {
		failStreak = cfg.FailStreak
	}

	runID := uuid.NewString()
	logger.Info("Starting run %s for feature '%s'", runID, args[0])

	orch, err := orchestrator.New(orchestrator.Config{
		Slug:          args[0],
		RunID:         runID,
		DataDir:       cfg.DataDir,
		AgentCommand:  cfg.AgentCommand,
		AgentTimeout:  time.Duration(cfg.AgentTimeout) * time.Second,
		TemplatePath:  runFlags.template,
		OnAgentOutput: printAgentLine,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return orch.RunLoop(ctx, orchestrator.LoopConfig{
		MaxIterations: maxIterations,
		FailStreak:    failStreak,
	})
}
