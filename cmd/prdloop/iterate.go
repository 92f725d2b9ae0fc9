package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/prdloop/internal/config"
	"github.com/mark3labs/prdloop/internal/orchestrator"
	"github.com/spf13/cobra"
)

var iterateFlags struct {
	runID    string
	template string
	escalate bool
	dryRun   bool
}

var iterateCmd = &cobra.Command{
	Use:   "iterate <slug>",
	Short: "Perform exactly one iteration",
	Long: `Perform exactly one iteration for a feature: select a requirement,
delegate it to the agent, run validation, record the outcome, exit.

The exit code tells the caller what happened: 0 on success or when the
feature is already complete, 4 on an agent failure, 5 on a validation
failure, 3 when another run holds the feature. Failed iterations leave
the requirement in_progress, so rerunning retries it.

Pass the same --run-id across invocations to resume a session; a fresh
one is generated otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runIterate,
}

func init() {
	iterateCmd.Flags().StringVar(&iterateFlags.runID, "run-id", "", "Run identity for the concurrency guard (default: random)")
	iterateCmd.Flags().StringVarP(&iterateFlags.template, "template", "t", "", "Custom prompt template file")
	iterateCmd.Flags().BoolVar(&iterateFlags.escalate, "escalate", false, "Run the test gate regardless of the escalation schedule")
	iterateCmd.Flags().BoolVar(&iterateFlags.dryRun, "dry-run", false, "Report what would run without mutating anything")
}

func runIterate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !iterateFlags.dryRun {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	runID := iterateFlags.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Slug:          args[0],
		RunID:         runID,
		DataDir:       cfg.DataDir,
		AgentCommand:  cfg.AgentCommand,
		AgentTimeout:  time.Duration(cfg.AgentTimeout) * time.Second,
		TemplatePath:  iterateFlags.template,
		ForceEscalate: iterateFlags.escalate,
		DryRun:        iterateFlags.dryRun,
		OnAgentOutput: printAgentLine,
	})
	if err != nil {
		return err
	}

	report, err := orch.Iterate(cmd.Context())
	if err != nil {
		return err
	}

	switch {
	case report.Complete:
		fmt.Println("Feature is complete, nothing to do")
	case iterateFlags.dryRun:
		fmt.Printf("Would run iteration #%d on %s (escalated: %t)\n",
			report.Iteration, report.RequirementID, report.Escalated)
	case report.Done:
		fmt.Printf("Iteration #%d: %s is done\n", report.Iteration, report.RequirementID)
	}
	return nil
}

func printAgentLine(line string) {
	fmt.Printf("  agent | %s\n", line)
}
