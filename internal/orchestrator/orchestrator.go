// Package orchestrator drives one iteration of the implementation loop:
// load the PRD, select a requirement, delegate to the agent, validate,
// record the outcome, persist, exit. All resumable state lives in the PRD
// and the ledger; nothing survives in memory between invocations.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/prdloop/internal/agent"
	ierr "github.com/mark3labs/prdloop/internal/errors"
	"github.com/mark3labs/prdloop/internal/ledger"
	"github.com/mark3labs/prdloop/internal/logger"
	"github.com/mark3labs/prdloop/internal/mcpserver"
	"github.com/mark3labs/prdloop/internal/pipeline"
	"github.com/mark3labs/prdloop/internal/prd"
	"github.com/mark3labs/prdloop/internal/runguard"
	"github.com/mark3labs/prdloop/internal/template"
)

// Config holds configuration for the orchestrator.
type Config struct {
	Slug          string             // Feature slug
	RunID         string             // Run identity for the guard, one per driver session
	DataDir       string             // Data directory holding tasks and validation config
	WorkDir       string             // Working directory for agent and validation commands
	AgentCommand  string             // Shell command that starts the agent
	AgentTimeout  time.Duration      // Bound on one delegation
	TemplatePath  string             // Custom prompt template (optional)
	ForceEscalate bool               // Run the test gate regardless of schedule
	DryRun        bool               // Report the selection without mutating anything
	OnAgentOutput func(line string)  // Callback for agent output (optional)
}

// Report describes what one invocation did.
type Report struct {
	Iteration     int
	RequirementID string
	Complete      bool // no selectable requirement remained
	Done          bool // the requirement reached done this iteration
	Escalated     bool
	FailedGate    string
	AgentOutcome  agent.Outcome
}

// Orchestrator wires the stores and the validation pipeline for one slug.
type Orchestrator struct {
	cfg      Config
	prds     *prd.Store
	events   *ledger.Store
	profiles *pipeline.Config
}

// New creates an Orchestrator and loads the validation configuration.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.DataDir == "" {
		cfg.DataDir = ".prdloop"
	}
	if cfg.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		cfg.WorkDir = wd
	}

	profiles, err := pipeline.LoadConfig(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:      cfg,
		prds:     prd.NewStore(cfg.DataDir),
		events:   ledger.NewStore(cfg.DataDir),
		profiles: profiles,
	}, nil
}

// Iterate performs exactly one iteration. Configuration and concurrency
// problems surface before any mutation; agent and validation failures are
// recorded in the ledger, leave the requirement in_progress, and are
// returned as typed errors so the caller can map them to exit codes.
func (o *Orchestrator) Iterate(ctx context.Context) (*Report, error) {
	doc, err := o.prds.Load(o.cfg.Slug)
	if err != nil {
		return nil, err
	}

	// Resolve profiles up front: an unknown profile is fatal before any
	// mutation or ledger event.
	profiles, err := o.profiles.Resolve(doc.ValidationProfiles)
	if err != nil {
		return nil, err
	}

	req := doc.SelectNext()
	if req == nil {
		logger.Info("Feature '%s' has no selectable requirements, nothing to do", o.cfg.Slug)
		return &Report{Complete: true}, nil
	}

	iteration, err := o.events.NextIterationNumber(o.cfg.Slug)
	if err != nil {
		return nil, err
	}
	escalate := o.cfg.ForceEscalate || pipeline.ShouldEscalate(iteration)

	if o.cfg.DryRun {
		return &Report{
			Iteration:     iteration,
			RequirementID: req.ID,
			Escalated:     escalate,
		}, nil
	}

	token, err := runguard.Acquire(o.prds, doc, o.cfg.RunID)
	if err != nil {
		return nil, err
	}

	logger.Info("=== Iteration #%d: %s (%s) ===", iteration, req.ID, req.Title)

	// Mark in_progress and persist before anything else runs, so a crash
	// resumes this requirement instead of silently reverting it.
	if req.Status == prd.StatusTodo {
		if err := doc.MarkInProgress(req.ID); err != nil {
			return nil, err
		}
		if err := o.prds.Persist(doc); err != nil {
			return nil, err
		}
	}

	if err := o.events.Append(o.cfg.Slug, ledger.Event{
		Iteration:     iteration,
		RequirementID: req.ID,
		Status:        ledger.StatusStarted,
	}); err != nil {
		return nil, err
	}

	report := &Report{Iteration: iteration, RequirementID: req.ID, Escalated: escalate}

	agentOutcome, agentErr := o.delegate(ctx, req, iteration, escalate)
	report.AgentOutcome = agentOutcome

	result, err := pipeline.NewRunner(o.cfg.WorkDir, 0).Run(ctx, profiles, escalate)
	if err != nil {
		return nil, err
	}

	// The agent may have blocked the requirement through the MCP tools
	// while it held the tree; re-read the PRD before transitioning.
	doc, err = o.prds.Load(o.cfg.Slug)
	if err != nil {
		return nil, err
	}
	req = doc.Requirement(req.ID)

	summary := &ledger.ValidationResult{Gates: result.States(), Escalated: escalate}
	iterErr := o.conclude(doc, req, iteration, agentErr, result, summary, report)

	if err := runguard.Release(o.prds, doc, token); err != nil {
		return nil, err
	}
	return report, iterErr
}

// delegate runs the agent subprocess with the iteration prompt, fronted by
// the MCP tools server for the duration of the call.
func (o *Orchestrator) delegate(ctx context.Context, req *prd.Requirement, iteration int, escalate bool) (agent.Outcome, error) {
	mcpURL := ""
	tools := mcpserver.New(o.prds, o.cfg.Slug)
	if _, err := tools.Start(ctx); err != nil {
		logger.Warn("MCP tools server unavailable: %v", err)
	} else {
		mcpURL = tools.URL()
		defer tools.Stop()
	}

	lastFailure, err := o.events.LastFailure(o.cfg.Slug, req.ID)
	if err != nil {
		return agent.OutcomeFailure, err
	}

	prompt, err := template.BuildPrompt(template.BuildConfig{
		Slug:         o.cfg.Slug,
		Requirement:  req,
		Iteration:    iteration,
		Escalate:     escalate,
		LastFailure:  lastFailure,
		MCPURL:       mcpURL,
		TemplatePath: o.cfg.TemplatePath,
	})
	if err != nil {
		return agent.OutcomeFailure, err
	}

	runner := agent.NewRunner(agent.RunnerConfig{
		Command:  o.cfg.AgentCommand,
		WorkDir:  o.cfg.WorkDir,
		Timeout:  o.cfg.AgentTimeout,
		OnOutput: o.cfg.OnAgentOutput,
	})

	var outcome agent.Outcome
	runErr := ierr.Recover(func() error {
		var err error
		outcome, err = runner.Run(ctx, prompt)
		return err
	})
	if runErr != nil {
		var panicErr *ierr.PanicError
		if errors.As(runErr, &panicErr) {
			logger.Error("Agent delegation panicked: %s", panicErr.StackTrace)
			outcome = agent.OutcomeFailure
		}
		return outcome, runErr
	}
	return outcome, nil
}

// conclude applies the state machine for the iteration outcome: done when
// the agent succeeded and every executed gate passed, otherwise a failed
// event with the requirement left in_progress for the next attempt.
func (o *Orchestrator) conclude(doc *prd.Document, req *prd.Requirement, iteration int,
	agentErr error, result *pipeline.Result, summary *ledger.ValidationResult, report *Report) error {

	if req != nil && req.Status == prd.StatusBlocked {
		message := fmt.Sprintf("requirement blocked during delegation: %s", req.BlockedReason)
		logger.Info("Iteration #%d: %s", iteration, message)
		if err := o.events.Append(o.cfg.Slug, ledger.Event{
			Iteration:     iteration,
			RequirementID: report.RequirementID,
			Status:        ledger.StatusFailed,
			Validation:    summary,
			Message:       message,
		}); err != nil {
			return err
		}
		return &ierr.AgentError{Err: errors.New(message)}
	}

	if agentErr == nil && result.Passed() {
		if err := doc.MarkDone(report.RequirementID); err != nil {
			return err
		}
		if err := o.events.Append(o.cfg.Slug, ledger.Event{
			Iteration:     iteration,
			RequirementID: report.RequirementID,
			Status:        ledger.StatusDone,
			Validation:    summary,
		}); err != nil {
			return err
		}
		if err := o.prds.Persist(doc); err != nil {
			return err
		}
		report.Done = true
		logger.Info("Iteration #%d complete: %s done", iteration, report.RequirementID)
		return nil
	}

	// Failed attempt: requirement stays in_progress and is retried
	// verbatim next invocation. Agent and validation failures take the
	// same path.
	var message string
	var iterErr error
	if agentErr != nil {
		message = template.Truncate(agentErr.Error(), 4000)
		iterErr = &ierr.AgentError{Err: agentErr, TimedOut: report.AgentOutcome == agent.OutcomeTimeout}
	} else {
		failed := result.FailedGate()
		report.FailedGate = string(failed.Gate)
		message = fmt.Sprintf("gate %s failed (profile %s, command %q)\n%s",
			failed.Gate, failed.Profile, failed.Command, template.Truncate(failed.Output, 4000))
		iterErr = &ierr.ValidationError{Gate: string(failed.Gate), Output: failed.Output}
	}

	if err := o.events.Append(o.cfg.Slug, ledger.Event{
		Iteration:     iteration,
		RequirementID: report.RequirementID,
		Status:        ledger.StatusFailed,
		Validation:    summary,
		Message:       message,
	}); err != nil {
		return err
	}
	if err := o.prds.Persist(doc); err != nil {
		return err
	}
	logger.Info("Iteration #%d failed: %s", iteration, message)
	return iterErr
}
