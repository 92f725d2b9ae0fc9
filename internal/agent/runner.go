// Package agent delegates one requirement's implementation to the external
// code-generating agent. The agent is an opaque subprocess: it receives the
// prompt on stdin, may edit the working tree, and reports success through
// its exit code.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/mark3labs/prdloop/internal/logger"
)

// Outcome classifies how a delegation ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

// RunnerConfig holds configuration for creating a new Runner.
type RunnerConfig struct {
	Command  string            // shell command that starts the agent
	WorkDir  string            // working directory for the agent
	Timeout  time.Duration     // hard bound on one delegation
	OnOutput func(line string) // callback for agent output lines (optional)
}

// Runner manages the execution of the agent subprocess for each iteration.
type Runner struct {
	command  string
	workDir  string
	timeout  time.Duration
	onOutput func(line string)
}

// NewRunner creates a new Runner instance.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		command:  cfg.Command,
		workDir:  cfg.WorkDir,
		timeout:  cfg.Timeout,
		onOutput: cfg.OnOutput,
	}
}

// Run executes one delegation: spawn the agent, send the prompt via stdin,
// stream stdout lines to the output callback, and wait for exit. A timeout
// and a nonzero exit are distinct outcomes, but callers treat both as a
// failed attempt.
func (r *Runner) Run(ctx context.Context, prompt string) (Outcome, error) {
	logger.Debug("Starting agent: %s", r.command)

	execCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, "sh", "-c", r.command)
	cmd.Dir = r.workDir
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return OutcomeFailure, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return OutcomeFailure, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return OutcomeFailure, fmt.Errorf("failed to start agent: %w", err)
	}

	logger.Debug("Sending prompt to agent (length: %d)", len(prompt))
	if _, err := io.WriteString(stdin, prompt); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return OutcomeFailure, fmt.Errorf("failed to write prompt: %w", err)
	}
	stdin.Close()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if r.onOutput != nil {
			r.onOutput(scanner.Text())
		}
	}

	err = cmd.Wait()

	if execCtx.Err() == context.DeadlineExceeded {
		logger.Warn("Agent timed out after %s", r.timeout)
		return OutcomeTimeout, fmt.Errorf("agent timed out after %s", r.timeout)
	}
	if ctx.Err() != nil {
		return OutcomeFailure, ctx.Err()
	}
	if err != nil {
		logger.Error("Agent exited with error: %v", err)
		if stderr.Len() > 0 {
			return OutcomeFailure, fmt.Errorf("agent failed: %w\n[stderr]\n%s", err, stderr.String())
		}
		return OutcomeFailure, fmt.Errorf("agent failed: %w", err)
	}

	logger.Debug("Agent completed successfully")
	return OutcomeSuccess, nil
}
