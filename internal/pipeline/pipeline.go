// Package pipeline runs the ordered validation gates (fmt, lint,
// typecheck, test) over the working tree using the shell commands of the
// profiles a PRD references. Gates run strictly in order and the first
// failure halts the pipeline.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/mark3labs/prdloop/internal/logger"
)

// Gate is one stage of the validation pipeline.
type Gate string

const (
	GateFmt       Gate = "fmt"
	GateLint      Gate = "lint"
	GateTypecheck Gate = "typecheck"
	GateTest      Gate = "test"
)

// EscalationInterval is how often the test gate joins the pipeline.
const EscalationInterval = 5

// ShouldEscalate reports whether the given iteration runs the full
// pipeline including the test gate.
func ShouldEscalate(iteration int) bool {
	return iteration%EscalationInterval == 0
}

// Gates returns the gates to run, in order. The test gate is included only
// when escalating.
func Gates(escalate bool) []Gate {
	gates := []Gate{GateFmt, GateLint, GateTypecheck}
	if escalate {
		gates = append(gates, GateTest)
	}
	return gates
}

// GateState is the recorded outcome of one gate.
type GateState string

const (
	StatePass   GateState = "pass"
	StateFail   GateState = "fail"
	StateNotRun GateState = "not_run"
)

// GateOutcome is the result of one gate across every referenced profile.
type GateOutcome struct {
	Gate    Gate
	State   GateState
	Profile string // profile whose command failed, for fail outcomes
	Command string
	Output  string
}

// Result is the outcome of a full pipeline run, one entry per gate in
// execution order. Gates after the first failure are present as not_run.
type Result struct {
	Outcomes  []GateOutcome
	Escalated bool
}

// Passed reports whether every executed gate passed.
func (r *Result) Passed() bool {
	for _, o := range r.Outcomes {
		if o.State == StateFail {
			return false
		}
	}
	return true
}

// FailedGate returns the failing gate outcome, or nil when all passed.
func (r *Result) FailedGate() *GateOutcome {
	for i := range r.Outcomes {
		if r.Outcomes[i].State == StateFail {
			return &r.Outcomes[i]
		}
	}
	return nil
}

// States returns the per-gate states keyed by gate name, for the ledger.
func (r *Result) States() map[string]string {
	states := make(map[string]string, len(r.Outcomes))
	for _, o := range r.Outcomes {
		states[string(o.Gate)] = string(o.State)
	}
	return states
}

// Runner executes validation pipelines in a working directory.
type Runner struct {
	workDir string
	timeout time.Duration
}

// DefaultCommandTimeout bounds a single gate command.
const DefaultCommandTimeout = 10 * time.Minute

// NewRunner creates a Runner. A zero timeout falls back to the default.
func NewRunner(workDir string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Runner{workDir: workDir, timeout: timeout}
}

// Run executes the gates in order over every profile. Within a gate each
// profile's command runs sequentially; a profile without a command for the
// gate passes vacuously. Any nonzero exit fails the gate, halts the
// pipeline, and leaves the remaining gates recorded as not_run. There is
// no retry here; failures surface to the caller.
func (r *Runner) Run(ctx context.Context, profiles []*Profile, escalate bool) (*Result, error) {
	gates := Gates(escalate)
	result := &Result{Escalated: escalate}

	halted := false
	for _, gate := range gates {
		if halted {
			result.Outcomes = append(result.Outcomes, GateOutcome{Gate: gate, State: StateNotRun})
			continue
		}

		outcome := GateOutcome{Gate: gate, State: StatePass}
		for _, p := range profiles {
			command := p.Command(gate)
			if command == "" {
				continue
			}
			logger.Debug("Running %s gate for profile %s: %s", gate, p.Name, command)
			output, err := r.runCommand(ctx, command)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				logger.Info("Gate %s failed (profile %s): %v", gate, p.Name, err)
				outcome.State = StateFail
				outcome.Profile = p.Name
				outcome.Command = command
				outcome.Output = output
				break
			}
		}
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.State == StateFail {
			halted = true
		}
	}

	return result, nil
}

// runCommand is the single generic primitive every gate goes through: run
// one shell command in the working directory, capture stdout and stderr,
// and report a nonzero exit as an error alongside the combined output.
func (r *Runner) runCommand(ctx context.Context, command string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += "[stderr]\n" + stderr.String()
	}

	if execCtx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("command timed out after %s: %s", r.timeout, command)
	}
	if err != nil {
		return output, fmt.Errorf("command failed: %w", err)
	}
	return output, nil
}
