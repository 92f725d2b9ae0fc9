package agent

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunSuccess(t *testing.T) {
	var lines []string
	runner := NewRunner(RunnerConfig{
		Command:  "cat",
		WorkDir:  t.TempDir(),
		OnOutput: func(line string) { lines = append(lines, line) },
	})

	outcome, err := runner.Run(context.Background(), "line one\nline two\n")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome != OutcomeSuccess {
		t.Errorf("outcome = %s, want success", outcome)
	}
	if len(lines) != 2 || lines[0] != "line one" || lines[1] != "line two" {
		t.Errorf("output lines = %v", lines)
	}
}

func TestRunFailure(t *testing.T) {
	runner := NewRunner(RunnerConfig{
		Command: "cat >/dev/null; echo broke >&2; exit 3",
		WorkDir: t.TempDir(),
	})

	outcome, err := runner.Run(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for nonzero exit")
	}
	if outcome != OutcomeFailure {
		t.Errorf("outcome = %s, want failure", outcome)
	}
	if !strings.Contains(err.Error(), "broke") {
		t.Errorf("stderr not surfaced in error: %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	runner := NewRunner(RunnerConfig{
		Command: "cat >/dev/null; sleep 10",
		WorkDir: t.TempDir(),
		Timeout: 100 * time.Millisecond,
	})

	start := time.Now()
	outcome, err := runner.Run(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if outcome != OutcomeTimeout {
		t.Errorf("outcome = %s, want timeout", outcome)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took too long: %s", elapsed)
	}
}

func TestRunCanceledContext(t *testing.T) {
	runner := NewRunner(RunnerConfig{
		Command: "cat >/dev/null; sleep 10",
		WorkDir: t.TempDir(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	outcome, err := runner.Run(ctx, "prompt")
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if outcome != OutcomeFailure {
		t.Errorf("outcome = %s, want failure", outcome)
	}
}

func TestRunNoOutputCallback(t *testing.T) {
	runner := NewRunner(RunnerConfig{
		Command: "cat",
		WorkDir: t.TempDir(),
	})

	outcome, err := runner.Run(context.Background(), "prompt with no listener\n")
	if err != nil {
		t.Fatalf("Run without callback failed: %v", err)
	}
	if outcome != OutcomeSuccess {
		t.Errorf("outcome = %s, want success", outcome)
	}
}
