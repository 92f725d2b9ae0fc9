// Package errors defines the typed failure modes of an iteration and maps
// them to process exit codes so external drivers can distinguish causes.
package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Process exit codes, one per failure cause.
const (
	ExitOK          = 0
	ExitFailure     = 1 // unclassified error
	ExitConfig      = 2 // unknown profile, incompatible schema version
	ExitConcurrency = 3 // run guard held by another session
	ExitAgent       = 4 // agent failed or timed out
	ExitValidation  = 5 // a validation gate failed
)

// ConfigError is a fatal configuration problem: an unknown validation
// profile or an incompatible PRD schema version. Nothing is mutated and no
// ledger event is written when one of these surfaces.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// ExitCode implements the exit code contract for configuration errors.
func (e *ConfigError) ExitCode() int { return ExitConfig }

// NewConfigError creates a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// ConcurrencyError indicates the run guard for a slug is held by a
// different session. Safe to retry once the other run finishes.
type ConcurrencyError struct {
	Slug        string
	ActiveRunID string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("run guard for %q held by run %s", e.Slug, e.ActiveRunID)
}

func (e *ConcurrencyError) ExitCode() int { return ExitConcurrency }

// AgentError wraps a failed or timed-out agent delegation. The iteration
// records it and leaves the requirement in_progress for the next attempt.
type AgentError struct {
	Err      error
	TimedOut bool
}

func (e *AgentError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("agent timed out: %v", e.Err)
	}
	return fmt.Sprintf("agent failed: %v", e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

func (e *AgentError) ExitCode() int { return ExitAgent }

// ValidationError carries the first failing gate and its captured output.
type ValidationError struct {
	Gate   string
	Output string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation gate %s failed", e.Gate)
}

func (e *ValidationError) ExitCode() int { return ExitValidation }

// exitCoder is implemented by every error type above.
type exitCoder interface {
	ExitCode() int
}

// Code returns the process exit code for err: 0 for nil, the typed code
// when err (or anything it wraps) carries one, 1 otherwise.
func Code(err error) int {
	if err == nil {
		return ExitOK
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return ExitFailure
}

// PanicError captures a panic recovered from a delegated call, including
// the stack trace at the point of the panic.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recover runs fn and converts a panic inside it into a PanicError.
func Recover(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, StackTrace: string(debug.Stack())}
		}
	}()
	return fn()
}
