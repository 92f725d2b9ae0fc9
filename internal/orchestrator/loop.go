package orchestrator

import (
	"context"
	"errors"
	"fmt"

	ierr "github.com/mark3labs/prdloop/internal/errors"
	"github.com/mark3labs/prdloop/internal/logger"
)

// LoopConfig holds the stop policy for the wrapping driver. The iteration
// core has no retry cap of its own; this loop is the external driver that
// decides when a repeatedly failing requirement is hopeless.
type LoopConfig struct {
	MaxIterations int // 0 = unlimited
	FailStreak    int // stop after this many consecutive failed events for one requirement
}

// RunLoop performs iterations until the feature is complete, the iteration
// budget runs out, or one requirement fails FailStreak times in a row.
// Fatal errors (configuration, concurrency, I/O) abort immediately.
func (o *Orchestrator) RunLoop(ctx context.Context, cfg LoopConfig) error {
	streakReq := ""
	streak := 0

	for count := 0; ; count++ {
		if cfg.MaxIterations > 0 && count >= cfg.MaxIterations {
			logger.Info("Reached iteration limit of %d", cfg.MaxIterations)
			return fmt.Errorf("stopped after %d iterations with work remaining", cfg.MaxIterations)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		report, err := o.Iterate(ctx)
		if err == nil {
			if report.Complete {
				logger.Info("Feature '%s' is complete", o.cfg.Slug)
				return nil
			}
			streakReq, streak = "", 0
			continue
		}

		if !retryable(err) {
			return err
		}

		if report != nil && report.RequirementID == streakReq {
			streak++
		} else {
			streakReq = report.RequirementID
			streak = 1
		}
		logger.Warn("Iteration failed for %s (%d consecutive): %v", streakReq, streak, err)

		if cfg.FailStreak > 0 && streak >= cfg.FailStreak {
			return fmt.Errorf("requirement %s failed %d consecutive iterations: %w", streakReq, streak, err)
		}
	}
}

// retryable reports whether the loop should keep going after err. Agent
// and validation failures are the retried-next-iteration kind; anything
// else is fatal for the session.
func retryable(err error) bool {
	var agentErr *ierr.AgentError
	var valErr *ierr.ValidationError
	return errors.As(err, &agentErr) || errors.As(err, &valErr)
}
