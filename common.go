package pyext

import (
	"context"
	"log/slog"
)

// buildPhase is one step of the per-extension state machine.
type buildPhase struct {
	name    string
	reaches BuildState // State entered when run succeeds
	run     func(ctx context.Context) error
}

// runPhases executes phases in order, one shot each.
//
// # Process Flow
//
//  1. Check for context cancellation
//  2. Run the phase
//  3. On success, advance result to the phase's state
//  4. On failure, mark result failed and stop
//
// There is no retry: the first failing phase ends the build and its error
// is returned unchanged.
func runPhases(ctx context.Context, logger *slog.Logger, result *BuildResult, phases []buildPhase) error {
	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			result.fail(err)
			return err
		}
		if err := phase.run(ctx); err != nil {
			logger.Debug("phase failed", "phase", phase.name, "state", result.LastGood.String())
			result.fail(err)
			return err
		}
		result.advance(phase.reaches)
		logger.Debug("phase complete", "phase", phase.name, "state", phase.reaches.String())
	}
	return nil
}
