package pyext

import (
	"errors"
	"fmt"
)

// Build failure classes. Every one of them is fatal to BuildAll.
var (
	ErrToolNotFound      = errors.New("cmake not found")
	ErrDirectoryCreation = errors.New("directory creation failed")
	ErrConfigureFailed   = errors.New("configure failed")
	ErrBuildFailed       = errors.New("build failed")
	ErrInterpreterProbe  = errors.New("interpreter probe failed")
	ErrNoBuilder         = errors.New("no builder registered")
)

// ToolNotFoundError reports that no build-generator candidate answered a
// version query.
type ToolNotFoundError struct {
	Candidates     []string
	MinimumVersion string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("you need cmake >= %s (tried %v)", e.MinimumVersion, e.Candidates)
}

func (e *ToolNotFoundError) Is(target error) bool {
	return target == ErrToolNotFound
}

// Step names used in StepError.
const (
	stepDirectories = "directories"
	stepConfigure   = "configure"
	stepBuild       = "build"
)

// StepError is a failure of one phase of an extension build.
type StepError struct {
	Step      string   // "directories", "configure" or "build"
	Extension string   // Module name
	ExitCode  int      // Subprocess exit status, 0 for filesystem errors
	Output    []string // Captured subprocess output
	Err       error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("cmake %s failed for %s", e.Step, e.Extension)
	if e.Step == stepDirectories {
		msg = "create build directories for " + e.Extension
	}
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit status %d)", msg, e.ExitCode)
	}
	return BuildError(msg, e.Output, e.Err).Error()
}

func (e *StepError) Unwrap() error { return e.Err }

// Is matches the sentinel for the failed step.
func (e *StepError) Is(target error) bool {
	switch e.Step {
	case stepDirectories:
		return target == ErrDirectoryCreation
	case stepConfigure:
		return target == ErrConfigureFailed
	case stepBuild:
		return target == ErrBuildFailed
	}
	return false
}
