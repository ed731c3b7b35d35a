package pyext

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// MinimumCMakeVersion is the oldest CMake the native projects are written
// against. It is reported, never checked: a candidate that answers
// --version is trusted to be new enough.
const MinimumCMakeVersion = "3.8"

// DefaultCMakeCandidates are tried in order. Some distributions ship
// CMake 2.x as "cmake" and a current release as "cmake3".
var DefaultCMakeCandidates = []string{"cmake3", "cmake"}

// ToolResolver finds a working build-generator executable.
type ToolResolver struct {
	Candidates     []string
	MinimumVersion string
	Runner         Runner
	Logger         *slog.Logger
}

// NewToolResolver returns a resolver trying extra candidates first, then
// DefaultCMakeCandidates.
func NewToolResolver(runner Runner, logger *slog.Logger, extra ...string) *ToolResolver {
	candidates := append(append([]string{}, extra...), DefaultCMakeCandidates...)
	if runner == nil {
		runner = &ExecRunner{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ToolResolver{
		Candidates:     uniqueStrings(candidates),
		MinimumVersion: MinimumCMakeVersion,
		Runner:         runner,
		Logger:         logger,
	}
}

// Resolve returns the first candidate whose "--version" exits zero.
//
// A candidate missing from PATH and one exiting non-zero are both skipped.
// Candidates after the first working one are not run.
func (r *ToolResolver) Resolve(ctx context.Context) (string, error) {
	for _, candidate := range r.Candidates {
		res, err := r.Runner.Run(ctx, Command{Name: candidate, Args: []string{"--version"}})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			r.Logger.Debug("cmake candidate rejected", "candidate", candidate, "error", err)
			continue
		}
		version := ""
		if res != nil && len(res.Output) > 0 {
			version = strings.TrimSpace(res.Output[0])
		}
		r.Logger.Debug("cmake candidate accepted", "candidate", candidate, "version", version)
		return candidate, nil
	}

	return "", &ToolNotFoundError{
		Candidates:     append([]string(nil), r.Candidates...),
		MinimumVersion: r.MinimumVersion,
	}
}

// ResolveCMake resolves the default candidates with runner.
func ResolveCMake(ctx context.Context, runner Runner) (string, error) {
	return NewToolResolver(runner, nil).Resolve(ctx)
}

// ToolChecker is implemented by builders that depend on external tools.
//
// # Consumer Usage
//
//	if checker, ok := builder.(ToolChecker); ok {
//	    if err := checker.CheckTools(ctx); err != nil {
//	        return fmt.Errorf("build tools missing: %w", err)
//	    }
//	}
type ToolChecker interface {
	// RequiredTools returns the list of tools this builder needs.
	RequiredTools() []ToolRequirement

	// CheckTools verifies that all required tools are available.
	// Optional tools don't cause errors if missing.
	CheckTools(ctx context.Context) error
}

// ToolRequirement describes a build tool dependency.
//
// Tool with alternatives:
//
//	ToolRequirement{
//	    Name:         "python3",
//	    Alternatives: []string{"python"},
//	    Purpose:      "Host interpreter",
//	}
type ToolRequirement struct {
	// Name is the primary tool binary name.
	Name string

	// Alternatives can satisfy the requirement in place of Name.
	Alternatives []string

	// Optional tools are reported but never fail a check.
	Optional bool

	// Purpose is a human-readable description of why this tool is needed.
	Purpose string
}

// CheckToolAvailable checks if a tool is available in the system PATH.
func CheckToolAvailable(tool string) error {
	if _, err := execLookPath(tool); err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	return nil
}

// CheckRequiredTools verifies all required tools are available.
//
// The primary name is checked first, then each alternative in order.
// All missing required tools are reported in a single error:
//
//	missing required tools: python3 (Host interpreter), make (Native build tool)
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missingTools []string

	for _, req := range requirements {
		found := CheckToolAvailable(req.Name) == nil

		if !found {
			for _, alt := range req.Alternatives {
				if CheckToolAvailable(alt) == nil {
					found = true
					break
				}
			}
		}

		if !found && !req.Optional {
			if req.Purpose != "" {
				missingTools = append(missingTools, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
			} else {
				missingTools = append(missingTools, req.Name)
			}
		}
	}

	if len(missingTools) == 0 {
		return nil
	}

	if len(missingTools) == 1 {
		return fmt.Errorf("%s not found in PATH", missingTools[0])
	}

	return fmt.Errorf("missing required tools: %s", strings.Join(missingTools, ", "))
}
