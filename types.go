package pyext

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// Kind identifies how an extension is built.
type Kind int

const (
	// KindOrdinary extensions are compiled by the packaging tool itself.
	KindOrdinary Kind = iota
	// KindCMake extensions are produced by an external CMake project.
	KindCMake
)

func (k Kind) String() string {
	switch k {
	case KindCMake:
		return "cmake"
	case KindOrdinary:
		return "ordinary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a manifest kind name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cmake":
		return KindCMake, nil
	case "ordinary", "default":
		return KindOrdinary, nil
	default:
		return 0, fmt.Errorf("unknown extension kind %q", name)
	}
}

// Extension is one declared extension module.
//
// Exactly one of CMake and Ordinary is set, matching Kind. Extensions are
// built by NewCMakeExtension and NewOrdinaryExtension and are not modified
// afterwards.
type Extension struct {
	Name string // Dotted module name (e.g. "pyPROPOSAL", "pkg._native")
	Kind Kind

	CMake    *CMakeTarget
	Ordinary *OrdinaryTarget
}

// CMakeTarget carries the fields only CMake extensions have.
type CMakeTarget struct {
	SourceDir string            // Absolute path of the CMake project root
	Generator string            // Optional -G value
	Defines   map[string]string // Extra -D definitions
	Args      []string          // Extra configure arguments
}

// OrdinaryTarget carries the fields only ordinary extensions have.
type OrdinaryTarget struct {
	Sources []string
}

// NewCMakeExtension declares a CMake-backed extension. sourceDir is made
// absolute against the current working directory.
func NewCMakeExtension(name, sourceDir string) (*Extension, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("extension name is required")
	}
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source dir for %s: %w", name, err)
	}
	return &Extension{
		Name:  name,
		Kind:  KindCMake,
		CMake: &CMakeTarget{SourceDir: abs},
	}, nil
}

// NewOrdinaryExtension declares an extension the packaging tool compiles
// from sources.
func NewOrdinaryExtension(name string, sources []string) (*Extension, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("extension name is required")
	}
	return &Extension{
		Name:     name,
		Kind:     KindOrdinary,
		Ordinary: &OrdinaryTarget{Sources: append([]string(nil), sources...)},
	}, nil
}

// Sources returns the sources the packaging tool should compile. CMake
// extensions always report none; the native build enumerates its own.
func (e *Extension) Sources() []string {
	if e.Kind != KindOrdinary || e.Ordinary == nil {
		return []string{}
	}
	return append([]string(nil), e.Ordinary.Sources...)
}

// BuildConfig is the packaging tool's build configuration shared by every
// extension in one invocation.
//
// Paths:
//   - BuildTemp: root for per-extension temporary build directories
//   - BuildLib: root the final extension modules are placed under
//   - ProjectDir: project root used for inplace builds (defaults to cwd)
//
// Interpreter:
//   - PythonPath: interpreter to probe (python3, then python, when empty)
//   - Interpreter: pre-probed configuration, skips probing when set
//
// Build behavior:
//   - Debug: selects the Debug build type instead of Release
//   - Inplace: also copy the module next to its package sources
//   - ParallelEnv: variable holding the parallelism hint
//   - CleanFirst: run the clean target before building
type BuildConfig struct {
	// Paths
	BuildTemp  string
	BuildLib   string
	ProjectDir string

	// Interpreter
	PythonPath  string
	Interpreter *InterpreterConfig

	// Build options
	Debug       bool
	Inplace     bool
	Verbose     bool
	CleanFirst  bool
	ParallelEnv string
	CMakeTools  []string // Extra tool candidates tried before cmake3/cmake

	// Subprocess environment and streams
	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
	Runner Runner
}

func (c *BuildConfig) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

func (c *BuildConfig) runner() Runner {
	if c == nil || c.Runner == nil {
		return &ExecRunner{}
	}
	return c.Runner
}

// BuildState is a step of the per-extension build.
type BuildState int

const (
	StateInit BuildState = iota
	StateDirectoriesEnsured
	StateToolResolved
	StateConfigured
	StateBuilt
	StateDone
	StateFailed
)

func (s BuildState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDirectoriesEnsured:
		return "directories-ensured"
	case StateToolResolved:
		return "tool-resolved"
	case StateConfigured:
		return "configured"
	case StateBuilt:
		return "built"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BuildResult contains the output and status of one extension build.
//
// State is the last state reached before success or failure; LastGood is
// kept separately so a failed result still tells how far the build got.
type BuildResult struct {
	Extension string     // Module name
	State     BuildState // Final state (StateDone or StateFailed)
	LastGood  BuildState // Last state reached successfully
	Success   bool
	Output    []string   // Captured lines from the subprocesses
	Commands  [][]string // Argument vectors that were run, in order
	Artifact  string     // Path of the produced module, when known
	Error     error
}

func (r *BuildResult) advance(s BuildState) {
	r.State = s
	r.LastGood = s
}

func (r *BuildResult) fail(err error) {
	r.State = StateFailed
	r.Success = false
	r.Error = err
}
