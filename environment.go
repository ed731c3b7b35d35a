package pyext

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultParallelEnv names the variable read for the build parallelism
// hint when BuildConfig.ParallelEnv is empty.
const DefaultParallelEnv = "CMAKE_BUILD_CORES"

// Default roots, relative to the project directory.
const (
	DefaultBuildTemp = "build/temp"
	DefaultBuildLib  = "build/lib"
)

// Build types passed to CMAKE_BUILD_TYPE and --config.
const (
	BuildTypeDebug   = "Debug"
	BuildTypeRelease = "Release"
)

// BuildEnvironment holds the paths and settings one CMake extension build
// runs with. It is derived from the BuildConfig and never stored.
type BuildEnvironment struct {
	BuildType     string
	TempDir       string // Absolute, owned by this extension only
	OutputPath    string // Absolute path the module is expected at
	OutputDir     string // Absolute parent of OutputPath
	InplacePath   string // Absolute copy destination for inplace builds, or ""
	PythonLibrary string
	PythonInclude string
	Parallelism   string // Raw hint, "" when unset
	Env           map[string]string
}

// NewBuildEnvironment derives the environment for ext.
func NewBuildEnvironment(config *BuildConfig, ext *Extension, interp *InterpreterConfig) (*BuildEnvironment, error) {
	if interp == nil {
		return nil, fmt.Errorf("%w: no interpreter configuration for %s", ErrInterpreterProbe, ext.Name)
	}

	projectDir := config.ProjectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		projectDir = wd
	}
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}

	buildTemp := absUnder(projectDir, config.BuildTemp, DefaultBuildTemp)
	buildLib := absUnder(projectDir, config.BuildLib, DefaultBuildLib)

	rel := extRelativePath(ext.Name, interp.suffix())
	env := &BuildEnvironment{
		BuildType:     buildType(config.Debug),
		TempDir:       filepath.Join(buildTemp, ext.Name),
		OutputPath:    filepath.Join(buildLib, rel),
		PythonLibrary: interp.LibraryPath(),
		PythonInclude: interp.Include,
		Parallelism:   parallelismHint(config),
		Env:           config.Env,
	}
	env.OutputDir = filepath.Dir(env.OutputPath)
	if config.Inplace {
		env.InplacePath = filepath.Join(projectDir, rel)
	}

	return env, nil
}

func buildType(debug bool) string {
	if debug {
		return BuildTypeDebug
	}
	return BuildTypeRelease
}

// extRelativePath maps "pkg.sub.mod" to "pkg/sub/mod<suffix>".
func extRelativePath(name, suffix string) string {
	parts := strings.Split(name, ".")
	parts[len(parts)-1] += suffix
	return filepath.Join(parts...)
}

func absUnder(base, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// parallelismHint reads the hint from BuildConfig.Env first, then the
// process environment.
func parallelismHint(config *BuildConfig) string {
	name := config.ParallelEnv
	if name == "" {
		name = DefaultParallelEnv
	}
	if v, ok := config.Env[name]; ok {
		return v
	}
	return os.Getenv(name)
}

// ParallelismArg turns the hint into the flag handed to the native build
// tool. A positive integer N gives "-jN". Anything else (unset, empty, zero
// or not a number) gives the bare "-j", which make reads as "no limit";
// ok is false only for a non-empty hint that was not used.
func ParallelismArg(hint string) (arg string, ok bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "-j", true
	}
	n, err := strconv.Atoi(hint)
	if err != nil || n < 0 {
		return "-j", false
	}
	if n == 0 {
		return "-j", true
	}
	return "-j" + strconv.Itoa(n), true
}
