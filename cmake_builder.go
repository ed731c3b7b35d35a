package pyext

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CMake cache variables set by the configure phase.
const (
	varLibraryOutputDir = "CMAKE_LIBRARY_OUTPUT_DIRECTORY"
	varBuildType        = "CMAKE_BUILD_TYPE"
	varBuildTesting     = "BUILD_TESTING"
	varAddPython        = "ADD_PYTHON"
	varPythonLibrary    = "PYTHON_LIBRARY"
	varPythonIncludeDir = "PYTHON_INCLUDE_DIR"
)

// CMakeBuilder builds KindCMake extensions by configuring and building the
// extension's CMake project in a private temporary directory.
type CMakeBuilder struct {
	// Resolver overrides the per-build resolver derived from BuildConfig.
	Resolver *ToolResolver
}

// Name returns the builder name
func (b *CMakeBuilder) Name() string {
	return "CMake"
}

// Kind returns KindCMake
func (b *CMakeBuilder) Kind() Kind {
	return KindCMake
}

// RequiredTools returns the tools needed for CMake builds
func (b *CMakeBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{
			Name:         DefaultCMakeCandidates[0],
			Alternatives: DefaultCMakeCandidates[1:],
			Purpose:      "CMake >= " + MinimumCMakeVersion,
		},
		{
			Name:         defaultPythons[0],
			Alternatives: defaultPythons[1:],
			Purpose:      "Host interpreter",
		},
		{
			Name:         "make",
			Alternatives: []string{"gmake", "ninja"},
			Optional:     true,
			Purpose:      "Native build tool",
		},
	}
}

// CheckTools verifies that a working CMake and an interpreter are available.
// CMake is checked by running it, the rest by PATH lookup.
func (b *CMakeBuilder) CheckTools(ctx context.Context) error {
	_, err := b.CheckToolsFor(ctx, nil)
	return err
}

// CheckToolsFor is CheckTools with the candidates and interpreter a build
// with config would use. It returns the resolved CMake executable. The
// interpreter is not looked up in PATH when config names one.
func (b *CMakeBuilder) CheckToolsFor(ctx context.Context, config *BuildConfig) (string, error) {
	tool, err := b.ResolverFor(config).Resolve(ctx)
	if err != nil {
		return "", err
	}

	pythonGiven := config != nil && (config.PythonPath != "" || config.Interpreter != nil)
	var reqs []ToolRequirement
	for _, req := range b.RequiredTools()[1:] {
		if req.Name == defaultPythons[0] && pythonGiven {
			continue
		}
		reqs = append(reqs, req)
	}
	return tool, CheckRequiredTools(reqs)
}

// Build probes the interpreter (unless config carries one), derives the
// build environment and runs ConfigureAndBuild.
func (b *CMakeBuilder) Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error) {
	result := &BuildResult{Extension: ext.Name, State: StateInit}

	if ext.Kind != KindCMake || ext.CMake == nil {
		err := fmt.Errorf("%s builder cannot build %s extension %s", b.Name(), ext.Kind, ext.Name)
		result.fail(err)
		return result, err
	}

	interp := config.Interpreter
	if interp == nil {
		probed, err := ProbeInterpreter(ctx, config.runner(), config.PythonPath)
		if err != nil {
			result.fail(err)
			return result, err
		}
		interp = probed
	}

	env, err := NewBuildEnvironment(config, ext, interp)
	if err != nil {
		result.fail(err)
		return result, err
	}

	return b.ConfigureAndBuild(ctx, config, ext, env)
}

// ConfigureAndBuild runs the configure and build phases for one extension.
//
// # Process Flow
//
//  1. Create the temporary and output directories
//  2. Change into the temporary directory
//  3. Resolve a CMake executable
//  4. Configure the extension's source directory
//  5. Build with the requested configuration and parallelism
//  6. Restore the previous working directory
//  7. Put the module where the packaging tool expects it
//
// Step 6 runs on every path out of steps 3-5. Failures are not retried.
func (b *CMakeBuilder) ConfigureAndBuild(ctx context.Context, config *BuildConfig, ext *Extension, env *BuildEnvironment) (*BuildResult, error) {
	result := &BuildResult{Extension: ext.Name, State: StateInit}
	logger := config.logger().With("component", "cmake", "extension", ext.Name)

	var tool string

	err := runPhases(ctx, logger, result, []buildPhase{{
		name:    "directories",
		reaches: StateDirectoriesEnsured,
		run: func(context.Context) error {
			return ensureDirectories(ext, env.TempDir, env.OutputDir)
		},
	}})

	if err == nil {
		err = withWorkingDir(env.TempDir, func() error {
			return runPhases(ctx, logger, result, []buildPhase{
				{
					name:    "resolve",
					reaches: StateToolResolved,
					run: func(ctx context.Context) error {
						resolved, err := b.ResolverFor(config).Resolve(ctx)
						if err != nil {
							return err
						}
						tool = resolved
						logger.Debug("using cmake", "tool", tool)
						return nil
					},
				},
				{
					name:    stepConfigure,
					reaches: StateConfigured,
					run: func(ctx context.Context) error {
						return b.run(ctx, config, env, result, logger, stepConfigure, ext, tool, configureArgs(ext, env))
					},
				},
				{
					name:    stepBuild,
					reaches: StateBuilt,
					run: func(ctx context.Context) error {
						if config.CleanFirst {
							b.clean(ctx, config, env, result, logger, tool)
						}
						return b.run(ctx, config, env, result, logger, stepBuild, ext, tool, buildArgs(env, logger))
					},
				},
			})
		})
	}

	if err == nil {
		err = runPhases(ctx, logger, result, []buildPhase{{
			name:    "finalize",
			reaches: StateDone,
			run: func(context.Context) error {
				artifact, ferr := finalizeArtifact(ext, env, logger)
				result.Artifact = artifact
				return ferr
			},
		}})
	}

	if err != nil {
		if result.State != StateFailed {
			result.fail(err)
		}
		logger.Error("extension build failed", "state", result.LastGood.String(), "error", err)
		return result, err
	}

	result.Success = true
	logger.Info("extension built", "artifact", result.Artifact, "build_type", env.BuildType)
	return result, nil
}

// Clean runs the project's clean target in the extension's temporary
// directory. Nothing is done when the directory was never configured.
func (b *CMakeBuilder) Clean(ctx context.Context, config *BuildConfig, ext *Extension) error {
	env, err := NewBuildEnvironment(config, ext, &InterpreterConfig{})
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(env.TempDir, "CMakeCache.txt")); os.IsNotExist(err) {
		return nil
	}

	tool, err := b.ResolverFor(config).Resolve(ctx)
	if err != nil {
		return err
	}

	cmd := Command{
		Name:   tool,
		Args:   []string{"--build", env.TempDir, "--target", "clean"},
		Dir:    env.TempDir,
		Env:    config.Env,
		Stdout: config.Stdout,
		Stderr: config.Stderr,
	}
	res, err := config.runner().Run(ctx, cmd)
	if err != nil {
		var output []string
		if res != nil {
			output = res.Output
		}
		return BuildError("cmake clean failed for "+ext.Name, output, err)
	}
	return nil
}

// ResolverFor returns the resolver a build with config uses: config's
// CMakeTools and PYEXT_CMAKE are tried before cmake3 and cmake.
func (b *CMakeBuilder) ResolverFor(config *BuildConfig) *ToolResolver {
	if b.Resolver != nil {
		return b.Resolver
	}
	if config == nil {
		return NewToolResolver(nil, nil, cmakeOverride()...)
	}
	extra := append(append([]string{}, config.CMakeTools...), cmakeOverride()...)
	return NewToolResolver(config.runner(), config.logger(), extra...)
}

// cmakeOverride returns PYEXT_CMAKE as a candidate list, if set.
func cmakeOverride() []string {
	if v := strings.TrimSpace(os.Getenv("PYEXT_CMAKE")); v != "" {
		return []string{v}
	}
	return nil
}

// run executes one phase subprocess in the current working directory.
func (b *CMakeBuilder) run(ctx context.Context, config *BuildConfig, env *BuildEnvironment, result *BuildResult, logger *slog.Logger, step string, ext *Extension, tool string, args []string) error {
	cmd := Command{
		Name:   tool,
		Args:   args,
		Env:    env.Env,
		Stdout: config.Stdout,
		Stderr: config.Stderr,
	}
	result.Commands = append(result.Commands, cmd.Argv())
	logger.Info("running cmake", "step", step, "command", cmd.String())

	if config.Verbose {
		result.Output = append(result.Output,
			fmt.Sprintf("Running: %s", cmd.String()),
			fmt.Sprintf("Working directory: %s", env.TempDir))
	}

	res, err := config.runner().Run(ctx, cmd)
	var output []string
	exit := -1
	if res != nil {
		output = res.Output
		exit = res.ExitCode
	}
	result.Output = append(result.Output, output...)

	if err != nil {
		return &StepError{
			Step:      step,
			Extension: ext.Name,
			ExitCode:  exit,
			Output:    output,
			Err:       err,
		}
	}
	return nil
}

// clean runs the clean target before a build. Failures are ignored; a
// fresh build directory has nothing to clean.
func (b *CMakeBuilder) clean(ctx context.Context, config *BuildConfig, env *BuildEnvironment, result *BuildResult, logger *slog.Logger, tool string) {
	cmd := Command{Name: tool, Args: []string{"--build", ".", "--target", "clean"}, Env: env.Env}
	result.Commands = append(result.Commands, cmd.Argv())
	res, err := config.runner().Run(ctx, cmd)
	if res != nil {
		result.Output = append(result.Output, res.Output...)
	}
	if err != nil {
		logger.Debug("clean target failed", "error", err)
	}
}

func ensureDirectories(ext *Extension, dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &StepError{Step: stepDirectories, Extension: ext.Name, Err: err}
		}
	}
	return nil
}

func configureArgs(ext *Extension, env *BuildEnvironment) []string {
	args := []string{
		ext.CMake.SourceDir,
		define(varLibraryOutputDir, env.OutputDir),
		define(varBuildType, env.BuildType),
		define(varBuildTesting, "OFF"),
		define(varAddPython, "ON"),
		define(varPythonLibrary, env.PythonLibrary),
		define(varPythonIncludeDir, env.PythonInclude),
	}

	if ext.CMake.Generator != "" {
		args = append(args, "-G", ext.CMake.Generator)
	}

	keys := make([]string, 0, len(ext.CMake.Defines))
	for k := range ext.CMake.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, define(k, ext.CMake.Defines[k]))
	}

	return append(args, ext.CMake.Args...)
}

func buildArgs(env *BuildEnvironment, logger *slog.Logger) []string {
	jobs, ok := ParallelismArg(env.Parallelism)
	if !ok {
		logger.Warn("ignoring malformed parallelism hint", "value", env.Parallelism)
	}
	return []string{"--build", ".", "--config", env.BuildType, "--", jobs}
}

func define(key, value string) string {
	return "-D" + key + "=" + value
}
