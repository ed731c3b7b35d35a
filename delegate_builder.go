package pyext

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// DelegateFunc is the packaging tool's own compile path for one ordinary
// extension.
type DelegateFunc func(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error)

// DelegateBuilder hands KindOrdinary extensions back to the packaging tool.
//
// When Func is set it is called as is. Otherwise Command is run as a
// template, which lets the CLI stand in for a packaging tool:
//
//	DelegateBuilder{Command: []string{
//	    "cc", "-shared", "-fPIC", "-o", "{{output}}", "{{sources}}",
//	}}
//
// Placeholders:
//
//	{{name}}    - The dotted module name
//	{{output}}  - The absolute module path under BuildLib
//	{{sources}} - Expands to one argument per source file
//
// With neither set, ordinary extensions are skipped and reported as such.
type DelegateBuilder struct {
	Func    DelegateFunc
	Command []string
}

// Name returns the builder name
func (b *DelegateBuilder) Name() string {
	return "Default"
}

// Kind returns KindOrdinary
func (b *DelegateBuilder) Kind() Kind {
	return KindOrdinary
}

// Build passes the extension to Func, runs Command, or skips it.
func (b *DelegateBuilder) Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error) {
	logger := config.logger().With("component", "delegate", "extension", ext.Name)

	if b.Func != nil {
		return b.Func(ctx, config, ext)
	}

	result := &BuildResult{Extension: ext.Name, State: StateInit}
	if len(b.Command) == 0 {
		logger.Warn("no default build path configured, skipping ordinary extension")
		result.advance(StateDone)
		result.Success = true
		return result, nil
	}

	output := b.outputPath(config, ext)
	args := expandTemplate(b.Command, ext, output)
	if len(args) == 0 {
		err := fmt.Errorf("default build command for %s expands to nothing", ext.Name)
		result.fail(err)
		return result, err
	}

	err := runPhases(ctx, logger, result, []buildPhase{
		{
			name:    "directories",
			reaches: StateDirectoriesEnsured,
			run: func(context.Context) error {
				return ensureDirectories(ext, filepath.Dir(output))
			},
		},
		{
			name:    stepBuild,
			reaches: StateDone,
			run: func(ctx context.Context) error {
				cmd := Command{
					Name:   args[0],
					Args:   args[1:],
					Dir:    config.ProjectDir,
					Env:    config.Env,
					Stdout: config.Stdout,
					Stderr: config.Stderr,
				}
				result.Commands = append(result.Commands, cmd.Argv())
				logger.Info("running default build", "command", cmd.String())

				res, err := config.runner().Run(ctx, cmd)
				if res != nil {
					result.Output = append(result.Output, res.Output...)
				}
				if err != nil {
					return BuildError(fmt.Sprintf("default build failed for %s", ext.Name), result.Output, err)
				}
				return nil
			},
		},
	})
	if err != nil {
		logger.Error("extension build failed", "error", err)
		return result, err
	}

	result.Artifact = output
	result.Success = true
	return result, nil
}

// Clean does nothing; ordinary builds own their outputs.
func (b *DelegateBuilder) Clean(ctx context.Context, config *BuildConfig, ext *Extension) error {
	return nil
}

func (b *DelegateBuilder) outputPath(config *BuildConfig, ext *Extension) string {
	suffix := ".so"
	if config.Interpreter != nil {
		suffix = config.Interpreter.suffix()
	}
	base := config.ProjectDir
	if base == "" {
		base = "."
	}
	lib := absUnder(base, config.BuildLib, DefaultBuildLib)
	if abs, err := filepath.Abs(lib); err == nil {
		lib = abs
	}
	return filepath.Join(lib, extRelativePath(ext.Name, suffix))
}

func expandTemplate(template []string, ext *Extension, output string) []string {
	args := make([]string, 0, len(template))
	for _, arg := range template {
		if arg == "{{sources}}" {
			args = append(args, ext.Sources()...)
			continue
		}
		arg = strings.ReplaceAll(arg, "{{name}}", ext.Name)
		arg = strings.ReplaceAll(arg, "{{output}}", output)
		args = append(args, arg)
	}
	return args
}
