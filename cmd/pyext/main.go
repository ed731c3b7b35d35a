package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	pyext "github.com/contriboss/python-extension-go"
)

const defaultLogLevel = "info"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levelVar}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(logger, &levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger, levelVar *slog.LevelVar) *cobra.Command {
	logLevel := defaultLogLevel

	root := &cobra.Command{
		Use:           "pyext",
		Short:         "Build CMake-backed Python extension modules",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		levelVar.Set(level)
		return nil
	}

	root.AddCommand(
		newBuildCommand(logger),
		newCleanCommand(logger),
		newDoctorCommand(logger),
	)
	return root
}

// buildFlags are the flags shared by build and clean. Each one overrides
// the manifest only when given.
type buildFlags struct {
	manifest   string
	debug      bool
	inplace    bool
	buildTemp  string
	buildLib   string
	python     string
	cmake      string
	cleanFirst bool
	verbose    bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.manifest, "manifest", "m", pyext.DefaultManifest, "Manifest declaring the extensions")
	cmd.Flags().BoolVarP(&f.debug, "debug", "g", false, "Build with the Debug build type")
	cmd.Flags().BoolVarP(&f.inplace, "inplace", "i", false, "Also copy modules next to their package sources")
	cmd.Flags().StringVarP(&f.buildTemp, "build-temp", "t", "", "Directory for temporary build files")
	cmd.Flags().StringVarP(&f.buildLib, "build-lib", "b", "", "Directory the built modules are placed under")
	cmd.Flags().StringVar(&f.python, "python", "", "Interpreter to build against")
	cmd.Flags().StringVar(&f.cmake, "cmake", "", "CMake executable tried before cmake3 and cmake")
	cmd.Flags().BoolVar(&f.cleanFirst, "clean-first", false, "Run the clean target before building")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Record commands and working directories in the build output")
}

func (f *buildFlags) load(cmd *cobra.Command, logger *slog.Logger) (*pyext.Manifest, *pyext.BuildConfig, []*pyext.Extension, error) {
	m, err := pyext.LoadManifest(f.manifest)
	if err != nil {
		return nil, nil, nil, err
	}
	exts, err := m.Targets()
	if err != nil {
		return nil, nil, nil, err
	}

	config := m.BuildConfig()
	flags := cmd.Flags()
	if flags.Changed("debug") {
		config.Debug = f.debug
	}
	if flags.Changed("inplace") {
		config.Inplace = f.inplace
	}
	if f.buildTemp != "" {
		config.BuildTemp = f.buildTemp
	}
	if f.buildLib != "" {
		config.BuildLib = f.buildLib
	}
	if f.python != "" {
		config.PythonPath = f.python
	}
	if f.cmake != "" {
		config.CMakeTools = append([]string{f.cmake}, config.CMakeTools...)
	}
	config.CleanFirst = f.cleanFirst
	config.Verbose = f.verbose
	config.Stdout = cmd.OutOrStdout()
	config.Stderr = cmd.ErrOrStderr()
	config.Logger = logger

	return m, config, exts, nil
}

func newBuildCommand(logger *slog.Logger) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Args:  cobra.NoArgs,
		Short: "Configure and build every extension in the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, config, exts, err := flags.load(cmd, logger)
			if err != nil {
				return err
			}

			cmdLogger := logger.With("command", "build", "project", m.Name, "version", m.Version)
			config.Logger = cmdLogger
			cmdLogger.Info("starting build", "extensions", len(exts), "debug", config.Debug)

			factory := pyext.NewBuilderFactory(&pyext.DelegateBuilder{Command: m.Default})
			results, err := factory.BuildAll(cmd.Context(), config, exts)
			if err != nil {
				return err
			}

			for _, r := range results {
				if r.Artifact != "" {
					fmt.Fprintln(cmd.OutOrStdout(), r.Artifact)
				}
			}
			cmdLogger.Info("build completed", "extensions", len(results))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newCleanCommand(logger *slog.Logger) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "clean",
		Args:  cobra.NoArgs,
		Short: "Run the clean target of every configured CMake extension",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, config, exts, err := flags.load(cmd, logger)
			if err != nil {
				return err
			}
			config.Logger = logger.With("command", "clean")

			factory := pyext.NewBuilderFactory(nil)
			return factory.CleanAll(cmd.Context(), config, exts)
		},
	}

	flags.register(cmd)
	return cmd
}

func newDoctorCommand(logger *slog.Logger) *cobra.Command {
	var python, cmake string

	cmd := &cobra.Command{
		Use:   "doctor",
		Args:  cobra.NoArgs,
		Short: "Check that CMake and the interpreter can be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "doctor")
			out := cmd.OutOrStdout()

			config := &pyext.BuildConfig{PythonPath: python, Logger: cmdLogger}
			if cmake != "" {
				config.CMakeTools = []string{cmake}
			}

			builder := &pyext.CMakeBuilder{}
			tool, err := builder.CheckToolsFor(cmd.Context(), config)
			if err != nil {
				return fmt.Errorf("%s builder: %w", builder.Name(), err)
			}
			fmt.Fprintf(out, "%s: tools ok\n", builder.Name())
			fmt.Fprintf(out, "cmake: %s\n", tool)

			interp, err := pyext.ProbeInterpreter(cmd.Context(), nil, python)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "python: %s (%s)\n", interp.Executable, interp.Version)
			fmt.Fprintf(out, "python library: %s\n", interp.LibraryPath())
			fmt.Fprintf(out, "python include: %s\n", interp.Include)
			fmt.Fprintf(out, "module suffix: %s\n", interp.ExtSuffix)
			return nil
		},
	}

	cmd.Flags().StringVar(&python, "python", "", "Interpreter to probe")
	cmd.Flags().StringVar(&cmake, "cmake", "", "CMake executable tried before cmake3 and cmake")
	return cmd
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}
