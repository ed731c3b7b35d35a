package pyext

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// BuilderFactory is the packaging tool's extension build step: it holds one
// Builder per Kind and runs every declared extension through it.
//
// # Usage
//
//	factory := pyext.NewBuilderFactory(nil)
//	results, err := factory.BuildAll(ctx, config, extensions)
//
// # Builder Selection
//
// BuilderFor is the only place a builder is chosen for an extension. A kind
// with no registered builder is an error.
//
// # Thread Safety
//
// Register all builders before use. BuildAll itself is sequential.
type BuilderFactory struct {
	builders map[Kind]Builder
}

// NewBuilderFactory creates a factory with the CMake builder and a
// DelegateBuilder for ordinary extensions. A nil delegate skips ordinary
// extensions.
func NewBuilderFactory(delegate *DelegateBuilder) *BuilderFactory {
	factory := &BuilderFactory{}

	factory.Register(&CMakeBuilder{})
	if delegate == nil {
		delegate = &DelegateBuilder{}
	}
	factory.Register(delegate)

	return factory
}

// Register adds a builder, replacing any earlier one for the same Kind.
//
// Not thread-safe. Register all builders before concurrent use.
func (f *BuilderFactory) Register(builder Builder) {
	if f.builders == nil {
		f.builders = make(map[Kind]Builder)
	}
	f.builders[builder.Kind()] = builder
}

// BuilderFor returns the builder registered for the extension's kind.
func (f *BuilderFactory) BuilderFor(ext *Extension) (Builder, error) {
	if builder, ok := f.builders[ext.Kind]; ok {
		return builder, nil
	}
	return nil, fmt.Errorf("%w for %s extension %s", ErrNoBuilder, ext.Kind, ext.Name)
}

// ListBuilders returns the registered builders ordered by Kind.
func (f *BuilderFactory) ListBuilders() []Builder {
	kinds := make([]int, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, int(k))
	}
	sort.Ints(kinds)

	builders := make([]Builder, 0, len(kinds))
	for _, k := range kinds {
		builders = append(builders, f.builders[Kind(k)])
	}
	return builders
}

// BuildAll builds every extension, one at a time.
//
// CMake extensions are built first, in declaration order, then the
// ordinary ones. The first failure stops the run: there is no partial
// success. The results of every extension attempted so far are returned
// alongside the error.
//
// # Context Cancellation
//
// The context is checked before each extension; a canceled context stops
// the run with a failed result carrying the context error.
func (f *BuilderFactory) BuildAll(ctx context.Context, config *BuildConfig, extensions []*Extension) ([]*BuildResult, error) {
	if len(extensions) == 0 {
		return nil, nil
	}

	if config == nil {
		config = &BuildConfig{}
	}
	cfg := *config
	cfg.Logger = config.logger().With("build_id", uuid.New().String())
	logger := cfg.Logger

	var results []*BuildResult
	for _, ext := range orderForBuild(extensions) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			results = append(results, &BuildResult{
				Extension: ext.Name,
				State:     StateFailed,
				Error:     ctxErr,
			})
			return results, ctxErr
		}

		builder, err := f.BuilderFor(ext)
		if err != nil {
			results = append(results, &BuildResult{
				Extension: ext.Name,
				State:     StateFailed,
				Error:     err,
			})
			return results, err
		}

		// One interpreter probe serves every CMake extension in the run.
		if ext.Kind == KindCMake && cfg.Interpreter == nil {
			interp, err := ProbeInterpreter(ctx, cfg.runner(), cfg.PythonPath)
			if err != nil {
				results = append(results, &BuildResult{
					Extension: ext.Name,
					State:     StateFailed,
					Error:     err,
				})
				return results, fmt.Errorf("build %s: %w", ext.Name, err)
			}
			logger.Debug("probed interpreter", "python", interp.Executable, "version", interp.Version)
			cfg.Interpreter = interp
		}

		logger.Info("building extension", "extension", ext.Name, "builder", builder.Name())
		result, err := builder.Build(ctx, &cfg, ext)
		if result == nil {
			result = &BuildResult{Extension: ext.Name, State: StateFailed, Error: err}
		}
		results = append(results, result)

		if err != nil {
			return results, fmt.Errorf("build %s: %w", ext.Name, err)
		}
	}

	return results, nil
}

// CleanAll runs Clean for every extension, stopping at the first error.
func (f *BuilderFactory) CleanAll(ctx context.Context, config *BuildConfig, extensions []*Extension) error {
	for _, ext := range extensions {
		builder, err := f.BuilderFor(ext)
		if err != nil {
			return err
		}
		if err := builder.Clean(ctx, config, ext); err != nil {
			return fmt.Errorf("clean %s: %w", ext.Name, err)
		}
	}
	return nil
}

// orderForBuild puts CMake extensions before ordinary ones, keeping the
// declared order within each group.
func orderForBuild(extensions []*Extension) []*Extension {
	ordered := make([]*Extension, 0, len(extensions))
	for _, ext := range extensions {
		if ext.Kind == KindCMake {
			ordered = append(ordered, ext)
		}
	}
	for _, ext := range extensions {
		if ext.Kind != KindCMake {
			ordered = append(ordered, ext)
		}
	}
	return ordered
}
