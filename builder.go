package pyext

import "context"

// Builder defines the interface that all extension builders must implement.
//
// Each builder handles exactly one Kind and is registered with a
// BuilderFactory, which routes every Extension of that kind to it.
//
// # Builder Lifecycle
//
//  1. Kind() - Factory reads this once at registration
//  2. Build() - Factory calls this for every extension of that kind
//  3. Clean() - Optional cleanup of build artifacts
//
// # Example Implementation
//
//	type PrebuiltBuilder struct{}
//
//	func (b *PrebuiltBuilder) Name() string { return "Prebuilt" }
//	func (b *PrebuiltBuilder) Kind() Kind   { return KindOrdinary }
//
//	func (b *PrebuiltBuilder) Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error) {
//	    return &BuildResult{Extension: ext.Name, State: StateDone, Success: true}, nil
//	}
//
//	func (b *PrebuiltBuilder) Clean(ctx context.Context, config *BuildConfig, ext *Extension) error {
//	    return nil
//	}
//
// # Thread Safety
//
// Builders should be stateless. CMake builds are serialized internally
// because they change the process working directory.
type Builder interface {
	// Name returns the human-readable name of this builder.
	//
	// This name is used in error messages and logs.
	Name() string

	// Kind returns the extension kind this builder handles.
	Kind() Kind

	// Build produces the extension module.
	//
	// Returns:
	//   - BuildResult with Success=true and Artifact set on success
	//   - BuildResult with Success=false and Error on failure, plus the error
	Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error)

	// Clean removes build artifacts. Builders that cannot clean return nil.
	Clean(ctx context.Context, config *BuildConfig, ext *Extension) error
}
