// Package pyext builds Python native extension modules whose compilation is
// owned by an external CMake project.
//
// Packaging tools expect to compile extension sources themselves. Projects
// with an existing multi-target CMake build instead want the packaging tool
// to hand the work over: configure the CMake project into a temporary
// directory, build it, and pick up the shared object it produced. This
// package is that hand-over.
//
// # Extension Kinds
//
// Every declared extension is an [Extension] tagged with a [Kind]:
//   - KindCMake - built by the CMake project rooted at a source directory
//   - KindOrdinary - left to the packaging tool's default compile path
//
// # Basic Usage
//
//	factory := pyext.NewBuilderFactory(nil)
//
//	config := &pyext.BuildConfig{
//	    BuildTemp: "build/temp",
//	    BuildLib:  "build/lib",
//	    Logger:    slog.Default(),
//	}
//
//	ext, err := pyext.NewCMakeExtension("pyPROPOSAL", ".")
//	results, err := factory.BuildAll(ctx, config, []*pyext.Extension{ext})
//
// # Architecture
//
//	BuilderFactory
//	├── CMakeBuilder (KindCMake)
//	│   ├── ToolResolver (cmake3, cmake)
//	│   └── configure → build → finalize
//	└── DelegateBuilder (KindOrdinary)
//
// A CMake build changes the process working directory into the temporary
// build directory for the duration of the configure and build phases. The
// previous directory is restored on every return path, and the change is
// serialized by a package-level lock.
//
// # Platform Support
//
// Linux and macOS. The build phase passes make-style "-j" flags through to
// the native tool, so Windows generators other than MinGW/Ninja are not
// supported.
package pyext
