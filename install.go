package pyext

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var nativeLibraryExtensions = []string{".so", ".pyd", ".dll", ".dylib"}

// finalizeArtifact makes sure the built module sits at env.OutputPath and,
// for inplace builds, copies it to env.InplacePath. It returns the path of
// the module, or "" when the native build did not leave one anywhere it
// looks; that case is logged but is not an error, since the project may
// install the module by other means.
func finalizeArtifact(ext *Extension, env *BuildEnvironment, logger *slog.Logger) (string, error) {
	artifact := env.OutputPath

	if !isRegularFile(artifact) {
		found, err := findBuiltModule(ext.Name, artifactSearchDirs(env))
		if err != nil {
			return "", err
		}
		if found == "" {
			logger.Warn("built module not found", "expected", env.OutputPath)
			return "", nil
		}
		logger.Debug("moving built module into place", "from", found, "to", artifact)
		if err := copyFile(found, artifact); err != nil {
			return "", fmt.Errorf("place %s: %w", ext.Name, err)
		}
	}

	if env.InplacePath != "" && env.InplacePath != artifact {
		if err := copyFile(artifact, env.InplacePath); err != nil {
			return "", fmt.Errorf("copy %s inplace: %w", ext.Name, err)
		}
		logger.Debug("copied module inplace", "path", env.InplacePath)
	}

	return artifact, nil
}

// artifactSearchDirs lists where CMake projects commonly leave modules:
// the library output directory (with a per-config subdirectory for
// multi-config generators), then the build tree itself.
func artifactSearchDirs(env *BuildEnvironment) []string {
	return uniqueStrings([]string{
		env.OutputDir,
		filepath.Join(env.OutputDir, env.BuildType),
		env.TempDir,
		filepath.Join(env.TempDir, env.BuildType),
		filepath.Join(env.TempDir, "lib"),
	})
}

// findBuiltModule returns the first native library in dirs named after the
// last component of the dotted module name, e.g. "pyPROPOSAL.so",
// "pyPROPOSAL.cpython-312-x86_64-linux-gnu.so" or "libpyPROPOSAL.so".
func findBuiltModule(name string, dirs []string) (string, error) {
	parts := strings.Split(name, ".")
	base := parts[len(parts)-1]

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("search %s: %w", dir, err)
		}

		var matches []string
		for _, entry := range entries {
			if entry.IsDir() || !isNativeLibrary(entry.Name()) {
				continue
			}
			stem := strings.TrimPrefix(entry.Name(), "lib")
			if strings.HasPrefix(stem, base+".") {
				matches = append(matches, filepath.Join(dir, entry.Name()))
			}
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}

	return "", nil
}

func isNativeLibrary(path string) bool {
	return MatchesExtension(path, nativeLibraryExtensions...)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(destPath)
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return mkErr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
