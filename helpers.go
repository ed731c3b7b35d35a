package pyext

import (
	"fmt"
	"regexp"
	"strings"
)

// maxErrorOutputLines bounds how much captured output BuildError embeds.
const maxErrorOutputLines = 60

// MatchesPattern checks if a filename matches any of the given regex patterns.
//
// Invalid patterns are skipped.
//
// # Example
//
//	if MatchesPattern(filename, `CMakeLists\.txt$`) {
//	    // CMake project root
//	}
func MatchesPattern(filename string, patterns ...string) bool {
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, filename); matched {
			return true
		}
	}
	return false
}

// MatchesExtension checks case-insensitively if a filename has any of the
// given extensions (with or without leading dot).
func MatchesExtension(filename string, extensions ...string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// BuildError formats a build failure with its output for debugging.
//
// Only the last lines of output are kept; the full output has already been
// streamed to the caller's terminal.
//
// # Format
//
// With error and output:
//
//	cmake build failed for pyPROPOSAL (exit status 2): cmake: exit status 2
//
//	Build output:
//	make[2]: *** [CMakeFiles/PROPOSAL.dir/all] Error 1
//
// Without output only the first line is returned.
func BuildError(prefix string, output []string, err error) error {
	if err != nil {
		prefix = fmt.Sprintf("%s: %v", prefix, err)
	}

	output = trimOutput(output)
	if len(output) > maxErrorOutputLines {
		output = output[len(output)-maxErrorOutputLines:]
	}

	if outputStr := strings.Join(output, "\n"); outputStr != "" {
		return fmt.Errorf("%s\n\nBuild output:\n%s", prefix, outputStr)
	}

	return fmt.Errorf("%s", prefix)
}

func trimOutput(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	var result []string

	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}

	return result
}
