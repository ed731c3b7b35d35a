package pyext

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// InterpreterConfig is the part of the host interpreter's sysconfig the
// native build links and names against.
type InterpreterConfig struct {
	Executable string `json:"executable"`
	Version    string `json:"version"`
	LibDir     string `json:"libdir"`     // sysconfig LIBDIR
	InstSoname string `json:"instsoname"` // sysconfig INSTSONAME
	Include    string `json:"include"`    // sysconfig.get_path("include")
	ExtSuffix  string `json:"ext_suffix"` // sysconfig EXT_SUFFIX, e.g. ".cpython-312-x86_64-linux-gnu.so"
}

// LibraryPath is the interpreter's shared library, LIBDIR/INSTSONAME.
func (c *InterpreterConfig) LibraryPath() string {
	if c.LibDir == "" || c.InstSoname == "" {
		return ""
	}
	return filepath.Join(c.LibDir, c.InstSoname)
}

// suffix returns the extension-module filename suffix, ".so" when the
// interpreter did not report one.
func (c *InterpreterConfig) suffix() string {
	if c == nil || c.ExtSuffix == "" {
		return ".so"
	}
	return c.ExtSuffix
}

const sysconfigScript = `import json, sys, sysconfig
v = sysconfig.get_config_var
print(json.dumps({
    "executable": sys.executable,
    "version": sysconfig.get_python_version(),
    "libdir": v("LIBDIR") or "",
    "instsoname": v("INSTSONAME") or "",
    "include": sysconfig.get_path("include") or "",
    "ext_suffix": v("EXT_SUFFIX") or v("SO") or "",
}))`

// defaultPythons are tried in order when no interpreter path is configured.
var defaultPythons = []string{"python3", "python"}

// ProbeInterpreter runs the host interpreter once and reads its build
// configuration.
func ProbeInterpreter(ctx context.Context, runner Runner, pythonPath string) (*InterpreterConfig, error) {
	if runner == nil {
		runner = &ExecRunner{}
	}

	python, err := findPython(pythonPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInterpreterProbe, err)
	}

	res, err := runner.Run(ctx, Command{Name: python, Args: []string{"-c", sysconfigScript}})
	if err != nil {
		var output []string
		if res != nil {
			output = res.Output
		}
		return nil, fmt.Errorf("%w: %v", ErrInterpreterProbe, BuildError(python, output, err))
	}

	cfg, err := parseInterpreterConfig(res.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInterpreterProbe, python, err)
	}
	if cfg.Executable == "" {
		cfg.Executable = python
	}
	return cfg, nil
}

func findPython(pythonPath string) (string, error) {
	if pythonPath != "" {
		return pythonPath, nil
	}
	for _, name := range defaultPythons {
		if path, err := execLookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no python interpreter found in PATH (tried %s)", strings.Join(defaultPythons, ", "))
}

// parseInterpreterConfig takes the last line that parses as a JSON object,
// so interpreter banners or site-customize noise before it are ignored.
func parseInterpreterConfig(lines []string) (*InterpreterConfig, error) {
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var cfg InterpreterConfig
		if err := json.Unmarshal([]byte(line), &cfg); err != nil {
			continue
		}
		if cfg.Include == "" {
			return nil, fmt.Errorf("interpreter reported no include directory")
		}
		return &cfg, nil
	}
	return nil, fmt.Errorf("no sysconfig data in interpreter output")
}
