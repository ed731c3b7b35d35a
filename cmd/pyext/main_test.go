package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for value, want := range testCases {
		got, err := parseLogLevel(value)
		require.NoError(t, err, value)
		assert.Equal(t, want, got, value)
	}

	_, err := parseLogLevel("loud")
	assert.Error(t, err)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var levelVar slog.LevelVar
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	root := newRootCommand(logger, &levelVar)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildCommandOrdinaryOnly(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "pyext.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`name: plain
extensions:
  - name: plain
    kind: ordinary
    sources: [plain.c]
`), 0o600))

	out, err := runCLI(t, "--log-level", "debug", "build", "--manifest", manifest)
	require.NoError(t, err)
	assert.Empty(t, out, "skipped extensions produce no artifact")
}

func TestBuildCommandMissingManifest(t *testing.T) {
	_, err := runCLI(t, "build", "--manifest", filepath.Join(t.TempDir(), "pyext.yaml"))
	assert.ErrorContains(t, err, "manifest not found")
}

func TestRootRejectsUnknownLogLevel(t *testing.T) {
	_, err := runCLI(t, "--log-level", "loud", "clean", "--manifest", "unused.yaml")
	assert.ErrorContains(t, err, "unknown log level")
}

const fakeSysconfig = `{"executable": "/fake/python3", "version": "3.12", "include": "/fake/include/python3.12", "ext_suffix": ".so"}`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts stand in for cmake and python")
	}
}

func TestDoctorUsesCMakeOverride(t *testing.T) {
	skipWithoutShell(t)
	bin := t.TempDir()
	writeScript(t, bin, "mycmake", "echo 'cmake version 3.28.1'")
	writeScript(t, bin, "python3", "echo '"+fakeSysconfig+"'")
	t.Setenv("PATH", bin)
	t.Setenv("PYEXT_CMAKE", "mycmake")

	out, err := runCLI(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "CMake: tools ok\n")
	assert.Contains(t, out, "cmake: mycmake\n")
	assert.Contains(t, out, "python: /fake/python3 (3.12)\n")
}

func TestDoctorCMakeFlagAndPythonPath(t *testing.T) {
	skipWithoutShell(t)
	bin := t.TempDir()
	writeScript(t, bin, "mycmake", "echo 'cmake version 3.28.1'")
	python := writeScript(t, t.TempDir(), "python3.12", "echo '"+fakeSysconfig+"'")
	t.Setenv("PATH", bin)
	t.Setenv("PYEXT_CMAKE", "")

	// No python3 or python in PATH: the given interpreter is enough.
	out, err := runCLI(t, "doctor", "--cmake", "mycmake", "--python", python)
	require.NoError(t, err)
	assert.Contains(t, out, "cmake: mycmake\n")
	assert.Contains(t, out, "python include: /fake/include/python3.12\n")
}

func TestDoctorWithoutCMake(t *testing.T) {
	skipWithoutShell(t)
	bin := t.TempDir()
	writeScript(t, bin, "python3", "echo '"+fakeSysconfig+"'")
	t.Setenv("PATH", bin)
	t.Setenv("PYEXT_CMAKE", "")

	out, err := runCLI(t, "doctor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3.8")
	assert.NotContains(t, out, "tools ok")
}
