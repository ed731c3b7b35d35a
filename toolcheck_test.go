package pyext

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverPrefersFirstWorkingCandidate(t *testing.T) {
	runner := &fakeRunner{}
	resolver := NewToolResolver(runner, nil)

	tool, err := resolver.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "cmake3", tool)
	require.Len(t, runner.calls, 1, "no candidate after the first working one may be run")
	assert.Equal(t, []string{"cmake3", "--version"}, runner.calls[0].Argv())
}

func TestResolverFallsBackOnFailure(t *testing.T) {
	runner := &fakeRunner{handler: func(cmd Command) (*CommandResult, error) {
		if cmd.Name == "cmake3" {
			return failWith(127)
		}
		return &CommandResult{Output: []string{"cmake version 3.27.4"}}, nil
	}}
	resolver := NewToolResolver(runner, nil)

	tool, err := resolver.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "cmake", tool)
	require.Len(t, runner.calls, 2)
	assert.Equal(t, "cmake3", runner.calls[0].Name)
	assert.Equal(t, "cmake", runner.calls[1].Name)
}

func TestResolverTreatsMissingAndFailingAlike(t *testing.T) {
	runner := &fakeRunner{handler: func(cmd Command) (*CommandResult, error) {
		switch cmd.Name {
		case "cmake3":
			// never started
			return &CommandResult{ExitCode: -1}, errors.New("executable file not found in $PATH")
		case "cmake":
			return failWith(1, "cmake version 2.8.12")
		}
		return &CommandResult{}, nil
	}}
	resolver := NewToolResolver(runner, nil, "/opt/cmake/bin/cmake")

	tool, err := resolver.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "/opt/cmake/bin/cmake", tool)
	assert.Len(t, runner.calls, 1, "extra candidates are tried first")
}

func TestResolverToolNotFound(t *testing.T) {
	runner := &fakeRunner{handler: func(Command) (*CommandResult, error) {
		return failWith(1)
	}}
	resolver := NewToolResolver(runner, nil)

	tool, err := resolver.Resolve(context.Background())

	require.Error(t, err)
	assert.Empty(t, tool)
	assert.True(t, errors.Is(err, ErrToolNotFound))
	assert.Contains(t, err.Error(), MinimumCMakeVersion)

	var notFound *ToolNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"cmake3", "cmake"}, notFound.Candidates)
	assert.Len(t, runner.calls, 2)
}

func TestResolveCMake(t *testing.T) {
	runner := &fakeRunner{}
	tool, err := ResolveCMake(context.Background(), runner)
	require.NoError(t, err)
	assert.Equal(t, "cmake3", tool)
	assert.Len(t, runner.calls, 1)
}

func TestResolverDeduplicatesCandidates(t *testing.T) {
	resolver := NewToolResolver(&fakeRunner{}, nil, "cmake", "cmake3")
	assert.Equal(t, []string{"cmake", "cmake3"}, resolver.Candidates)
}

func TestResolverStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{handler: func(Command) (*CommandResult, error) {
		return nil, context.Canceled
	}}
	_, err := NewToolResolver(runner, nil).Resolve(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, runner.calls, 1)
}

func TestCheckRequiredTools(t *testing.T) {
	origLookPath := execLookPath
	defer func() { execLookPath = origLookPath }()

	available := map[string]bool{"python": true, "ninja": true}
	execLookPath = func(name string) (string, error) {
		if available[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	err := CheckRequiredTools([]ToolRequirement{
		{Name: "python3", Alternatives: []string{"python"}, Purpose: "Host interpreter"},
		{Name: "make", Alternatives: []string{"gmake", "ninja"}},
		{Name: "ccache", Optional: true},
	})
	assert.NoError(t, err)

	err = CheckRequiredTools([]ToolRequirement{
		{Name: "cmake3", Alternatives: []string{"cmake"}, Purpose: "CMake >= 3.8"},
	})
	require.Error(t, err)
	assert.Equal(t, "cmake3 (CMake >= 3.8) not found in PATH", err.Error())

	err = CheckRequiredTools([]ToolRequirement{
		{Name: "cmake3", Purpose: "CMake"},
		{Name: "gcc"},
	})
	require.Error(t, err)
	assert.Equal(t, "missing required tools: cmake3 (CMake), gcc", err.Error())
}

func TestCMakeBuilderCheckTools(t *testing.T) {
	origLookPath := execLookPath
	defer func() { execLookPath = origLookPath }()
	execLookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	b := &CMakeBuilder{Resolver: NewToolResolver(&fakeRunner{}, nil)}
	assert.NoError(t, b.CheckTools(context.Background()))

	b = &CMakeBuilder{Resolver: NewToolResolver(&fakeRunner{handler: func(Command) (*CommandResult, error) {
		return failWith(1)
	}}, nil)}
	assert.ErrorIs(t, b.CheckTools(context.Background()), ErrToolNotFound)
}

func TestCMakeBuilderCheckToolsForConfig(t *testing.T) {
	origLookPath := execLookPath
	defer func() { execLookPath = origLookPath }()
	execLookPath = func(name string) (string, error) { return "", errors.New("not found") }
	t.Setenv("PYEXT_CMAKE", "")

	runner := &fakeRunner{handler: func(cmd Command) (*CommandResult, error) {
		if cmd.Name == "/opt/cmake/bin/cmake" {
			return &CommandResult{Output: []string{"cmake version 3.28.1"}}, nil
		}
		return failWith(127)
	}}
	config := &BuildConfig{
		PythonPath: "/opt/python/bin/python3",
		CMakeTools: []string{"/opt/cmake/bin/cmake"},
		Runner:     runner,
	}

	tool, err := (&CMakeBuilder{}).CheckToolsFor(context.Background(), config)
	require.NoError(t, err, "a configured interpreter is not looked up in PATH")
	assert.Equal(t, "/opt/cmake/bin/cmake", tool)

	config.PythonPath = ""
	_, err = (&CMakeBuilder{}).CheckToolsFor(context.Background(), config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "python3 (Host interpreter) not found in PATH")
}

func TestCMakeBuilderResolverForUsesOverride(t *testing.T) {
	t.Setenv("PYEXT_CMAKE", "/opt/cmake-3.28/bin/cmake")

	resolver := (&CMakeBuilder{}).ResolverFor(&BuildConfig{CMakeTools: []string{"mycmake"}})
	assert.Equal(t, []string{"mycmake", "/opt/cmake-3.28/bin/cmake", "cmake3", "cmake"}, resolver.Candidates)

	resolver = (&CMakeBuilder{}).ResolverFor(nil)
	assert.Equal(t, []string{"/opt/cmake-3.28/bin/cmake", "cmake3", "cmake"}, resolver.Candidates)
}
