package pyext

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInterpreter() *InterpreterConfig {
	return &InterpreterConfig{
		Executable: "/usr/bin/python3",
		Version:    "3.12",
		LibDir:     "/usr/lib/x86_64-linux-gnu",
		InstSoname: "libpython3.12.so.1.0",
		Include:    "/usr/include/python3.12",
		ExtSuffix:  ".cpython-312-x86_64-linux-gnu.so",
	}
}

func TestParallelismArg(t *testing.T) {
	testCases := []struct {
		hint   string
		wantJ  string
		wantOK bool
	}{
		{"", "-j", true},
		{"   ", "-j", true},
		{"4", "-j4", true},
		{" 16 ", "-j16", true},
		{"0", "-j", true},
		{"-3", "-j", false},
		{"four", "-j", false},
		{"4; rm -rf /", "-j", false},
	}

	for _, tc := range testCases {
		t.Run(tc.hint, func(t *testing.T) {
			arg, ok := ParallelismArg(tc.hint)
			assert.Equal(t, tc.wantJ, arg)
			assert.Equal(t, tc.wantOK, ok)
		})
	}
}

func TestNewBuildEnvironmentRelease(t *testing.T) {
	t.Setenv(DefaultParallelEnv, "")
	project := t.TempDir()

	ext, err := NewCMakeExtension("pyXYZ", "/src/xyz")
	require.NoError(t, err)

	env, err := NewBuildEnvironment(&BuildConfig{ProjectDir: project}, ext, testInterpreter())
	require.NoError(t, err)

	assert.Equal(t, BuildTypeRelease, env.BuildType)
	assert.Equal(t, filepath.Join(project, "build", "temp", "pyXYZ"), env.TempDir)
	assert.Equal(t, filepath.Join(project, "build", "lib", "pyXYZ.cpython-312-x86_64-linux-gnu.so"), env.OutputPath)
	assert.Equal(t, filepath.Join(project, "build", "lib"), env.OutputDir)
	assert.Equal(t, "/usr/lib/x86_64-linux-gnu/libpython3.12.so.1.0", env.PythonLibrary)
	assert.Equal(t, "/usr/include/python3.12", env.PythonInclude)
	assert.Empty(t, env.Parallelism)
	assert.Empty(t, env.InplacePath)
}

func TestNewBuildEnvironmentDebugDottedInplace(t *testing.T) {
	project := t.TempDir()
	lib := filepath.Join(t.TempDir(), "out")

	ext, err := NewCMakeExtension("proposal._native", project)
	require.NoError(t, err)

	config := &BuildConfig{
		ProjectDir:  project,
		BuildTemp:   "tmp",
		BuildLib:    lib,
		Debug:       true,
		Inplace:     true,
		ParallelEnv: "PROPOSAL_BUILD_CORES",
		Env:         map[string]string{"PROPOSAL_BUILD_CORES": "8"},
	}
	env, err := NewBuildEnvironment(config, ext, &InterpreterConfig{Include: "/inc"})
	require.NoError(t, err)

	assert.Equal(t, BuildTypeDebug, env.BuildType)
	assert.Equal(t, filepath.Join(project, "tmp", "proposal._native"), env.TempDir)
	assert.Equal(t, filepath.Join(lib, "proposal", "_native.so"), env.OutputPath)
	assert.Equal(t, filepath.Join(lib, "proposal"), env.OutputDir)
	assert.Equal(t, filepath.Join(project, "proposal", "_native.so"), env.InplacePath)
	assert.Equal(t, "8", env.Parallelism)
	assert.Empty(t, env.PythonLibrary, "no INSTSONAME means no library path")
}

func TestParallelismHintFromProcessEnv(t *testing.T) {
	t.Setenv("PROPOSAL_BUILD_CORES", "6")

	hint := parallelismHint(&BuildConfig{ParallelEnv: "PROPOSAL_BUILD_CORES"})
	assert.Equal(t, "6", hint)

	t.Setenv(DefaultParallelEnv, "2")
	assert.Equal(t, "2", parallelismHint(&BuildConfig{}))
}

func TestNewBuildEnvironmentRequiresInterpreter(t *testing.T) {
	ext, err := NewCMakeExtension("pyXYZ", "/src/xyz")
	require.NoError(t, err)

	_, err = NewBuildEnvironment(&BuildConfig{}, ext, nil)
	assert.ErrorIs(t, err, ErrInterpreterProbe)
}

func TestSeparateTempDirsPerExtension(t *testing.T) {
	project := t.TempDir()
	a, _ := NewCMakeExtension("pyA", "/src/a")
	b, _ := NewCMakeExtension("pyB", "/src/b")

	config := &BuildConfig{ProjectDir: project}
	envA, err := NewBuildEnvironment(config, a, testInterpreter())
	require.NoError(t, err)
	envB, err := NewBuildEnvironment(config, b, testInterpreter())
	require.NoError(t, err)

	assert.NotEqual(t, envA.TempDir, envB.TempDir)
}
