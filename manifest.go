package pyext

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultManifest is the manifest file name looked up in the project root.
const DefaultManifest = "pyext.yaml"

// Manifest declares a project's extensions and build settings, standing in
// for the packaging tool's own extension declarations.
type Manifest struct {
	Name       string              `yaml:"name"`
	Version    string              `yaml:"version"` // Passed through, never interpreted
	Build      ManifestBuild       `yaml:"build"`
	Default    []string            `yaml:"default_command"`
	Extensions []ManifestExtension `yaml:"extensions"`

	dir string
}

// ManifestBuild holds the build settings of a manifest.
type ManifestBuild struct {
	Debug       bool              `yaml:"debug"`
	Inplace     bool              `yaml:"inplace"`
	BuildTemp   string            `yaml:"build_temp"`
	BuildLib    string            `yaml:"build_lib"`
	ParallelEnv string            `yaml:"parallel_env"`
	Python      string            `yaml:"python"`
	CMake       string            `yaml:"cmake"`
	Env         map[string]string `yaml:"env"`
}

// ManifestExtension is one extension entry.
type ManifestExtension struct {
	Name      string            `yaml:"name"`
	Kind      string            `yaml:"kind"` // "cmake" or "ordinary"; detected when empty
	SourceDir string            `yaml:"source_dir"`
	Generator string            `yaml:"generator"`
	Defines   map[string]string `yaml:"defines"`
	Args      []string          `yaml:"cmake_args"`
	Sources   []string          `yaml:"sources"`
}

// LoadManifest reads a manifest. ${VAR} references are expanded from the
// environment after .env and .env.local next to the manifest are loaded;
// neither file overrides variables that are already set.
func LoadManifest(path string) (*Manifest, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("manifest not found: %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	dir := filepath.Dir(abs)

	if err := loadEnvFiles(dir); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	m.dir = dir

	if m.Build.BuildTemp == "" {
		m.Build.BuildTemp = DefaultBuildTemp
	}
	if m.Build.BuildLib == "" {
		m.Build.BuildLib = DefaultBuildLib
	}
	if m.Build.ParallelEnv == "" {
		m.Build.ParallelEnv = DefaultParallelEnv
	}

	if len(m.Extensions) == 0 {
		return nil, fmt.Errorf("manifest %s declares no extensions", path)
	}
	return &m, nil
}

// loadEnvFiles loads .env then .env.local from dir, skipping missing files.
func loadEnvFiles(dir string) error {
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Dir returns the directory holding the manifest, the project root.
func (m *Manifest) Dir() string {
	return m.dir
}

// Targets converts the entries into extensions. Relative source
// directories are resolved against the manifest's directory.
func (m *Manifest) Targets() ([]*Extension, error) {
	seen := make(map[string]struct{}, len(m.Extensions))
	exts := make([]*Extension, 0, len(m.Extensions))

	for i, entry := range m.Extensions {
		if entry.Name == "" {
			return nil, fmt.Errorf("extension #%d has no name", i+1)
		}
		if _, dup := seen[entry.Name]; dup {
			return nil, fmt.Errorf("extension %s declared twice", entry.Name)
		}
		seen[entry.Name] = struct{}{}

		kind, err := m.kindOf(entry)
		if err != nil {
			return nil, fmt.Errorf("extension %s: %w", entry.Name, err)
		}

		var ext *Extension
		switch kind {
		case KindCMake:
			ext, err = NewCMakeExtension(entry.Name, m.resolve(entry.SourceDir))
			if err != nil {
				return nil, err
			}
			ext.CMake.Generator = entry.Generator
			ext.CMake.Defines = entry.Defines
			ext.CMake.Args = entry.Args
		default:
			sources := make([]string, 0, len(entry.Sources))
			for _, src := range entry.Sources {
				sources = append(sources, m.resolve(src))
			}
			ext, err = NewOrdinaryExtension(entry.Name, sources)
			if err != nil {
				return nil, err
			}
		}
		exts = append(exts, ext)
	}

	return exts, nil
}

// BuildConfig returns the manifest's build settings as a BuildConfig rooted
// at the manifest's directory.
func (m *Manifest) BuildConfig() *BuildConfig {
	var tools []string
	if m.Build.CMake != "" {
		tools = []string{m.Build.CMake}
	}
	return &BuildConfig{
		ProjectDir:  m.dir,
		BuildTemp:   m.Build.BuildTemp,
		BuildLib:    m.Build.BuildLib,
		PythonPath:  m.Build.Python,
		Debug:       m.Build.Debug,
		Inplace:     m.Build.Inplace,
		ParallelEnv: m.Build.ParallelEnv,
		CMakeTools:  tools,
		Env:         m.Build.Env,
	}
}

// kindOf returns the declared kind, or detects it: a source directory
// holding a CMakeLists.txt is a CMake extension, anything else ordinary.
func (m *Manifest) kindOf(entry ManifestExtension) (Kind, error) {
	if entry.Kind != "" {
		return ParseKind(entry.Kind)
	}
	if entry.SourceDir == "" {
		return KindOrdinary, nil
	}

	entries, err := os.ReadDir(m.resolve(entry.SourceDir))
	if err != nil {
		return 0, fmt.Errorf("read source dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && MatchesPattern(e.Name(), `^CMakeLists\.txt$`) {
			return KindCMake, nil
		}
	}
	return KindOrdinary, nil
}

func (m *Manifest) resolve(path string) string {
	if path == "" {
		return m.dir
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.dir, path)
}
