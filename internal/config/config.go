package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// FileConfig is the on-disk YAML configuration shape. Nil fields defer to the
// next configuration layer and finally to Default.
type FileConfig struct {
	Secrets  *SecretsConfig  `yaml:"secrets,omitempty"`
	Policies *PoliciesConfig `yaml:"policies,omitempty"`
	General  *GeneralConfig  `yaml:"general,omitempty"`
}

// SecretsConfig controls the secrets detector.
type SecretsConfig struct {
	Enabled          *bool    `yaml:"enabled,omitempty"`
	EntropyThreshold *float64 `yaml:"entropy_threshold,omitempty"`
	MinEntropyLength *int     `yaml:"min_entropy_length,omitempty"`
	EntropySeverity  *string  `yaml:"entropy_severity,omitempty"`
	// DedupeSameSpan keeps one regex finding per identical match span.
	DedupeSameSpan *bool   `yaml:"dedupe_same_span,omitempty"`
	RulesFile      *string `yaml:"rules_file,omitempty"`
}

// PoliciesConfig controls the policy engine.
type PoliciesConfig struct {
	Enabled   *bool   `yaml:"enabled,omitempty"`
	RulesFile *string `yaml:"rules_file,omitempty"`
	// DisallowModules replaces the module list of the built-in blacklist rule.
	DisallowModules []string `yaml:"disallow_modules,omitempty"`
	// RequireVault toggles the built-in vault rules.
	RequireVault *bool `yaml:"require_vault,omitempty"`
}

// GeneralConfig holds walker, cache and reporting settings.
type GeneralConfig struct {
	MaxDepth        *int      `yaml:"max_depth,omitempty"`
	MaxFileSize     *ByteSize `yaml:"max_file_size,omitempty"`
	ParallelJobs    *int      `yaml:"parallel_jobs,omitempty"`
	CacheEnabled    *bool     `yaml:"cache_enabled,omitempty"`
	CacheDir        *string   `yaml:"cache_dir,omitempty"`
	ExcludePaths    []string  `yaml:"exclude_paths,omitempty"`
	ExcludePatterns []string  `yaml:"exclude_patterns,omitempty"`
	FailOn          *string   `yaml:"fail_on,omitempty"`
	NoColor         *bool     `yaml:"no_color,omitempty"`
}

// ByteSize is a size in bytes that accepts plain integers or human readable
// strings such as 10MiB or 512k.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: size must be a scalar", ErrInvalidConfig)
	}
	if n.Tag == "!!int" {
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return fmt.Errorf("%w: size %q: %v", ErrInvalidConfig, n.Value, err)
		}
		*b = ByteSize(v)
		return nil
	}
	v, err := units.RAMInBytes(n.Value)
	if err != nil {
		return fmt.Errorf("%w: size %q: %v", ErrInvalidConfig, n.Value, err)
	}
	*b = ByteSize(v)
	return nil
}

// MarshalYAML writes sizes in binary units.
func (b ByteSize) MarshalYAML() (any, error) {
	return units.BytesSize(float64(b)), nil
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LocalNames are the repo-local config file names, in lookup order.
var LocalNames = []string{".ansiblesec.yml", ".ansiblesec.yaml", "ansiblesec.yml", "ansiblesec.yaml"}

// ErrNotFound is returned when no config file exists at a lookup location.
var ErrNotFound = errors.New("no config file")

// LoadLocal searches for a repo-local config file in the given root.
func LoadLocal(repoRoot string) (FileConfig, error) {
	for _, name := range LocalNames {
		p := filepath.Join(repoRoot, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return FileConfig{}, ErrNotFound
}

// GlobalPath returns the global config location under XDG_CONFIG_HOME or ~/.config.
func GlobalPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return "", errors.New("no config dir")
	}
	return filepath.Join(base, "ansiblesec", "config.yml"), nil
}

// LoadGlobal loads the global config file.
func LoadGlobal() (FileConfig, error) {
	p, err := GlobalPath()
	if err != nil {
		return FileConfig{}, err
	}
	if _, err := os.Stat(p); err != nil {
		return FileConfig{}, ErrNotFound
	}
	return LoadFile(p)
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg FileConfig) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

func ptr[T any](v T) *T { return &v }

// Default returns a fully populated configuration with the built-in defaults.
func Default() FileConfig {
	size := ByteSize(10 * 1024 * 1024)
	return FileConfig{
		Secrets: &SecretsConfig{
			Enabled:          ptr(true),
			EntropyThreshold: ptr(4.5),
			MinEntropyLength: ptr(20),
			EntropySeverity:  ptr(string(types.SevMed)),
			DedupeSameSpan:   ptr(false),
		},
		Policies: &PoliciesConfig{
			Enabled:         ptr(true),
			DisallowModules: []string{"shell", "command", "raw"},
			RequireVault:    ptr(true),
		},
		General: &GeneralConfig{
			MaxDepth:        ptr(10),
			MaxFileSize:     &size,
			ParallelJobs:    ptr(0),
			CacheEnabled:    ptr(true),
			ExcludePaths:    []string{".git", "venv", "node_modules", "vendor"},
			ExcludePatterns: []string{"*.retry", "*.swp"},
			FailOn:          ptr(string(types.SevHigh)),
			NoColor:         ptr(false),
		},
	}
}
