package config

import (
	"fmt"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

// Settings is a fully resolved configuration.
type Settings struct {
	SecretsEnabled    bool
	EntropyThreshold  float64
	MinEntropyLength  int
	EntropySeverity   types.Severity
	DedupeSameSpan    bool
	SecretsRulesFile  string
	PoliciesEnabled   bool
	PoliciesRulesFile string
	DisallowModules   []string
	RequireVault      bool
	MaxDepth          int
	MaxFileSize       int64
	ParallelJobs      int
	CacheEnabled      bool
	CacheDir          string
	ExcludePaths      []string
	ExcludePatterns   []string
	FailOn            types.Severity
	NoColor           bool
}

func pickPtr[T any](vals ...*T) T {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	var zero T
	return zero
}

func pickSlice(vals ...[]string) []string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// Resolve merges layers, highest precedence first, over Default and validates
// the result.
func Resolve(layers ...FileConfig) (Settings, error) {
	all := append(append([]FileConfig{}, layers...), Default())
	var (
		sec []*SecretsConfig
		pol []*PoliciesConfig
		gen []*GeneralConfig
	)
	for _, l := range all {
		if l.Secrets != nil {
			sec = append(sec, l.Secrets)
		}
		if l.Policies != nil {
			pol = append(pol, l.Policies)
		}
		if l.General != nil {
			gen = append(gen, l.General)
		}
	}
	var s Settings
	s.SecretsEnabled = pickPtr(mapS(sec, func(c *SecretsConfig) *bool { return c.Enabled })...)
	s.EntropyThreshold = pickPtr(mapS(sec, func(c *SecretsConfig) *float64 { return c.EntropyThreshold })...)
	s.MinEntropyLength = pickPtr(mapS(sec, func(c *SecretsConfig) *int { return c.MinEntropyLength })...)
	entropySev := pickPtr(mapS(sec, func(c *SecretsConfig) *string { return c.EntropySeverity })...)
	s.DedupeSameSpan = pickPtr(mapS(sec, func(c *SecretsConfig) *bool { return c.DedupeSameSpan })...)
	s.SecretsRulesFile = pickPtr(mapS(sec, func(c *SecretsConfig) *string { return c.RulesFile })...)

	s.PoliciesEnabled = pickPtr(mapS(pol, func(c *PoliciesConfig) *bool { return c.Enabled })...)
	s.PoliciesRulesFile = pickPtr(mapS(pol, func(c *PoliciesConfig) *string { return c.RulesFile })...)
	s.DisallowModules = pickSlice(mapS(pol, func(c *PoliciesConfig) []string { return c.DisallowModules })...)
	s.RequireVault = pickPtr(mapS(pol, func(c *PoliciesConfig) *bool { return c.RequireVault })...)

	s.MaxDepth = pickPtr(mapS(gen, func(c *GeneralConfig) *int { return c.MaxDepth })...)
	s.MaxFileSize = int64(pickPtr(mapS(gen, func(c *GeneralConfig) *ByteSize { return c.MaxFileSize })...))
	s.ParallelJobs = pickPtr(mapS(gen, func(c *GeneralConfig) *int { return c.ParallelJobs })...)
	s.CacheEnabled = pickPtr(mapS(gen, func(c *GeneralConfig) *bool { return c.CacheEnabled })...)
	s.CacheDir = pickPtr(mapS(gen, func(c *GeneralConfig) *string { return c.CacheDir })...)
	s.ExcludePaths = pickSlice(mapS(gen, func(c *GeneralConfig) []string { return c.ExcludePaths })...)
	s.ExcludePatterns = pickSlice(mapS(gen, func(c *GeneralConfig) []string { return c.ExcludePatterns })...)
	failOn := pickPtr(mapS(gen, func(c *GeneralConfig) *string { return c.FailOn })...)
	s.NoColor = pickPtr(mapS(gen, func(c *GeneralConfig) *bool { return c.NoColor })...)

	sev, ok := types.ParseSeverity(entropySev)
	if !ok || sev.Rank() == 0 {
		return s, fmt.Errorf("%w: secrets.entropy_severity %q", ErrInvalidConfig, entropySev)
	}
	s.EntropySeverity = sev
	fo, ok := types.ParseSeverity(failOn)
	if !ok || fo.Rank() == 0 {
		return s, fmt.Errorf("%w: general.fail_on %q", ErrInvalidConfig, failOn)
	}
	s.FailOn = fo
	return s, s.Validate()
}

func mapS[C any, V any](cs []C, f func(C) V) []V {
	out := make([]V, 0, len(cs))
	for _, c := range cs {
		out = append(out, f(c))
	}
	return out
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	switch {
	case s.EntropyThreshold < 0 || s.EntropyThreshold > 8:
		return fmt.Errorf("%w: secrets.entropy_threshold %.2f outside [0, 8]", ErrInvalidConfig, s.EntropyThreshold)
	case s.MinEntropyLength < 1:
		return fmt.Errorf("%w: secrets.min_entropy_length must be positive", ErrInvalidConfig)
	case s.MaxDepth < 0:
		return fmt.Errorf("%w: general.max_depth must not be negative", ErrInvalidConfig)
	case s.MaxFileSize <= 0:
		return fmt.Errorf("%w: general.max_file_size must be positive", ErrInvalidConfig)
	case s.ParallelJobs < 0:
		return fmt.Errorf("%w: general.parallel_jobs must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Excludes returns exclude paths and patterns as one list.
func (s Settings) Excludes() []string {
	out := make([]string, 0, len(s.ExcludePaths)+len(s.ExcludePatterns))
	out = append(out, s.ExcludePaths...)
	return append(out, s.ExcludePatterns...)
}
