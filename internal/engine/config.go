package engine

import (
	"fmt"
	"os"

	"github.com/ansiblesec/ansiblesec/internal/config"
	"github.com/ansiblesec/ansiblesec/internal/rules"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

// Config controls scanning behavior including scope, performance, and rules.
type Config struct {
	Roots    []string
	Excludes []string
	// MaxDepth limits directory nesting below a root; 0 means unlimited.
	MaxDepth    int
	MaxFileSize int64
	// Threads sizes the worker pool; 0 uses GOMAXPROCS.
	Threads      int
	CacheEnabled bool
	// CachePath overrides the cache location chosen by cache.DefaultPath.
	CachePath        string
	EntropyThreshold float64
	MinEntropyLength int
	EntropySeverity  types.Severity
	DedupeSameSpan   bool
	SecretsEnabled   bool
	PoliciesEnabled  bool
	Secrets          []rules.SecretPattern
	Policies         []rules.PolicyRule
}

// DefaultConfig scans root with the built-in rules and defaults.
func DefaultConfig(roots ...string) Config {
	return Config{
		Roots:            roots,
		Excludes:         []string{".git", "venv", "node_modules", "vendor", "*.retry", "*.swp"},
		MaxDepth:         10,
		MaxFileSize:      10 << 20,
		CacheEnabled:     true,
		EntropyThreshold: 4.5,
		MinEntropyLength: 20,
		EntropySeverity:  types.SevMed,
		SecretsEnabled:   true,
		PoliciesEnabled:  true,
		Secrets:          rules.DefaultSecrets(),
		Policies:         rules.DefaultPolicies(),
	}
}

// Validate rejects configurations that cannot produce a meaningful scan.
// Rule errors wrap rules.ErrInvalidRule; everything else wraps
// config.ErrInvalidConfig.
func (c Config) Validate() error {
	if len(c.Roots) == 0 {
		return fmt.Errorf("%w: no scan roots", config.ErrInvalidConfig)
	}
	for _, r := range c.Roots {
		if _, err := os.Stat(r); err != nil {
			return fmt.Errorf("%w: root %s: %v", config.ErrInvalidConfig, r, err)
		}
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("%w: max file size must be positive", config.ErrInvalidConfig)
	}
	if c.MaxDepth < 0 || c.Threads < 0 {
		return fmt.Errorf("%w: negative depth or thread count", config.ErrInvalidConfig)
	}
	if c.EntropyThreshold < 0 {
		return fmt.Errorf("%w: negative entropy threshold", config.ErrInvalidConfig)
	}
	if c.SecretsEnabled {
		if err := rules.ValidateSecrets(c.Secrets); err != nil {
			return err
		}
	}
	if c.PoliciesEnabled {
		if err := rules.ValidatePolicies(c.Policies); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint identifies everything in c that influences per-file findings.
// Cached findings are only reused under an identical fingerprint.
func (c Config) Fingerprint() string {
	var secrets []rules.SecretPattern
	var policies []rules.PolicyRule
	if c.SecretsEnabled {
		secrets = c.Secrets
	}
	if c.PoliciesEnabled {
		policies = c.Policies
	}
	return rules.Fingerprint(secrets, policies,
		fmt.Sprintf("secrets=%t policies=%t", c.SecretsEnabled, c.PoliciesEnabled),
		fmt.Sprintf("entropy=%g min=%d sev=%s dedupe=%t", c.EntropyThreshold, c.MinEntropyLength, c.EntropySeverity, c.DedupeSameSpan),
	)
}
