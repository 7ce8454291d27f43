package ansiblesec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ansiblesec/ansiblesec/internal/config"
	"github.com/ansiblesec/ansiblesec/internal/engine"
	"github.com/ansiblesec/ansiblesec/internal/rules"
)

// loadSettings resolves configuration with precedence flags > --config file >
// local config in root > global config > built-in defaults.
func loadSettings(g *globalOptions, root string, flags config.FileConfig) (config.Settings, error) {
	layers := []config.FileConfig{flags}
	if g.configFile != "" {
		c, err := config.LoadFile(g.configFile)
		if err != nil {
			return config.Settings{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		layers = append(layers, c)
	}
	if c, err := config.LoadLocal(root); err == nil {
		layers = append(layers, c)
	} else if !errors.Is(err, config.ErrNotFound) {
		return config.Settings{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if c, err := config.LoadGlobal(); err == nil {
		layers = append(layers, c)
	} else if !errors.Is(err, config.ErrNotFound) {
		log.Debug().Err(err).Msg("global config not loaded")
	}
	s, err := config.Resolve(layers...)
	if err != nil {
		return s, err
	}
	if g.noColor {
		s.NoColor = true
	}
	return s, nil
}

// loadRules returns the secret and policy rules selected by s: rule files when
// configured, otherwise the built-in sets adjusted by disallow_modules and
// require_vault.
func loadRules(s config.Settings) ([]rules.SecretPattern, []rules.PolicyRule, error) {
	secrets := rules.DefaultSecrets()
	if s.SecretsRulesFile != "" {
		ps, err := rules.LoadSecretsFile(s.SecretsRulesFile)
		if err != nil {
			return nil, nil, err
		}
		secrets = ps
	}
	if s.PoliciesRulesFile != "" {
		rs, err := rules.LoadPoliciesFile(s.PoliciesRulesFile)
		if err != nil {
			return nil, nil, err
		}
		return secrets, rs, nil
	}
	return secrets, adjustDefaults(rules.DefaultPolicies(), s), nil
}

func adjustDefaults(rs []rules.PolicyRule, s config.Settings) []rules.PolicyRule {
	for i := range rs {
		switch p := rs[i].Params.(type) {
		case rules.ModuleBlacklist:
			if s.DisallowModules != nil {
				p.Modules = append([]string(nil), s.DisallowModules...)
				rs[i].Params = p
				rs[i].Enabled = rs[i].Enabled && len(p.Modules) > 0
			}
		case rules.VaultRequired:
			if !s.RequireVault {
				rs[i].Enabled = false
			}
		}
	}
	return rs
}

// engineConfig maps resolved settings onto a scan of roots.
func engineConfig(s config.Settings, roots []string) (engine.Config, error) {
	secrets, policies, err := loadRules(s)
	if err != nil {
		return engine.Config{}, err
	}
	cfg := engine.Config{
		Roots:            roots,
		Excludes:         s.Excludes(),
		MaxDepth:         s.MaxDepth,
		MaxFileSize:      s.MaxFileSize,
		Threads:          s.ParallelJobs,
		CacheEnabled:     s.CacheEnabled,
		EntropyThreshold: s.EntropyThreshold,
		MinEntropyLength: s.MinEntropyLength,
		EntropySeverity:  s.EntropySeverity,
		DedupeSameSpan:   s.DedupeSameSpan,
		SecretsEnabled:   s.SecretsEnabled,
		PoliciesEnabled:  s.PoliciesEnabled,
		Secrets:          secrets,
		Policies:         policies,
	}
	if s.CacheDir != "" {
		cfg.CachePath = cacheFile(s.CacheDir)
	}
	return cfg, nil
}

// configRoot is the directory whose local config applies to a scan of roots.
func configRoot(roots []string) string {
	abs, err := filepath.Abs(roots[0])
	if err != nil {
		return roots[0]
	}
	if st, err := os.Stat(abs); err == nil && !st.IsDir() {
		return filepath.Dir(abs)
	}
	return abs
}

func cacheFile(dir string) string { return filepath.Join(dir, "cache.json") }

func emptyLayer() config.FileConfig { return config.FileConfig{} }
