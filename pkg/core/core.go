package core

import (
	"context"

	"github.com/ansiblesec/ansiblesec/internal/engine"
	"github.com/ansiblesec/ansiblesec/internal/rules"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
type Config = engine.Config
type ScanResult = engine.Result
type Finding = types.Finding
type Severity = types.Severity

// DefaultConfig scans roots with the built-in rules and defaults.
func DefaultConfig(roots ...string) Config { return engine.DefaultConfig(roots...) }

// Scan is the stable entrypoint for other programs. The persisted cache is
// used when cfg.CacheEnabled is set.
func Scan(ctx context.Context, cfg Config) (ScanResult, error) {
	return engine.ScanWithStats(ctx, cfg)
}

// RuleIDs returns the ids of the enabled built-in secret and policy rules.
func RuleIDs() []string {
	var ids []string
	for _, p := range rules.EnabledSecrets(rules.DefaultSecrets()) {
		ids = append(ids, p.ID)
	}
	for _, r := range rules.EnabledPolicies(rules.DefaultPolicies()) {
		ids = append(ids, r.ID)
	}
	return ids
}
