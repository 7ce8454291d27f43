package rules

import (
	"fmt"
	"os"
	"strings"

	"github.com/blang/semver/v4"
	regexp "github.com/wasilibs/go-re2"
	"gopkg.in/yaml.v3"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

// SupportedMajor is the rule-file schema major version this build understands.
const SupportedMajor = 1

type secretsFile struct {
	Version string          `yaml:"version"`
	Rules   []rawSecretRule `yaml:"rules"`
}

type rawSecretRule struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Severity    string `yaml:"severity"`
	Description string `yaml:"description"`
	Enabled     *bool  `yaml:"enabled"`
}

type policiesFile struct {
	Version string          `yaml:"version"`
	Rules   []rawPolicyRule `yaml:"rules"`
}

type rawPolicyRule struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Severity    string `yaml:"severity"`
	Description string `yaml:"description"`
	Enabled     *bool  `yaml:"enabled"`
	Type        string `yaml:"type"`

	Modules        []string       `yaml:"modules"`
	Path           string         `yaml:"path"`
	Scope          string         `yaml:"scope"`
	Value          *yaml.Node     `yaml:"value"`
	Exceptions     []string       `yaml:"exceptions"`
	Keywords       []string       `yaml:"keywords"`
	MaxPermissions *yaml.Node     `yaml:"max_permissions"`
	Conditions     []rawCondition `yaml:"conditions"`
}

type rawCondition struct {
	Field    string     `yaml:"field"`
	Operator string     `yaml:"operator"`
	Value    *yaml.Node `yaml:"value"`
}

// scalarText returns the literal text of a scalar node so that values such as
// 0644 or yes keep the spelling used in the file.
func scalarText(n *yaml.Node) (string, bool) {
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

func checkVersion(v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	sv, err := semver.ParseTolerant(v)
	if err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrInvalidRule, v, err)
	}
	if sv.Major != SupportedMajor {
		return fmt.Errorf("%w: unsupported rule file version %s", ErrInvalidRule, sv)
	}
	return nil
}

// LoadSecretsFile reads and validates a secrets rule file.
func LoadSecretsFile(path string) ([]SecretPattern, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets rules: %w", err)
	}
	out, err := ParseSecrets(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// ParseSecrets decodes and validates secrets rules from YAML.
func ParseSecrets(b []byte) ([]SecretPattern, error) {
	var f secretsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if err := checkVersion(f.Version); err != nil {
		return nil, err
	}
	out := make([]SecretPattern, 0, len(f.Rules))
	for i, r := range f.Rules {
		p, err := r.compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.ID, err)
		}
		out = append(out, p)
	}
	if err := ValidateSecrets(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r rawSecretRule) compile() (SecretPattern, error) {
	p := SecretPattern{
		ID:          strings.TrimSpace(r.ID),
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Enabled:     r.Enabled == nil || *r.Enabled,
	}
	sev, ok := types.ParseSeverity(r.Severity)
	if !ok || sev == types.SevError {
		return p, fmt.Errorf("%w: severity %q", ErrInvalidRule, r.Severity)
	}
	p.Severity = sev
	if r.Pattern == "" {
		return p, fmt.Errorf("%w: empty pattern", ErrInvalidRule)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return p, fmt.Errorf("%w: pattern: %v", ErrInvalidRule, err)
	}
	p.Regex = re
	if p.Description == "" {
		p.Description = p.Name + " detected"
	}
	return p, nil
}

// LoadPoliciesFile reads and validates a policy rule file.
func LoadPoliciesFile(path string) ([]PolicyRule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy rules: %w", err)
	}
	out, err := ParsePolicies(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// ParsePolicies decodes and validates policy rules from YAML.
func ParsePolicies(b []byte) ([]PolicyRule, error) {
	var f policiesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if err := checkVersion(f.Version); err != nil {
		return nil, err
	}
	out := make([]PolicyRule, 0, len(f.Rules))
	for i, r := range f.Rules {
		p, err := r.build()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.ID, err)
		}
		out = append(out, p)
	}
	if err := ValidatePolicies(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r rawPolicyRule) build() (PolicyRule, error) {
	rule := PolicyRule{
		ID:          strings.TrimSpace(r.ID),
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Enabled:     r.Enabled == nil || *r.Enabled,
	}
	sev, ok := types.ParseSeverity(r.Severity)
	if !ok || sev == types.SevError {
		return rule, fmt.Errorf("%w: severity %q", ErrInvalidRule, r.Severity)
	}
	rule.Severity = sev

	var value *string
	if v, ok := scalarText(r.Value); ok {
		value = &v
	}

	switch Kind(strings.ToLower(strings.TrimSpace(r.Type))) {
	case KindModuleBlacklist, "disallow_module":
		rule.Params = ModuleBlacklist{Modules: r.Modules}
	case KindRequiredPath:
		sc, err := parseScope(r.Scope, ScopeDocument)
		if err != nil {
			return rule, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		rule.Params = RequiredPath{Path: r.Path, Scope: sc, Value: value}
	case KindForbiddenPath:
		sc, err := parseScope(r.Scope, ScopeDocument)
		if err != nil {
			return rule, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		rule.Params = ForbiddenPath{Path: r.Path, Scope: sc, Value: value}
	case KindVaultRequired, "require_vault":
		kw := r.Keywords
		if len(kw) == 0 {
			kw = DefaultSensitiveKeywords
		}
		rule.Params = VaultRequired{Exceptions: r.Exceptions, Keywords: kw}
	case KindPermissionCheck, "check_permissions":
		ceiling, ok := scalarText(r.MaxPermissions)
		if !ok {
			ceiling = "0644"
		}
		pc, err := NewPermissionCheck(ceiling)
		if err != nil {
			return rule, err
		}
		rule.Params = pc
	case KindCustomConditions:
		sc, err := parseScope(r.Scope, ScopeTask)
		if err != nil {
			return rule, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		cc := CustomConditions{Scope: sc}
		for i, rc := range r.Conditions {
			op, ok := ParseOperator(rc.Operator)
			if !ok {
				return rule, fmt.Errorf("%w: condition %d: unknown operator %q", ErrInvalidRule, i, rc.Operator)
			}
			v, _ := scalarText(rc.Value)
			c, err := NewCondition(rc.Field, op, v)
			if err != nil {
				return rule, fmt.Errorf("condition %d: %w", i, err)
			}
			cc.Conditions = append(cc.Conditions, c)
		}
		rule.Params = cc
	case KindNoLogRequired:
		mods := r.Modules
		if len(mods) == 0 {
			mods = DefaultNoLogModules
		}
		rule.Params = NoLogRequired{Modules: mods}
	case "":
		return rule, fmt.Errorf("%w: missing type", ErrInvalidRule)
	default:
		return rule, fmt.Errorf("%w: unknown type %q", ErrInvalidRule, r.Type)
	}
	return rule, nil
}

func validateHeader(id, name string, sev types.Severity, seen map[string]bool) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRule)
	}
	if name == "" {
		return fmt.Errorf("%w: rule %s: empty name", ErrInvalidRule, id)
	}
	if sev.Rank() == 0 {
		return fmt.Errorf("%w: rule %s: severity %q", ErrInvalidRule, id, sev)
	}
	if seen[id] {
		return fmt.Errorf("%w: duplicate id %s", ErrInvalidRule, id)
	}
	seen[id] = true
	return nil
}

// ValidateSecrets checks ids, names, severities and compiled patterns.
func ValidateSecrets(ps []SecretPattern) error {
	seen := map[string]bool{}
	for _, p := range ps {
		if err := validateHeader(p.ID, p.Name, p.Severity, seen); err != nil {
			return err
		}
		if p.Regex == nil {
			return fmt.Errorf("%w: rule %s: no pattern", ErrInvalidRule, p.ID)
		}
	}
	return nil
}

// ValidatePolicies checks ids, names, severities and variant parameters.
func ValidatePolicies(rs []PolicyRule) error {
	seen := map[string]bool{}
	for _, r := range rs {
		if err := validateHeader(r.ID, r.Name, r.Severity, seen); err != nil {
			return err
		}
		if r.Params == nil {
			return fmt.Errorf("%w: rule %s: no parameters", ErrInvalidRule, r.ID)
		}
		if err := r.Params.validate(); err != nil {
			return fmt.Errorf("%w: rule %s: %v", ErrInvalidRule, r.ID, err)
		}
	}
	return nil
}

// File layouts reported by DetectLayout.
const (
	LayoutSecrets  = "secrets"
	LayoutPolicies = "policies"
)

// DetectLayout tells secrets files (rules carry a pattern) from policy files
// (rules carry a type).
func DetectLayout(b []byte) (string, error) {
	var f struct {
		Rules []map[string]any `yaml:"rules"`
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	for _, r := range f.Rules {
		if _, ok := r["pattern"]; ok {
			return LayoutSecrets, nil
		}
		if _, ok := r["type"]; ok {
			return LayoutPolicies, nil
		}
	}
	return "", fmt.Errorf("%w: cannot tell secrets from policy rules", ErrInvalidRule)
}
