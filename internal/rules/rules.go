// Package rules defines secret patterns and policy rules, loads them from YAML
// rule files and validates them before a scan starts.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	regexp "github.com/wasilibs/go-re2"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

// ErrInvalidRule is wrapped by every error caused by a malformed rule definition.
var ErrInvalidRule = errors.New("invalid rule")

// SecretPattern is a named regular expression that identifies a secret.
type SecretPattern struct {
	ID          string
	Name        string
	Regex       *regexp.Regexp
	Severity    types.Severity
	Description string
	Enabled     bool
}

// Kind names a policy rule variant as written in rule files.
type Kind string

const (
	KindModuleBlacklist  Kind = "module_blacklist"
	KindRequiredPath     Kind = "required_path"
	KindForbiddenPath    Kind = "forbidden_path"
	KindVaultRequired    Kind = "vault_required"
	KindPermissionCheck  Kind = "permission_check"
	KindCustomConditions Kind = "custom_conditions"
	KindNoLogRequired    Kind = "no_log_required"
)

// Scope selects which nodes of a document a path or condition rule is applied to.
type Scope string

const (
	ScopeDocument Scope = "document"
	ScopePlay     Scope = "play"
	ScopeTask     Scope = "task"
)

func parseScope(s string, def Scope) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case ScopeDocument:
		return ScopeDocument, nil
	case ScopePlay:
		return ScopePlay, nil
	case ScopeTask:
		return ScopeTask, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Params holds the type-specific parameters of a policy rule. The set of
// implementations is closed; the policy engine switches over them.
type Params interface {
	Kind() Kind
	validate() error
}

// ModuleBlacklist forbids tasks that invoke any of Modules.
type ModuleBlacklist struct {
	Modules []string `json:"modules"`
}

// RequiredPath requires Path to resolve on every node of Scope, optionally to Value.
type RequiredPath struct {
	Path  string  `json:"path"`
	Scope Scope   `json:"scope"`
	Value *string `json:"value,omitempty"`
}

// ForbiddenPath forbids Path on every node of Scope, or only when it equals Value.
type ForbiddenPath struct {
	Path  string  `json:"path"`
	Scope Scope   `json:"scope"`
	Value *string `json:"value,omitempty"`
}

// VaultRequired flags sensitive keys whose values are plain strings.
type VaultRequired struct {
	Exceptions []string `json:"exceptions"`
	Keywords   []string `json:"keywords"`
}

// PermissionCheck flags mode values granting bits outside MaxPermissions.
type PermissionCheck struct {
	MaxPermissions string `json:"max_permissions"`
	max            uint32
}

// Max returns the parsed permission ceiling.
func (p PermissionCheck) Max() uint32 { return p.max }

// CustomConditions fires on nodes of Scope where every condition holds.
type CustomConditions struct {
	Scope      Scope       `json:"scope"`
	Conditions []Condition `json:"conditions"`
}

// NoLogRequired requires no_log: true on tasks invoking any of Modules.
type NoLogRequired struct {
	Modules []string `json:"modules"`
}

func (ModuleBlacklist) Kind() Kind  { return KindModuleBlacklist }
func (RequiredPath) Kind() Kind     { return KindRequiredPath }
func (ForbiddenPath) Kind() Kind    { return KindForbiddenPath }
func (VaultRequired) Kind() Kind    { return KindVaultRequired }
func (PermissionCheck) Kind() Kind  { return KindPermissionCheck }
func (CustomConditions) Kind() Kind { return KindCustomConditions }
func (NoLogRequired) Kind() Kind    { return KindNoLogRequired }

func (p ModuleBlacklist) validate() error {
	if len(p.Modules) == 0 {
		return errors.New("modules must not be empty")
	}
	return nil
}

func (p RequiredPath) validate() error  { return validatePath(p.Path) }
func (p ForbiddenPath) validate() error { return validatePath(p.Path) }

func validatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New("path must not be empty")
	}
	for _, seg := range strings.Split(p, ".") {
		if seg == "" {
			return fmt.Errorf("path %q has an empty segment", p)
		}
	}
	return nil
}

func (p VaultRequired) validate() error {
	if len(p.Keywords) == 0 {
		return errors.New("keywords must not be empty")
	}
	return nil
}

func (p PermissionCheck) validate() error {
	if p.max > 0o7777 {
		return fmt.Errorf("max_permissions %q out of range", p.MaxPermissions)
	}
	return nil
}

func (p CustomConditions) validate() error {
	if len(p.Conditions) == 0 {
		return errors.New("conditions must not be empty")
	}
	for i, c := range p.Conditions {
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("condition %d: field must not be empty", i)
		}
		if c.Operator == OpMatches && c.re == nil {
			return fmt.Errorf("condition %d: pattern not compiled", i)
		}
	}
	return nil
}

func (p NoLogRequired) validate() error {
	if len(p.Modules) == 0 {
		return errors.New("modules must not be empty")
	}
	return nil
}

// Operator is a comparison used by custom conditions.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpExists    Operator = "exists"
	OpNotExists Operator = "not_exists"
	OpContains  Operator = "contains"
	OpMatches   Operator = "matches"
)

// ParseOperator accepts snake, kebab and a few long-form spellings.
func ParseOperator(s string) (Operator, bool) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "equals", "eq":
		return OpEquals, true
	case "not_equals", "ne":
		return OpNotEquals, true
	case "exists":
		return OpExists, true
	case "not_exists":
		return OpNotExists, true
	case "contains":
		return OpContains, true
	case "matches", "matches_pattern", "regex":
		return OpMatches, true
	}
	return "", false
}

// Condition is one (field, operator, value) triple of a custom rule.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value,omitempty"`
	re       *regexp.Regexp
}

// NewCondition builds a condition, compiling Value when the operator is matches.
func NewCondition(field string, op Operator, value string) (Condition, error) {
	c := Condition{Field: field, Operator: op, Value: value}
	if op == OpMatches {
		re, err := regexp.Compile(value)
		if err != nil {
			return c, fmt.Errorf("%w: bad pattern %q: %v", ErrInvalidRule, value, err)
		}
		c.re = re
	}
	return c, nil
}

// Pattern returns the compiled pattern of a matches condition.
func (c Condition) Pattern() *regexp.Regexp { return c.re }

// PolicyRule is a structural check evaluated against parsed documents.
type PolicyRule struct {
	ID          string
	Name        string
	Severity    types.Severity
	Description string
	Enabled     bool
	Params      Params
}

// NewPermissionCheck parses an octal permission ceiling such as 0644, 644 or 0o644.
func NewPermissionCheck(ceiling string) (PermissionCheck, error) {
	v, err := ParseOctal(ceiling)
	if err != nil {
		return PermissionCheck{}, fmt.Errorf("%w: max_permissions: %v", ErrInvalidRule, err)
	}
	return PermissionCheck{MaxPermissions: ceiling, max: v}, nil
}

// ParseOctal parses an octal mode with an optional 0 or 0o prefix.
func ParseOctal(s string) (uint32, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(strings.TrimPrefix(t, "0o"), "0O")
	if t == "" {
		return 0, fmt.Errorf("empty mode %q", s)
	}
	v, err := strconv.ParseUint(t, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("bad octal mode %q", s)
	}
	if v > 0o7777 {
		return 0, fmt.Errorf("mode %q out of range", s)
	}
	return uint32(v), nil
}

// EnabledSecrets returns the enabled patterns, preserving order.
func EnabledSecrets(in []SecretPattern) []SecretPattern {
	out := make([]SecretPattern, 0, len(in))
	for _, p := range in {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// EnabledPolicies returns the enabled rules, preserving order.
func EnabledPolicies(in []PolicyRule) []PolicyRule {
	out := make([]PolicyRule, 0, len(in))
	for _, r := range in {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}
