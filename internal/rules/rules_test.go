package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

func TestDefaults_Valid(t *testing.T) {
	require.NoError(t, ValidateSecrets(DefaultSecrets()))
	require.NoError(t, ValidatePolicies(DefaultPolicies()))
	assert.NotEmpty(t, EnabledPolicies(DefaultPolicies()))
}

func TestDefaults_AWSKeyMatchesOnlyOnePattern(t *testing.T) {
	line := "aws_access_key_id: AKIA1234567890ABCDEF"
	var hits []string
	for _, p := range DefaultSecrets() {
		if p.Regex.MatchString(line) {
			hits = append(hits, p.ID)
		}
	}
	assert.Equal(t, []string{"SECRET_AWS_ACCESS_KEY"}, hits)
}

func TestParseSecrets(t *testing.T) {
	src := `
version: "1.0"
rules:
  - id: CUSTOM_TOKEN
    name: Custom token
    pattern: 'tok_[a-z0-9]{8}'
    severity: HIGH
  - id: OFF
    name: Disabled
    pattern: 'x+'
    severity: low
    enabled: false
`
	ps, err := ParseSecrets([]byte(src))
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, types.SevHigh, ps[0].Severity)
	assert.True(t, ps[0].Enabled)
	assert.Equal(t, "Custom token detected", ps[0].Description)
	assert.True(t, ps[0].Regex.MatchString("tok_abcd1234"))
	assert.False(t, ps[1].Enabled)
	assert.Len(t, EnabledSecrets(ps), 1)
}

func TestParseSecrets_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad regex":    "rules:\n  - {id: A, name: A, pattern: '(', severity: high}\n",
		"bad severity": "rules:\n  - {id: A, name: A, pattern: 'a', severity: severe}\n",
		"empty id":     "rules:\n  - {id: '', name: A, pattern: 'a', severity: high}\n",
		"empty name":   "rules:\n  - {id: A, name: '', pattern: 'a', severity: high}\n",
		"duplicate":    "rules:\n  - {id: A, name: A, pattern: 'a', severity: high}\n  - {id: A, name: B, pattern: 'b', severity: high}\n",
		"bad version":  "version: '2.0'\nrules: []\n",
		"not yaml":     "rules: [",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSecrets([]byte(src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRule), err.Error())
		})
	}
}

func TestParsePolicies_AllKinds(t *testing.T) {
	src := `
version: "1"
rules:
  - id: P1
    name: No shell
    severity: high
    type: module_blacklist
    modules: [shell]
  - id: P2
    name: Gather facts off
    severity: low
    type: required_path
    scope: play
    path: gather_facts
    value: no
  - id: P3
    name: No ignore_errors
    severity: medium
    type: forbidden_path
    scope: task
    path: ignore_errors
  - id: P4
    name: Vault
    severity: critical
    type: vault_required
    exceptions: [ansible_connection]
  - id: P5
    name: Perms
    severity: medium
    type: permission_check
    max_permissions: 0644
  - id: P6
    name: Become password
    severity: high
    type: custom_conditions
    conditions:
      - {field: become, operator: equals, value: true}
      - {field: become_password, operator: not-exists}
  - id: P7
    name: no_log
    severity: high
    type: no_log_required
`
	rs, err := ParsePolicies([]byte(src))
	require.NoError(t, err)
	require.Len(t, rs, 7)

	assert.Equal(t, ModuleBlacklist{Modules: []string{"shell"}}, rs[0].Params)

	rp := rs[1].Params.(RequiredPath)
	assert.Equal(t, ScopePlay, rp.Scope)
	require.NotNil(t, rp.Value)
	assert.Equal(t, "no", *rp.Value)

	assert.Equal(t, ScopeTask, rs[2].Params.(ForbiddenPath).Scope)
	assert.Equal(t, DefaultSensitiveKeywords, rs[3].Params.(VaultRequired).Keywords)

	pc := rs[4].Params.(PermissionCheck)
	assert.Equal(t, "0644", pc.MaxPermissions)
	assert.Equal(t, uint32(0o644), pc.Max())

	cc := rs[5].Params.(CustomConditions)
	assert.Equal(t, ScopeTask, cc.Scope)
	require.Len(t, cc.Conditions, 2)
	assert.Equal(t, OpEquals, cc.Conditions[0].Operator)
	assert.Equal(t, "true", cc.Conditions[0].Value)
	assert.Equal(t, OpNotExists, cc.Conditions[1].Operator)

	assert.Equal(t, DefaultNoLogModules, rs[6].Params.(NoLogRequired).Modules)
}

func TestParsePolicies_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown type":     "rules:\n  - {id: A, name: A, severity: high, type: nope}\n",
		"missing type":     "rules:\n  - {id: A, name: A, severity: high}\n",
		"empty modules":    "rules:\n  - {id: A, name: A, severity: high, type: module_blacklist}\n",
		"empty path":       "rules:\n  - {id: A, name: A, severity: high, type: required_path}\n",
		"bad scope":        "rules:\n  - {id: A, name: A, severity: high, type: forbidden_path, path: x, scope: role}\n",
		"bad perms":        "rules:\n  - {id: A, name: A, severity: high, type: permission_check, max_permissions: '0999'}\n",
		"bad operator":     "rules:\n  - {id: A, name: A, severity: high, type: custom_conditions, conditions: [{field: a, operator: gt, value: 1}]}\n",
		"bad pattern":      "rules:\n  - {id: A, name: A, severity: high, type: custom_conditions, conditions: [{field: a, operator: matches, value: '('}]}\n",
		"no conditions":    "rules:\n  - {id: A, name: A, severity: high, type: custom_conditions}\n",
		"error severity":   "rules:\n  - {id: A, name: A, severity: error, type: module_blacklist, modules: [raw]}\n",
		"major version 0":  "version: 0.9.0\nrules: []\n",
		"garbage version":  "version: banana\nrules: []\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicies([]byte(src))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	sp := filepath.Join(dir, "secrets.yml")
	pp := filepath.Join(dir, "policies.yml")
	require.NoError(t, os.WriteFile(sp, []byte("rules:\n  - {id: A, name: A, pattern: 'a', severity: info}\n"), 0o644))
	require.NoError(t, os.WriteFile(pp, []byte("rules:\n  - {id: B, name: B, severity: low, type: no_log_required, modules: [uri]}\n"), 0o644))

	ps, err := LoadSecretsFile(sp)
	require.NoError(t, err)
	assert.Len(t, ps, 1)
	rs, err := LoadPoliciesFile(pp)
	require.NoError(t, err)
	assert.Equal(t, NoLogRequired{Modules: []string{"uri"}}, rs[0].Params)

	_, err = LoadSecretsFile(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidRule))
}

func TestParseOctal(t *testing.T) {
	for in, want := range map[string]uint32{"0644": 0o644, "644": 0o644, "0o755": 0o755, "1777": 0o1777} {
		got, err := ParseOctal(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "rw", "0o", "99999"} {
		_, err := ParseOctal(in)
		assert.Error(t, err, in)
	}
}

func TestFingerprint(t *testing.T) {
	s := DefaultSecrets()
	p := DefaultPolicies()
	base := Fingerprint(s, p, "entropy=4.5")
	assert.Equal(t, base, Fingerprint(DefaultSecrets(), DefaultPolicies(), "entropy=4.5"))
	assert.NotEqual(t, base, Fingerprint(s, p, "entropy=4.0"))

	p[0].Enabled = false
	assert.NotEqual(t, base, Fingerprint(s, p, "entropy=4.5"))
}

func TestDetectLayout(t *testing.T) {
	l, err := DetectLayout([]byte("rules:\n  - id: S\n    pattern: abc\n"))
	require.NoError(t, err)
	assert.Equal(t, LayoutSecrets, l)

	l, err = DetectLayout([]byte("version: \"1.0\"\nrules:\n  - id: P\n    type: module_blacklist\n"))
	require.NoError(t, err)
	assert.Equal(t, LayoutPolicies, l)

	_, err = DetectLayout([]byte("rules: []\n"))
	assert.ErrorIs(t, err, ErrInvalidRule)
}
