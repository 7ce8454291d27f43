package rules

import (
	regexp "github.com/wasilibs/go-re2"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

// DefaultSensitiveKeywords are the key fragments treated as sensitive by vault rules.
var DefaultSensitiveKeywords = []string{"password", "passwd", "secret", "token", "api_key", "private_key", "credential"}

// DefaultNoLogModules are modules whose arguments commonly carry credentials.
var DefaultNoLogModules = []string{"user", "mysql_user", "postgresql_user", "uri", "get_url"}

type secretDef struct {
	id, name, pattern string
	sev               types.Severity
}

// Provider token shapes. Each pattern carries a fixed prefix or structure so
// that a bare random string is left to the entropy check.
var defaultSecretDefs = []secretDef{
	{"SECRET_AWS_ACCESS_KEY", "AWS Access Key", `(?:AKIA|ASIA)[0-9A-Z]{16}`, types.SevCritical},
	{"SECRET_AWS_SECRET_KEY", "AWS Secret Key", `(?i)(?:aws_secret_access_key|aws_secret_key)["'\s:=]+[A-Za-z0-9/+=]{40}`, types.SevCritical},
	{"SECRET_GITHUB_TOKEN", "GitHub Token", `g(?:hp|ho|hu|hs|hr)_[A-Za-z0-9]{36}`, types.SevCritical},
	{"SECRET_GITLAB_TOKEN", "GitLab Personal Access Token", `\bglpat-[A-Za-z0-9_-]{20}\b`, types.SevHigh},
	{"SECRET_PRIVATE_KEY", "Private Key", `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`, types.SevCritical},
	{"SECRET_SLACK_TOKEN", "Slack Token", `xox[abprs]-[A-Za-z0-9-]{10,48}`, types.SevHigh},
	{"SECRET_SLACK_WEBHOOK", "Slack Webhook", `https://hooks\.slack\.com/services/[A-Z0-9]{9,}/[A-Z0-9]{9,}/[A-Za-z0-9]{24,}`, types.SevHigh},
	{"SECRET_DISCORD_WEBHOOK", "Discord Webhook", `https://discord\.com/api/webhooks/\d+/[A-Za-z0-9_-]+`, types.SevHigh},
	{"SECRET_STRIPE_KEY", "Stripe Live Secret Key", `sk_live_[A-Za-z0-9]{24,}`, types.SevCritical},
	{"SECRET_GOOGLE_API_KEY", "Google API Key", `\bAIza[0-9A-Za-z_-]{35}\b`, types.SevHigh},
	{"SECRET_OPENAI_KEY", "OpenAI API Key", `\bsk-[A-Za-z0-9]{32,}\b`, types.SevHigh},
	{"SECRET_ANTHROPIC_KEY", "Anthropic API Key", `\bsk-ant-[A-Za-z0-9_-]{30,}\b`, types.SevHigh},
	{"SECRET_SENDGRID_KEY", "SendGrid API Key", `\bSG\.[A-Za-z0-9_-]{16}\.[A-Za-z0-9_-]{32,}\b`, types.SevHigh},
	{"SECRET_NPM_TOKEN", "npm Token", `\bnpm_[A-Za-z0-9]{36}\b`, types.SevHigh},
	{"SECRET_PYPI_TOKEN", "PyPI Token", `\bpypi-[A-Za-z0-9_-]{50,}\b`, types.SevHigh},
	{"SECRET_DOCKERHUB_PAT", "Docker Hub Access Token", `\bdckr_pat_[A-Za-z0-9_-]{27,64}\b`, types.SevHigh},
	{"SECRET_DIGITALOCEAN_TOKEN", "DigitalOcean Token", `\bdop_v1_[a-f0-9]{64}\b`, types.SevHigh},
	{"SECRET_HUGGINGFACE_TOKEN", "Hugging Face Token", `\bhf_[A-Za-z0-9]{35,}\b`, types.SevMed},
	{"SECRET_DATABRICKS_TOKEN", "Databricks Token", `\bdapi[A-Za-z0-9]{26,40}\b`, types.SevHigh},
	{"SECRET_SHOPIFY_TOKEN", "Shopify Token", `\bshp(?:at|ua|ss)_[a-f0-9]{32,}\b`, types.SevHigh},
	{"SECRET_NEWRELIC_KEY", "New Relic Key", `\b(?:NRAK|NRAL|NRII|NRAA)-[A-Z0-9]{27,}\b`, types.SevMed},
	{"SECRET_AZURE_STORAGE_KEY", "Azure Storage Account Key", `(?i)AccountName=[^;\s]+;AccountKey=[A-Za-z0-9+/=]{80,}`, types.SevCritical},
	{"SECRET_JWT", "JSON Web Token", `\beyJ[A-Za-z0-9_-]{5,}\.eyJ[A-Za-z0-9_-]{5,}\.[A-Za-z0-9_-]{10,}`, types.SevMed},
	{"SECRET_DB_URI", "Database URI With Password", `\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?)://[^\s:@/]+:[^\s@/]+@[^\s/]+`, types.SevHigh},
	{"SECRET_REDIS_URI", "Redis URI With Password", `\bredis(?:\+ssl|s)?://[^\s:@/]*:[^\s@]+@`, types.SevHigh},
	{"SECRET_AMQP_URI", "AMQP URI With Password", `\bamqps?://[^:/\s]+:[^@\s]+@`, types.SevHigh},
	{"SECRET_URL_CREDENTIALS", "Credentials In URL", `https?://[^:/\s@]+:[^@\s/]+@[^\s]+`, types.SevHigh},
}

// DefaultSecrets returns the built-in secret patterns, all enabled.
func DefaultSecrets() []SecretPattern {
	out := make([]SecretPattern, 0, len(defaultSecretDefs))
	for _, d := range defaultSecretDefs {
		out = append(out, SecretPattern{
			ID:          d.id,
			Name:        d.name,
			Regex:       regexp.MustCompile(d.pattern),
			Severity:    d.sev,
			Description: d.name + " detected",
			Enabled:     true,
		})
	}
	return out
}

// DefaultPolicies returns the built-in policy rules, all enabled.
func DefaultPolicies() []PolicyRule {
	perms, _ := NewPermissionCheck("0644")
	return []PolicyRule{
		{
			ID:          "POLICY_001",
			Name:        "Disallow Risky Modules",
			Severity:    types.SevHigh,
			Description: "Prevents use of risky modules like shell, command, and raw",
			Enabled:     true,
			Params:      ModuleBlacklist{Modules: []string{"shell", "command", "raw"}},
		},
		{
			ID:          "POLICY_002",
			Name:        "Require Ansible Vault",
			Severity:    types.SevCritical,
			Description: "Ensures sensitive variables are encrypted with Ansible Vault",
			Enabled:     true,
			Params: VaultRequired{
				Exceptions: []string{"ansible_connection", "ansible_password", "ansible_become_password", "ansible_ssh_pass"},
				Keywords:   DefaultSensitiveKeywords,
			},
		},
		{
			ID:          "POLICY_003",
			Name:        "Disallow Hardcoded Connection Credentials",
			Severity:    types.SevCritical,
			Description: "Prevents hardcoded connection and become passwords in playbooks",
			Enabled:     true,
			Params:      VaultRequired{Keywords: []string{"ansible_password", "ansible_become_password", "ansible_ssh_pass", "ansible_become_pass"}},
		},
		{
			ID:          "POLICY_004",
			Name:        "Require no_log for Sensitive Tasks",
			Severity:    types.SevHigh,
			Description: "Ensures sensitive tasks have no_log: true",
			Enabled:     true,
			Params:      NoLogRequired{Modules: DefaultNoLogModules},
		},
		{
			ID:          "POLICY_005",
			Name:        "Check File Permissions",
			Severity:    types.SevMed,
			Description: "Validates file/directory permissions are not overly permissive",
			Enabled:     true,
			Params:      perms,
		},
	}
}
