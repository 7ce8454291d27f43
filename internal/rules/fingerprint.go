package rules

import (
	"encoding/json"
	"strings"

	"github.com/ansiblesec/ansiblesec/internal/digest"
)

// Fingerprint identifies the effective ruleset. Only enabled rules count, so
// toggling a rule or changing a pattern changes the value. extra carries other
// settings that influence findings, such as entropy parameters.
func Fingerprint(secrets []SecretPattern, policies []PolicyRule, extra ...string) string {
	var b strings.Builder
	for _, p := range secrets {
		if !p.Enabled {
			continue
		}
		b.WriteString("s\x00" + p.ID + "\x00" + string(p.Severity) + "\x00" + p.Description + "\x00")
		if p.Regex != nil {
			b.WriteString(p.Regex.String())
		}
		b.WriteByte('\n')
	}
	for _, r := range policies {
		if !r.Enabled {
			continue
		}
		b.WriteString("p\x00" + r.ID + "\x00" + string(r.Severity) + "\x00" + r.Name + "\x00" + r.Description + "\x00")
		if r.Params != nil {
			b.WriteString(string(r.Params.Kind()) + "\x00")
			pj, _ := json.Marshal(r.Params)
			b.Write(pj)
		}
		b.WriteByte('\n')
	}
	for _, e := range extra {
		b.WriteString("x\x00" + e + "\n")
	}
	return digest.Sum([]byte(b.String())).String()
}
