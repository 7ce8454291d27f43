// Package policy evaluates structural policy rules against parsed playbooks.
package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ansiblesec/ansiblesec/internal/ctxparse"
	"github.com/ansiblesec/ansiblesec/internal/rules"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

// Engine applies a fixed set of enabled policy rules. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	rules []rules.PolicyRule
}

// New keeps the enabled rules of rs.
func New(rs []rules.PolicyRule) *Engine {
	return &Engine{rules: rules.EnabledPolicies(rs)}
}

// Rules returns the enabled rules in evaluation order.
func (e *Engine) Rules() []rules.PolicyRule { return e.rules }

var reYAMLLine = regexp.MustCompile(`line (\d+)`)

// Check parses data and evaluates every rule. Malformed YAML yields a single
// info finding and no rule findings.
func (e *Engine) Check(path string, data []byte) []types.Finding {
	doc, err := ctxparse.Parse(data)
	if err != nil {
		line := 1
		if m := reYAMLLine.FindStringSubmatch(err.Error()); m != nil {
			if n, convErr := strconv.Atoi(m[1]); convErr == nil && n > 0 {
				line = n
			}
		}
		return []types.Finding{{
			Path:     path,
			Line:     line,
			Column:   1,
			Severity: types.SevInfo,
			RuleID:   types.RuleParseError,
			Message:  fmt.Sprintf("YAML parse error, policy checks skipped: %v", err),
		}}
	}
	return e.Evaluate(path, doc)
}

// Evaluate runs every rule against doc. Each rule fires once per matching node.
func (e *Engine) Evaluate(path string, doc *ctxparse.Document) []types.Finding {
	if len(e.rules) == 0 || len(doc.Roots) == 0 {
		return nil
	}
	sc := collect(doc)
	var out []types.Finding
	for i := range e.rules {
		r := &e.rules[i]
		emit := emitter{path: path, rule: r, out: &out}
		switch p := r.Params.(type) {
		case rules.ModuleBlacklist:
			evalBlacklist(r, p, sc, emit)
		case rules.RequiredPath:
			evalRequired(r, p, sc, emit)
		case rules.ForbiddenPath:
			evalForbidden(r, p, sc, emit)
		case rules.VaultRequired:
			evalVault(p, doc, emit)
		case rules.PermissionCheck:
			evalPermissions(p, sc, emit)
		case rules.CustomConditions:
			evalConditions(r, p, sc, emit)
		case rules.NoLogRequired:
			evalNoLog(p, sc, emit)
		}
	}
	return out
}

type emitter struct {
	path string
	rule *rules.PolicyRule
	out  *[]types.Finding
}

func (e emitter) at(line, col int, msg string) {
	*e.out = append(*e.out, types.Finding{
		Path:     e.path,
		Line:     line,
		Column:   col,
		Severity: e.rule.Severity,
		RuleID:   e.rule.ID,
		Message:  msg,
	})
}

// node reports at the key that introduces n, or at n itself for sequence items.
func (e emitter) node(n *ctxparse.Node, msg string) {
	line, col := n.Location()
	e.at(line, col, msg)
}

// value reports at the scalar value itself.
func (e emitter) value(n *ctxparse.Node, msg string) {
	e.at(n.Line, n.Column, msg)
}

func ruleText(r *rules.PolicyRule) string {
	if r.Description != "" {
		return r.Description
	}
	return r.Name
}

func evalBlacklist(r *rules.PolicyRule, p rules.ModuleBlacklist, sc scopes, emit emitter) {
	set := newModuleSet(p.Modules)
	for _, t := range sc.tasks {
		mod, at, ok := module(t)
		if ok && set.has(mod) {
			emit.node(at, fmt.Sprintf("%s (module %q)", ruleText(r), mod))
		}
	}
}

func evalRequired(r *rules.PolicyRule, p rules.RequiredPath, sc scopes, emit emitter) {
	for _, n := range sc.of(p.Scope) {
		target, ok := n.Lookup(p.Path)
		switch {
		case !ok:
			emit.node(n, fmt.Sprintf("%s: required path %q is missing", ruleText(r), p.Path))
		case p.Value != nil && !valueEquals(target, *p.Value):
			emit.node(target, fmt.Sprintf("%s: %q must be %q", ruleText(r), p.Path, *p.Value))
		}
	}
}

func evalForbidden(r *rules.PolicyRule, p rules.ForbiddenPath, sc scopes, emit emitter) {
	for _, n := range sc.of(p.Scope) {
		target, ok := n.Lookup(p.Path)
		if !ok {
			continue
		}
		if p.Value == nil {
			emit.node(target, fmt.Sprintf("%s: forbidden path %q is set", ruleText(r), p.Path))
		} else if valueEquals(target, *p.Value) {
			emit.node(target, fmt.Sprintf("%s: %q must not be %q", ruleText(r), p.Path, *p.Value))
		}
	}
}

func evalVault(p rules.VaultRequired, doc *ctxparse.Document, emit emitter) {
	keywords := make([]string, 0, len(p.Keywords))
	for _, k := range p.Keywords {
		keywords = append(keywords, strings.ToLower(k))
	}
	except := map[string]bool{}
	for _, k := range p.Exceptions {
		except[strings.ToLower(k)] = true
	}
	for _, f := range doc.Fields() {
		key := strings.ToLower(f.Key)
		if except[key] || !containsAny(key, keywords) || !plaintext(f.Node) {
			continue
		}
		emit.value(f.Node, fmt.Sprintf("Sensitive key %q has a plaintext value; encrypt it with Ansible Vault", f.Key))
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// plaintext reports whether a scalar holds a literal string that is neither
// vault-encrypted nor a template.
func plaintext(n *ctxparse.Node) bool {
	if n.Kind != ctxparse.Scalar {
		return false
	}
	switch n.Tag {
	case "!vault", "!!null", "!!bool", "!!int", "!!float":
		return false
	}
	v := strings.TrimSpace(n.Value)
	if v == "" || strings.HasPrefix(v, "$ANSIBLE_VAULT") {
		return false
	}
	return !strings.Contains(v, "{{") && !strings.Contains(v, "{%")
}

func evalPermissions(p rules.PermissionCheck, sc scopes, emit emitter) {
	ceiling := p.Max()
	for _, t := range sc.tasks {
		for _, m := range modeNodes(t) {
			v, ok := ParseMode(m.Value)
			if !ok || v&^ceiling == 0 {
				continue
			}
			emit.node(m, fmt.Sprintf("Permission %s is more permissive than %s", strings.TrimSpace(m.Value), p.MaxPermissions))
		}
	}
}

// modeNodes returns mode values set in the module arguments, the args block
// or directly on the task.
func modeNodes(t *ctxparse.Node) []*ctxparse.Node {
	var out []*ctxparse.Node
	add := func(holder *ctxparse.Node) {
		if m := holder.Get("mode"); m != nil && m.Kind == ctxparse.Scalar {
			out = append(out, m)
		}
	}
	add(t)
	add(t.Get("args"))
	if _, args, ok := module(t); ok {
		switch args.Kind {
		case ctxparse.Map:
			add(args)
		case ctxparse.Scalar:
			// free-form arguments: file: path=/etc/app mode=0777
			for _, kv := range strings.Fields(args.Value) {
				if v, found := strings.CutPrefix(kv, "mode="); found {
					m := *args
					m.Value = v
					out = append(out, &m)
				}
			}
		}
	}
	return out
}

func evalConditions(r *rules.PolicyRule, p rules.CustomConditions, sc scopes, emit emitter) {
	for _, n := range sc.of(p.Scope) {
		if allHold(n, p.Conditions) {
			emit.node(n, ruleText(r))
		}
	}
}

func allHold(n *ctxparse.Node, conds []rules.Condition) bool {
	for _, c := range conds {
		if !holds(n, c) {
			return false
		}
	}
	return true
}

func holds(n *ctxparse.Node, c rules.Condition) bool {
	target, ok := n.Lookup(c.Field)
	switch c.Operator {
	case rules.OpExists:
		return ok
	case rules.OpNotExists:
		return !ok
	case rules.OpEquals:
		return ok && valueEquals(target, c.Value)
	case rules.OpNotEquals:
		return !ok || !valueEquals(target, c.Value)
	case rules.OpContains:
		if !ok {
			return false
		}
		switch target.Kind {
		case ctxparse.Scalar:
			return strings.Contains(target.Value, c.Value)
		case ctxparse.Seq:
			for _, item := range target.Children {
				if valueEquals(item, c.Value) {
					return true
				}
			}
		case ctxparse.Map:
			return target.Has(c.Value)
		}
		return false
	case rules.OpMatches:
		return ok && target.Kind == ctxparse.Scalar && c.Pattern() != nil && c.Pattern().MatchString(target.Value)
	}
	return false
}

// valueEquals compares a scalar against a rule value, using YAML boolean
// truthiness when both sides read as booleans.
func valueEquals(n *ctxparse.Node, want string) bool {
	if n == nil || n.Kind != ctxparse.Scalar {
		return false
	}
	got := strings.TrimSpace(n.Value)
	want = strings.TrimSpace(want)
	if gb, ok := ctxparse.ParseBool(got); ok {
		if wb, ok := ctxparse.ParseBool(want); ok {
			return gb == wb
		}
	}
	return got == want
}

func evalNoLog(p rules.NoLogRequired, sc scopes, emit emitter) {
	set := newModuleSet(p.Modules)
	for _, t := range sc.tasks {
		mod, at, ok := module(t)
		if !ok || !set.has(mod) {
			continue
		}
		if nl := t.Get("no_log"); nl != nil {
			if v, isBool := nl.Truthy(); !isBool || v {
				continue
			}
		}
		emit.node(at, fmt.Sprintf("Task using %q must set no_log: true", mod))
	}
}
