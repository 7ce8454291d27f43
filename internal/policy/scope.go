package policy

import (
	"strings"

	"github.com/ansiblesec/ansiblesec/internal/ctxparse"
	"github.com/ansiblesec/ansiblesec/internal/rules"
)

// scopes holds the nodes of one file grouped by rule scope.
type scopes struct {
	docs  []*ctxparse.Node
	plays []*ctxparse.Node
	tasks []*ctxparse.Node
}

func (s scopes) of(sc rules.Scope) []*ctxparse.Node {
	switch sc {
	case rules.ScopePlay:
		return s.plays
	case rules.ScopeTask:
		return s.tasks
	}
	return s.docs
}

var taskLists = []string{"pre_tasks", "tasks", "post_tasks", "handlers"}

var blockLists = []string{"block", "rescue", "always"}

func collect(doc *ctxparse.Document) scopes {
	var s scopes
	for _, root := range doc.Roots {
		s.docs = append(s.docs, root)
		if root.Kind != ctxparse.Seq {
			continue
		}
		for _, item := range root.Children {
			if item.Kind != ctxparse.Map {
				continue
			}
			if isPlay(item) {
				s.plays = append(s.plays, item)
				for _, key := range taskLists {
					if l := item.Get(key); l != nil {
						s.tasks = appendTasks(s.tasks, l)
					}
				}
				continue
			}
			s.tasks = appendTask(s.tasks, item)
		}
	}
	return s
}

func isPlay(n *ctxparse.Node) bool {
	return n.Has("hosts") || n.Has("import_playbook") || n.Has("ansible.builtin.import_playbook")
}

func appendTasks(dst []*ctxparse.Node, list *ctxparse.Node) []*ctxparse.Node {
	if list.Kind != ctxparse.Seq {
		return dst
	}
	for _, t := range list.Children {
		if t.Kind == ctxparse.Map {
			dst = appendTask(dst, t)
		}
	}
	return dst
}

// appendTask adds t and, for blocks, every task nested in block/rescue/always.
func appendTask(dst []*ctxparse.Node, t *ctxparse.Node) []*ctxparse.Node {
	dst = append(dst, t)
	for _, key := range blockLists {
		if l := t.Get(key); l != nil {
			dst = appendTasks(dst, l)
		}
	}
	return dst
}

// taskKeywords are task-level keys that are never a module invocation.
var taskKeywords = map[string]bool{
	"name": true, "when": true, "register": true, "loop": true, "loop_control": true,
	"tags": true, "notify": true, "listen": true, "vars": true, "environment": true,
	"become": true, "become_user": true, "become_method": true, "become_flags": true,
	"become_exe": true, "become_password": true,
	"ignore_errors": true, "ignore_unreachable": true, "changed_when": true, "failed_when": true,
	"until": true, "retries": true, "delay": true, "delegate_to": true, "delegate_facts": true,
	"run_once": true, "no_log": true, "args": true, "block": true, "rescue": true, "always": true,
	"check_mode": true, "diff": true, "any_errors_fatal": true, "async": true, "poll": true,
	"throttle": true, "timeout": true, "connection": true, "collections": true,
	"module_defaults": true, "debugger": true, "remote_user": true, "port": true,
}

// module identifies the module a task invokes. It returns the module name as
// written, the node holding its arguments and the key node for locations.
func module(task *ctxparse.Node) (name string, args *ctxparse.Node, ok bool) {
	for _, key := range []string{"action", "local_action"} {
		if a := task.Get(key); a != nil {
			switch a.Kind {
			case ctxparse.Scalar:
				f := strings.Fields(a.Value)
				if len(f) > 0 {
					return f[0], a, true
				}
			case ctxparse.Map:
				if m := a.Get("module"); m != nil && m.Kind == ctxparse.Scalar {
					return m.Value, a, true
				}
			}
		}
	}
	for _, c := range task.Children {
		if taskKeywords[c.Key] || strings.HasPrefix(c.Key, "with_") {
			continue
		}
		return c.Key, c, true
	}
	return "", nil, false
}

// shortName strips a collection namespace: ansible.builtin.shell -> shell.
func shortName(mod string) string {
	if i := strings.LastIndexByte(mod, '.'); i >= 0 {
		return mod[i+1:]
	}
	return mod
}

type moduleSet map[string]bool

func newModuleSet(mods []string) moduleSet {
	s := moduleSet{}
	for _, m := range mods {
		s[strings.TrimSpace(m)] = true
	}
	return s
}

func (s moduleSet) has(mod string) bool {
	return s[mod] || s[shortName(mod)]
}
