// Package ignore matches slash-separated relative paths against exclude
// patterns taken from configuration and .ansiblesecignore files.
package ignore

import (
	"bufio"
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// FileName is the per-root ignore file.
const FileName = ".ansiblesecignore"

// Matcher holds compiled exclude patterns. The zero value matches nothing.
type Matcher struct {
	globs []string
}

// New builds a matcher from patterns. A pattern is one of:
//
//	dir/            a directory anywhere in the tree
//	/roles/legacy   a path anchored at the root, and everything below it
//	*.retry         a glob matched against every path segment
//	roles/**/vars   a doublestar glob matched against the whole path
//
// Blank entries and # comments are ignored.
func New(patterns []string) Matcher {
	var m Matcher
	for _, p := range patterns {
		m.add(p)
	}
	return m
}

func (m *Matcher) add(p string) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "#") {
		return
	}
	p = strings.TrimPrefix(p, "./")
	anchored := strings.HasPrefix(p, "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return
	}
	if !anchored && !strings.Contains(p, "/") {
		m.globs = append(m.globs, "**/"+p, "**/"+p+"/**")
		return
	}
	m.globs = append(m.globs, p, p+"/**")
}

// Load reads patterns from an ignore file. A missing file yields an empty matcher.
func Load(file string) (Matcher, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return Matcher{}, nil
		}
		return Matcher{}, err
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return New(lines), sc.Err()
}

// Merge returns a matcher matching anything either m or o matches.
func (m Matcher) Merge(o Matcher) Matcher {
	globs := make([]string, 0, len(m.globs)+len(o.globs))
	globs = append(globs, m.globs...)
	globs = append(globs, o.globs...)
	return Matcher{globs: globs}
}

// Empty reports whether the matcher has no patterns.
func (m Matcher) Empty() bool { return len(m.globs) == 0 }

// Match reports whether rel, a path relative to the scan root, is excluded.
func (m Matcher) Match(rel string) bool {
	rel = path.Clean(strings.TrimPrefix(strings.ReplaceAll(rel, "\\", "/"), "./"))
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// Append adds pattern to the ignore file in root, creating it if needed.
// A pattern already present is left alone. It reports whether the file changed.
func Append(root, pattern string) (bool, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false, nil
	}
	file := filepath.Join(root, FileName)
	existing, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	sc := bufio.NewScanner(bytes.NewReader(existing))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == pattern {
			return false, nil
		}
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		pattern = "\n" + pattern
	}
	if _, err := f.WriteString(pattern + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// DefaultPatterns returns trees that rarely hold hand-written playbooks.
func DefaultPatterns() []string {
	return []string{
		".venv/",
		"venv/",
		"collections/ansible_collections/",
		"*.retry",
	}
}
