package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreMatch(t *testing.T) {
	dir := t.TempDir()
	ig := filepath.Join(dir, FileName)
	content := "node_modules/\n*.retry\n# comment\n\nsecret.yml\n/roles/legacy\nplaybooks/**/old_*.yml\n"
	require.NoError(t, os.WriteFile(ig, []byte(content), 0o644))

	m, err := Load(ig)
	require.NoError(t, err)
	cases := map[string]bool{
		"node_modules/pkg/tasks.yml":     true,
		"node_modules":                   true,
		"site.retry":                     true,
		"deep/dir/site.retry":            true,
		"secret.yml":                     true,
		"group_vars/secret.yml":          true,
		"roles/legacy":                   true,
		"roles/legacy/tasks/main.yml":    true,
		"other/roles/legacy/main.yml":    false,
		"playbooks/a/b/old_site.yml":     true,
		"playbooks/site.yml":             false,
		"roles/web/tasks/main.yml":       false,
		"./roles/legacy/handlers/x.yaml": true,
	}
	for p, want := range cases {
		assert.Equal(t, want, m.Match(p), p)
	}
}

func TestLoad_Missing(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.True(t, m.Empty())
	assert.False(t, m.Match("site.yml"))
}

func TestMerge(t *testing.T) {
	m := New([]string{".git"}).Merge(New([]string{"*.swp"}))
	assert.True(t, m.Match(".git/config"))
	assert.True(t, m.Match("x/.site.yml.swp"))
	assert.False(t, m.Match("site.yml"))
}

func TestAppendIdempotent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, FileName)

	changed, err := Append(dir, "build/")
	require.NoError(t, err)
	assert.True(t, changed)
	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "build/\n", string(b))

	changed, err = Append(dir, "  build/ ")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = Append(dir, "")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestAppendAddsMissingNewline(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(file, []byte("*.retry"), 0o644))

	changed, err := Append(dir, "venv/")
	require.NoError(t, err)
	assert.True(t, changed)
	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "*.retry\nvenv/\n", string(b))

	m, err := Load(file)
	require.NoError(t, err)
	assert.True(t, m.Match("venv/lib/site.yml"))
	assert.True(t, m.Match("x.retry"))
}

func TestDefaultPatterns(t *testing.T) {
	m := New(DefaultPatterns())
	assert.True(t, m.Match(".venv/lib/python/site.yml"))
	assert.True(t, m.Match("collections/ansible_collections/ns/role/tasks/main.yml"))
	assert.False(t, m.Match("roles/web/tasks/main.yml"))
}
