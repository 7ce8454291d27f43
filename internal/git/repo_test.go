package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoMetadata(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:acme/infra.git"},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.yml"), []byte("- hosts: all\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("site.yml")
	require.NoError(t, err)
	hash, err := wt.Commit("init", &gogit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	md := RepoMetadata(dir)
	assert.Equal(t, "acme/infra", md.Repo)
	assert.Equal(t, hash.String(), md.Commit)
	assert.NotEmpty(t, md.Branch)

	sub := filepath.Join(dir, "roles")
	require.NoError(t, os.Mkdir(sub, 0o755))
	gitDir, ok := Dir(sub)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, ".git"), gitDir)
}

func TestRepoMetadataOutsideRepo(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, Metadata{}, RepoMetadata(dir))
	_, ok := Dir(dir)
	assert.False(t, ok)
}

func TestShortRepo(t *testing.T) {
	cases := map[string]string{
		"git@github.com:acme/infra.git":      "acme/infra",
		"https://github.com/acme/infra.git":  "acme/infra",
		"https://gitlab.example.com/a/b/c":   "a/b/c",
		"ssh://git@host.example.com/x/y.git": "x/y",
		"":                                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, shortRepo(in), in)
	}
}
