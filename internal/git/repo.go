// Package git reads repository facts used to place state files and to label
// scan history. All lookups are best-effort.
package git

import (
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// Metadata identifies the revision a scan ran against.
type Metadata struct {
	Repo   string `json:"repo,omitempty"`
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
}

func open(root string) (*gogit.Repository, error) {
	return gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
}

// Dir returns the .git directory of the work tree containing root.
func Dir(root string) (string, bool) {
	repo, err := open(root)
	if err != nil {
		return "", false
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", false
	}
	gitDir := filepath.Join(wt.Filesystem.Root(), ".git")
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		return gitDir, true
	}
	return "", false
}

// RepoMetadata returns the origin, HEAD commit and branch for root. Fields
// that cannot be resolved are left empty.
func RepoMetadata(root string) Metadata {
	var md Metadata
	repo, err := open(root)
	if err != nil {
		return md
	}
	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			md.Repo = shortRepo(urls[0])
		}
	}
	head, err := repo.Head()
	if err != nil {
		return md
	}
	md.Commit = head.Hash().String()
	if head.Name().IsBranch() {
		md.Branch = head.Name().Short()
	}
	return md
}

// shortRepo reduces a remote URL to owner/name when it can.
func shortRepo(url string) string {
	s := strings.TrimSuffix(strings.TrimSpace(url), ".git")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "/"); j >= 0 {
			return s[j+1:]
		}
		return s
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return s
}
