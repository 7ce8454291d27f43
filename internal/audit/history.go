// Package audit keeps an append-only JSONL history of scan runs. Records hold
// counts and locations only, never matched content.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ansiblesec/ansiblesec/internal/git"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

const fileName = "ansiblesec_audit.jsonl"

// maxListed bounds how many new findings a record lists by location.
const maxListed = 10

// Run is one line of the history.
type Run struct {
	ID        string        `json:"scan_id"`
	StartedAt time.Time     `json:"timestamp"`
	Roots     []string      `json:"roots"`
	Git       git.Metadata  `json:"git"`
	Summary   types.Summary `json:"summary"`
	Total     int           `json:"total_findings"`
	New       int           `json:"new_findings"`
	Baselined int           `json:"baselined_count"`
	Files     int           `json:"files_scanned"`
	CacheHits int           `json:"cache_hits"`
	Duration  string        `json:"duration"`
	ExitCode  int           `json:"exit_code"`
	Listed    []Location    `json:"top_findings,omitempty"`
}

// Location points at a finding by rule and position.
type Location struct {
	Path     string         `json:"file_path"`
	Line     int            `json:"line"`
	RuleID   string         `json:"rule_id"`
	Severity types.Severity `json:"severity"`
}

// Stats are the run figures that do not come from the findings themselves.
type Stats struct {
	Files     int
	CacheHits int
	Duration  time.Duration
	ExitCode  int
}

// NewRun summarizes a finished scan. all holds every finding the scan produced
// and fresh the subset left after baseline filtering.
func NewRun(roots []string, all, fresh []types.Finding, st Stats) Run {
	r := Run{
		StartedAt: time.Now().UTC(),
		Roots:     roots,
		Git:       repoMetadata(roots),
		Total:     len(all),
		New:       len(fresh),
		Baselined: len(all) - len(fresh),
		Files:     st.Files,
		CacheHits: st.CacheHits,
		Duration:  st.Duration.Round(time.Millisecond).String(),
		ExitCode:  st.ExitCode,
	}
	for _, f := range all {
		r.Summary.Add(f.Severity)
	}
	for _, f := range fresh {
		if f.IsScanNotice() {
			continue
		}
		if len(r.Listed) == maxListed {
			break
		}
		r.Listed = append(r.Listed, Location{Path: f.Path, Line: f.Line, RuleID: f.RuleID, Severity: f.Severity})
	}
	return r
}

func repoMetadata(roots []string) git.Metadata {
	if len(roots) == 0 {
		return git.Metadata{}
	}
	root := roots[0]
	if st, err := os.Stat(root); err == nil && !st.IsDir() {
		root = filepath.Dir(root)
	}
	return git.RepoMetadata(root)
}

// History is a JSONL file of runs.
type History struct {
	path string
}

// For returns the history of root. Inside a git work tree it lives under .git
// so it is never committed.
func For(root string) *History {
	if gitDir, ok := git.Dir(root); ok {
		return &History{path: filepath.Join(gitDir, fileName)}
	}
	return &History{path: filepath.Join(root, "."+fileName)}
}

// At returns a history stored at an explicit path.
func At(path string) *History { return &History{path: path} }

func (h *History) Path() string { return h.path }

// Append writes r as the newest record.
func (h *History) Append(r Run) error {
	if r.ID == "" {
		r.ID = fmt.Sprintf("scan_%d", r.StartedAt.UnixNano())
	}
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("write audit log: %w", err)
	}
	return f.Close()
}

// Recent returns up to limit runs, newest first. A limit of zero or less
// returns every run. Malformed lines are skipped.
func (h *History) Recent(limit int) ([]Run, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var runs []Run
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var r Run
		if json.Unmarshal(sc.Bytes(), &r) != nil {
			continue
		}
		runs = append(runs, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	out := make([]Run, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, runs[i])
	}
	return out, nil
}
