package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ansiblesec/ansiblesec/internal/digest"
	"github.com/ansiblesec/ansiblesec/internal/ignore"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

var errTooLarge = errors.New("file exceeds size limit")

// FileRecord is one eligible file. Its content and hash are read at most once.
type FileRecord struct {
	// Path is the slash-separated path used in findings and as the cache key.
	Path string
	// Abs is the location on disk.
	Abs  string
	Size int64

	readOnce sync.Once
	data     []byte
	readErr  error

	hashOnce sync.Once
	sum      digest.Digest
}

// Content reads the file, failing with errTooLarge beyond limit bytes.
func (r *FileRecord) Content(limit int64) ([]byte, error) {
	r.readOnce.Do(func() {
		r.data, r.readErr = readBounded(r.Abs, limit)
	})
	return r.data, r.readErr
}

// Hash returns the content digest, reading the file if needed.
func (r *FileRecord) Hash(limit int64) (digest.Digest, error) {
	data, err := r.Content(limit)
	if err != nil {
		return digest.Digest{}, err
	}
	r.hashOnce.Do(func() { r.sum = digest.Sum(data) })
	return r.sum, nil
}

func readBounded(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errTooLarge
	}
	return b, nil
}

// eligible selects YAML files and files named like playbooks or task lists.
func eligible(rel string) bool {
	lower := strings.ToLower(rel)
	switch filepath.Ext(lower) {
	case ".yml", ".yaml":
		return true
	}
	base := filepath.Base(lower)
	return strings.Contains(base, "playbook") || strings.Contains(base, "tasks") || strings.Contains(base, "handlers")
}

func looksBinary(b []byte) bool {
	const sniff = 800
	n := sniff
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if b[i] == 0 {
			return true
		}
	}
	return false
}

func notice(path, rule, msg string) types.Finding {
	return types.Finding{Path: path, Line: 0, Column: 0, Severity: types.SevInfo, RuleID: rule, Message: msg}
}

type walked struct {
	files   []*FileRecord
	notices []types.Finding
}

// enumerate lists every eligible file under the configured roots, sorted by
// path. It completes before any file is dispatched.
func (e *Engine) enumerate(ctx context.Context) (walked, error) {
	var w walked
	multi := len(e.cfg.Roots) > 1
	for _, root := range e.cfg.Roots {
		st, err := os.Stat(root)
		if err != nil {
			return w, fmt.Errorf("stat root %s: %w", root, err)
		}
		if !st.IsDir() {
			w.files = append(w.files, &FileRecord{Path: filepath.ToSlash(root), Abs: root, Size: st.Size()})
			continue
		}
		ign, err := ignore.Load(filepath.Join(root, ignore.FileName))
		if err != nil {
			e.log.Warn().Err(err).Str("root", root).Msg("could not read ignore file")
		}
		ign = e.excludes.Merge(ign)
		display := func(rel string) string {
			if multi {
				return filepath.ToSlash(filepath.Join(root, rel))
			}
			return rel
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if p == root {
				return err
			}
			relOS, _ := filepath.Rel(root, p)
			rel := filepath.ToSlash(relOS)
			if err != nil {
				w.notices = append(w.notices, types.Finding{
					Path: display(rel), Severity: types.SevError, RuleID: types.RuleReadError,
					Message: fmt.Sprintf("cannot read: %v", err),
				})
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			depth := strings.Count(rel, "/") + 1
			if d.IsDir() {
				if ign.Match(rel) {
					w.notices = append(w.notices, notice(display(rel), types.RuleSkippedExcluded, "directory excluded"))
					return filepath.SkipDir
				}
				if e.cfg.MaxDepth > 0 && depth >= e.cfg.MaxDepth {
					e.log.Debug().Str("dir", rel).Int("max_depth", e.cfg.MaxDepth).Msg("max depth reached")
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !eligible(rel) {
				return nil
			}
			if ign.Match(rel) {
				w.notices = append(w.notices, notice(display(rel), types.RuleSkippedExcluded, "file excluded"))
				return nil
			}
			info, err := d.Info()
			if err != nil {
				w.notices = append(w.notices, types.Finding{
					Path: display(rel), Severity: types.SevError, RuleID: types.RuleReadError,
					Message: fmt.Sprintf("cannot stat: %v", err),
				})
				return nil
			}
			if info.Size() > e.cfg.MaxFileSize {
				w.notices = append(w.notices, notice(display(rel), types.RuleSkippedTooLarge,
					fmt.Sprintf("file size %d exceeds limit %d", info.Size(), e.cfg.MaxFileSize)))
				return nil
			}
			w.files = append(w.files, &FileRecord{Path: display(rel), Abs: p, Size: info.Size()})
			return nil
		})
		if err != nil {
			return w, err
		}
	}
	sort.Slice(w.files, func(i, j int) bool { return w.files[i].Path < w.files[j].Path })
	return w, nil
}
