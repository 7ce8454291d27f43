package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/ansiblesec/ansiblesec/internal/digest"
	"github.com/ansiblesec/ansiblesec/internal/git"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

// formatVersion is bumped whenever the on-disk layout changes; older files load empty.
const formatVersion = 1

const shardCount = 16

// Store is the cache contract used by the scan engine. Implementations must
// allow concurrent calls for different paths.
type Store interface {
	// Lookup returns the findings recorded for path only if they were computed
	// for content with exactly this digest.
	Lookup(path string, sum digest.Digest) ([]types.Finding, bool)
	// Store records findings for path at sum, replacing any previous entry.
	Store(path string, sum digest.Digest, findings []types.Finding)
}

// Entry is the cached outcome of scanning one file.
type Entry struct {
	Hash      digest.Digest   `json:"content_hash"`
	Findings  []types.Finding `json:"findings"`
	Timestamp time.Time       `json:"timestamp"`
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// seen holds paths looked up or stored since the DB was created.
	seen map[string]struct{}
}

// DB is a sharded in-memory cache that can be persisted between runs.
type DB struct {
	fingerprint string
	shards      [shardCount]shard
}

var _ Store = (*DB)(nil)

// New returns an empty cache bound to a ruleset fingerprint.
func New(fingerprint string) *DB {
	db := &DB{fingerprint: fingerprint}
	for i := range db.shards {
		db.shards[i].entries = map[string]Entry{}
		db.shards[i].seen = map[string]struct{}{}
	}
	return db
}

func (db *DB) shardFor(path string) *shard {
	return &db.shards[xxhash.Sum64String(path)%shardCount]
}

// Lookup implements Store.
func (db *DB) Lookup(path string, sum digest.Digest) ([]types.Finding, bool) {
	s := db.shardFor(path)
	s.mu.Lock()
	e, ok := s.entries[path]
	s.seen[path] = struct{}{}
	s.mu.Unlock()
	if !ok || e.Hash != sum {
		return nil, false
	}
	return append([]types.Finding(nil), e.Findings...), true
}

// Store implements Store.
func (db *DB) Store(path string, sum digest.Digest, findings []types.Finding) {
	e := Entry{
		Hash:      sum,
		Findings:  append([]types.Finding(nil), findings...),
		Timestamp: time.Now().UTC(),
	}
	s := db.shardFor(path)
	s.mu.Lock()
	s.entries[path] = e
	s.seen[path] = struct{}{}
	s.mu.Unlock()
}

// Prune drops entries for paths that were neither looked up nor stored since
// the DB was created, so files deleted from the tree leave the cache. It
// returns the number of entries removed. Call it only after a complete scan.
func (db *DB) Prune() int {
	n := 0
	for i := range db.shards {
		s := &db.shards[i]
		s.mu.Lock()
		for p := range s.entries {
			if _, ok := s.seen[p]; !ok {
				delete(s.entries, p)
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

// Entry returns the raw entry for path, if any.
func (db *DB) Entry(path string) (Entry, bool) {
	s := db.shardFor(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[path]
	return e, ok
}

// Len returns the number of cached paths.
func (db *DB) Len() int {
	n := 0
	for i := range db.shards {
		s := &db.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Fingerprint returns the ruleset fingerprint the cache was built for.
func (db *DB) Fingerprint() string { return db.fingerprint }

type onDisk struct {
	Version     int              `json:"version"`
	Fingerprint string           `json:"fingerprint"`
	Entries     map[string]Entry `json:"entries"`
}

// Load reads the cache stored at path. It always returns a usable DB: when the
// file is missing, unreadable, corrupt, from another format version or built
// for a different ruleset, the DB is empty. A non-nil error explains why a
// present file was discarded; a missing file is not an error.
func Load(path, fingerprint string) (*DB, error) {
	db := New(fingerprint)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return db, nil
		}
		return db, fmt.Errorf("read cache: %w", err)
	}
	var f onDisk
	if err := json.Unmarshal(b, &f); err != nil {
		return db, fmt.Errorf("decode cache: %w", err)
	}
	if f.Version != formatVersion {
		return db, fmt.Errorf("cache format version %d, want %d", f.Version, formatVersion)
	}
	if f.Fingerprint != fingerprint {
		return db, errors.New("cache built for a different ruleset")
	}
	for p, e := range f.Entries {
		if e.Hash.IsZero() {
			continue
		}
		s := db.shardFor(p)
		s.entries[p] = e
	}
	return db, nil
}

// Save writes the cache to path atomically.
func (db *DB) Save(path string) error {
	f := onDisk{Version: formatVersion, Fingerprint: db.fingerprint, Entries: map[string]Entry{}}
	for i := range db.shards {
		s := &db.shards[i]
		s.mu.RLock()
		for p, e := range s.entries {
			f.Entries[p] = e
		}
		s.mu.RUnlock()
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	return writeAtomic(path, b)
}

// Clear removes the cache file at path. A missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DefaultPath picks where the cache lives for a scan rooted at root. Inside a
// git work tree it goes under .git to avoid accidental commits; otherwise it
// goes under .ansiblesec_cache in root.
func DefaultPath(root string) string {
	if gitDir, ok := git.Dir(root); ok {
		return filepath.Join(gitDir, "ansiblesec-cache.json")
	}
	return filepath.Join(root, ".ansiblesec_cache", "cache.json")
}

func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".ansiblesec-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
