package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ansiblesec/ansiblesec/internal/cache"
)

// CachePathFor returns the cache file a scan of cfg uses.
func CachePathFor(cfg Config) string {
	if cfg.CachePath != "" {
		return cfg.CachePath
	}
	base := cfg.Roots[0]
	if st, err := os.Stat(base); err == nil && !st.IsDir() {
		base = filepath.Dir(base)
	}
	return cache.DefaultPath(base)
}

// ScanWithStats runs a full scan of cfg. When caching is enabled the persisted
// cache is loaded first and saved afterwards; an unusable cache file only
// costs a full rescan. A completed scan drops entries for files it did not visit.
func ScanWithStats(ctx context.Context, cfg Config, opts ...Option) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	var db *cache.DB
	var cachePath string
	if cfg.CacheEnabled {
		cachePath = CachePathFor(cfg)
		var err error
		db, err = cache.Load(cachePath, cfg.Fingerprint())
		if err != nil {
			log.Warn().Err(err).Str("path", cachePath).Msg("ignoring cache, rescanning all files")
		}
		opts = append([]Option{WithCache(db)}, opts...)
	}
	eng, err := New(cfg, opts...)
	if err != nil {
		return Result{}, err
	}
	res, runErr := eng.Run(ctx)
	if db != nil {
		if runErr == nil {
			if n := db.Prune(); n > 0 {
				log.Debug().Int("entries", n).Msg("pruned cache entries for files no longer scanned")
			}
		}
		if err := db.Save(cachePath); err != nil {
			log.Warn().Err(err).Str("path", cachePath).Msg("could not save cache")
		}
	}
	return res, runErr
}
