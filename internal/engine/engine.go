package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ansiblesec/ansiblesec/internal/cache"
	"github.com/ansiblesec/ansiblesec/internal/detectors"
	"github.com/ansiblesec/ansiblesec/internal/ignore"
	"github.com/ansiblesec/ansiblesec/internal/policy"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

// Analyzer produces the findings for one file's content. Implementations must
// be safe for concurrent use and depend only on path and data.
type Analyzer interface {
	Analyze(path string, data []byte) []types.Finding
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(path string, data []byte) []types.Finding

// Analyze implements Analyzer.
func (f AnalyzerFunc) Analyze(path string, data []byte) []types.Finding { return f(path, data) }

type pipeline struct {
	secrets *detectors.Detector
	policy  *policy.Engine
}

func (p pipeline) Analyze(path string, data []byte) []types.Finding {
	var out []types.Finding
	if p.secrets != nil {
		out = append(out, p.secrets.Scan(path, data)...)
	}
	if p.policy != nil {
		out = append(out, p.policy.Check(path, data)...)
	}
	return out
}

// NewAnalyzer returns the secret detector followed by the policy evaluator,
// each included only when enabled in cfg.
func NewAnalyzer(cfg Config) Analyzer {
	var p pipeline
	if cfg.SecretsEnabled {
		p.secrets = detectors.New(cfg.Secrets, detectors.Options{
			EntropyThreshold: cfg.EntropyThreshold,
			MinEntropyLength: cfg.MinEntropyLength,
			EntropySeverity:  cfg.EntropySeverity,
			DedupeSameSpan:   cfg.DedupeSameSpan,
		})
	}
	if cfg.PoliciesEnabled {
		p.policy = policy.New(cfg.Policies)
	}
	return p
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCache makes the engine reuse and record per-file findings in s.
func WithCache(s cache.Store) Option { return func(e *Engine) { e.cache = s } }

// WithAnalyzer replaces the default analysis pipeline.
func WithAnalyzer(a Analyzer) Option { return func(e *Engine) { e.analyzer = a } }

// WithLogger sets the logger used for progress and diagnostics.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// Engine runs one scan configuration. An Engine may be run repeatedly.
type Engine struct {
	cfg      Config
	threads  int
	excludes ignore.Matcher
	cache    cache.Store
	analyzer Analyzer
	log      zerolog.Logger
}

// New validates cfg and builds an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, excludes: ignore.New(cfg.Excludes), log: log.Logger}
	for _, o := range opts {
		o(e)
	}
	if e.analyzer == nil {
		e.analyzer = NewAnalyzer(cfg)
	}
	e.threads = cfg.Threads
	if e.threads <= 0 {
		e.threads = runtime.GOMAXPROCS(0)
	}
	return e, nil
}

// Result is the aggregated outcome of a scan.
type Result struct {
	Findings     []types.Finding `json:"findings"`
	Summary      types.Summary   `json:"summary"`
	FilesScanned int             `json:"files_scanned"`
	CacheHits    int             `json:"cache_hits"`
	Skipped      int             `json:"files_skipped"`
	Duration     time.Duration   `json:"duration"`
}

type fileResult struct {
	findings []types.Finding
	scanned  bool
	hit      bool
	skipped  bool
}

func (r *Result) add(fr fileResult) {
	r.Findings = append(r.Findings, fr.findings...)
	if fr.scanned {
		r.FilesScanned++
	}
	if fr.hit {
		r.CacheHits++
	}
	if fr.skipped {
		r.Skipped++
	}
}

func (r *Result) finalize() {
	sort.SliceStable(r.Findings, func(i, j int) bool { return types.Less(r.Findings[i], r.Findings[j]) })
	r.Summary = types.Summary{}
	for _, f := range r.Findings {
		r.Summary.Add(f.Severity)
	}
}

// Run enumerates the roots, analyzes every eligible file on a bounded worker
// pool and returns the merged, sorted findings. When ctx is cancelled no new
// files are dispatched; in-flight files finish and the partial result is
// returned together with ctx.Err().
func (e *Engine) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	var res Result

	w, err := e.enumerate(ctx)
	for _, n := range w.notices {
		res.add(fileResult{findings: []types.Finding{n}, skipped: n.RuleID != types.RuleReadError})
	}
	if err != nil {
		res.finalize()
		res.Duration = time.Since(started)
		return res, err
	}
	e.log.Debug().Int("files", len(w.files)).Int("threads", e.threads).Msg("enumerated files")

	results := make(chan fileResult, e.threads)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for fr := range results {
			res.add(fr)
		}
	}()

	var g errgroup.Group
	g.SetLimit(e.threads)
	var runErr error
	for _, rec := range w.files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		g.Go(func() error {
			results <- e.process(rec)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-done

	res.finalize()
	res.Duration = time.Since(started)
	e.log.Debug().
		Int("scanned", res.FilesScanned).
		Int("cache_hits", res.CacheHits).
		Int("findings", len(res.Findings)).
		Dur("took", res.Duration).
		Msg("scan finished")
	return res, runErr
}

// process analyzes one file, consulting the cache first. Failures are
// reported as findings and never cached.
func (e *Engine) process(rec *FileRecord) fileResult {
	data, err := rec.Content(e.cfg.MaxFileSize)
	switch {
	case errors.Is(err, errTooLarge):
		return fileResult{skipped: true, findings: []types.Finding{
			notice(rec.Path, types.RuleSkippedTooLarge, fmt.Sprintf("file exceeds limit %d", e.cfg.MaxFileSize)),
		}}
	case err != nil:
		e.log.Warn().Err(err).Str("path", rec.Path).Msg("read failed")
		return fileResult{findings: []types.Finding{{
			Path: rec.Path, Severity: types.SevError, RuleID: types.RuleReadError,
			Message: fmt.Sprintf("cannot read: %v", err),
		}}}
	}
	if looksBinary(data) {
		return fileResult{skipped: true, findings: []types.Finding{
			notice(rec.Path, types.RuleSkippedBinary, "binary content"),
		}}
	}
	sum, _ := rec.Hash(e.cfg.MaxFileSize)
	if e.cache != nil {
		if fs, ok := e.cache.Lookup(rec.Path, sum); ok {
			e.log.Trace().Str("path", rec.Path).Msg("cache hit")
			return fileResult{findings: fs, scanned: true, hit: true}
		}
	}
	fs := e.analyzer.Analyze(rec.Path, data)
	if e.cache != nil {
		e.cache.Store(rec.Path, sum, fs)
	}
	return fileResult{findings: fs, scanned: true}
}
