package ansiblesec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	units "github.com/docker/go-units"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/audit"
	"github.com/ansiblesec/ansiblesec/internal/cache"
	"github.com/ansiblesec/ansiblesec/internal/config"
	"github.com/ansiblesec/ansiblesec/internal/engine"
	"github.com/ansiblesec/ansiblesec/internal/report"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

const defaultBaseline = "ansiblesec.baseline.json"

type scanOptions struct {
	format           string
	output           string
	secretsRules     string
	policyRules      string
	noCache          bool
	cacheDir         string
	threads          int
	maxDepth         int
	maxFileSize      string
	excludes         []string
	failOn           string
	exitZero         bool
	baseline         string
	showNotices      bool
	noSecrets        bool
	noPolicies       bool
	entropyThreshold float64
	dedupeSameSpan   bool
	audit            bool
}

func newScanCmd(g *globalOptions) *cobra.Command {
	o := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [PATH...]",
		Short: "Scan playbooks and roles for secrets and policy violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			return runScan(cmd, g, o, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.format, "format", "f", "table", "output format: table | text | json | sarif")
	f.StringVarP(&o.output, "output", "o", "", "write the report to this file instead of stdout")
	f.StringVar(&o.secretsRules, "secrets-rules", "", "secrets rule file (replaces the built-in patterns)")
	f.StringVar(&o.policyRules, "policy-rules", "", "policy rule file (replaces the built-in policies)")
	f.BoolVar(&o.noCache, "no-cache", false, "disable the incremental scan cache")
	f.StringVar(&o.cacheDir, "cache-dir", "", "directory holding the cache (default: .git or .ansiblesec_cache)")
	f.IntVarP(&o.threads, "threads", "j", 0, "worker count (0 = GOMAXPROCS)")
	f.IntVar(&o.maxDepth, "max-depth", 0, "maximum directory depth below each root (0 = unlimited)")
	f.StringVar(&o.maxFileSize, "max-file-size", "", "skip files larger than this (e.g. 10MiB)")
	f.StringSliceVar(&o.excludes, "exclude", nil, "additional exclude globs (repeatable)")
	f.StringVar(&o.failOn, "fail-on", "", "lowest severity that fails the run: critical | high | medium | low | info")
	f.BoolVar(&o.exitZero, "exit-zero", false, "always exit 0 when the scan itself succeeds")
	f.StringVar(&o.baseline, "baseline", defaultBaseline, "suppress findings recorded in this baseline file")
	f.BoolVar(&o.showNotices, "show-notices", false, "list skipped files and parse notices in text output")
	f.BoolVar(&o.noSecrets, "no-secrets", false, "disable secret detection")
	f.BoolVar(&o.noPolicies, "no-policies", false, "disable policy evaluation")
	f.Float64Var(&o.entropyThreshold, "entropy-threshold", 0, "bits per character for high-entropy strings (0 disables)")
	f.BoolVar(&o.dedupeSameSpan, "dedupe-same-span", false, "report one finding when several patterns match the same text")
	f.BoolVar(&o.audit, "audit", false, "append a summary of this run to the audit log")
	return cmd
}

// flagLayer turns explicitly set flags into the highest-precedence config layer.
func (o *scanOptions) flagLayer(cmd *cobra.Command) (config.FileConfig, error) {
	var fc config.FileConfig
	sec := &config.SecretsConfig{}
	pol := &config.PoliciesConfig{}
	gen := &config.GeneralConfig{}
	changed := cmd.Flags().Changed

	if changed("secrets-rules") {
		sec.RulesFile = &o.secretsRules
	}
	if changed("no-secrets") {
		sec.Enabled = boolPtr(!o.noSecrets)
	}
	if changed("entropy-threshold") {
		sec.EntropyThreshold = &o.entropyThreshold
	}
	if changed("dedupe-same-span") {
		sec.DedupeSameSpan = &o.dedupeSameSpan
	}
	if changed("policy-rules") {
		pol.RulesFile = &o.policyRules
	}
	if changed("no-policies") {
		pol.Enabled = boolPtr(!o.noPolicies)
	}
	if changed("no-cache") {
		gen.CacheEnabled = boolPtr(!o.noCache)
	}
	if changed("cache-dir") {
		gen.CacheDir = &o.cacheDir
	}
	if changed("threads") {
		gen.ParallelJobs = &o.threads
	}
	if changed("max-depth") {
		gen.MaxDepth = &o.maxDepth
	}
	if changed("max-file-size") {
		n, err := units.RAMInBytes(o.maxFileSize)
		if err != nil {
			return fc, fmt.Errorf("%w: --max-file-size %q: %v", config.ErrInvalidConfig, o.maxFileSize, err)
		}
		size := config.ByteSize(n)
		gen.MaxFileSize = &size
	}
	if changed("fail-on") {
		gen.FailOn = &o.failOn
	}
	fc.Secrets, fc.Policies, fc.General = sec, pol, gen
	return fc, nil
}

func boolPtr(v bool) *bool { return &v }

func runScan(cmd *cobra.Command, g *globalOptions, o *scanOptions, roots []string) error {
	format, err := parseFormat(o.format)
	if err != nil {
		return err
	}
	layer, err := o.flagLayer(cmd)
	if err != nil {
		return err
	}
	s, err := loadSettings(g, configRoot(roots), layer)
	if err != nil {
		return err
	}
	cfg, err := engineConfig(s, roots)
	if err != nil {
		return err
	}
	cfg.Excludes = append(cfg.Excludes, o.excludes...)

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
	defer stop()

	log.Debug().Strs("roots", roots).Int("secrets", len(cfg.Secrets)).Int("policies", len(cfg.Policies)).Msg("starting scan")
	res, scanErr := engine.ScanWithStats(ctx, cfg)
	if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
		return fmt.Errorf("scan error: %w", scanErr)
	}
	if scanErr != nil {
		log.Warn().Msg("scan interrupted, reporting partial results")
	}

	if cfg.CacheEnabled && scanErr == nil {
		last := cache.LastScan{Findings: res.Findings, Summary: res.Summary, FilesScanned: res.FilesScanned, Roots: roots}
		if err := cache.SaveResults(engine.CachePathFor(cfg), last); err != nil {
			log.Warn().Err(err).Msg("could not save last scan results")
		}
	}

	findings := res.Findings
	if o.baseline != "" {
		base, err := report.LoadBaseline(o.baseline)
		switch {
		case err == nil:
			findings = report.FilterNewFindings(findings, base)
		case report.IsNotExist(err) && !cmd.Flags().Changed("baseline"):
		default:
			return err
		}
	}
	if findings == nil {
		findings = []types.Finding{}
	}

	w, closeOut, err := openOutput(cmd, o.output)
	if err != nil {
		return err
	}
	meta := renderMeta{
		filesScanned: res.FilesScanned,
		cacheHits:    res.CacheHits,
		duration:     res.Duration,
		noColor:      s.NoColor || o.output != "" || !report.ColorEnabled(os.Stdout),
		showNotices:  o.showNotices,
	}
	if err := render(w, format, findings, meta); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	code := report.ExitCode(findings, s.FailOn)
	if o.audit {
		run := audit.NewRun(roots, res.Findings, findings, audit.Stats{
			Files:     res.FilesScanned,
			CacheHits: res.CacheHits,
			Duration:  res.Duration,
			ExitCode:  code,
		})
		if err := audit.For(configRoot(roots)).Append(run); err != nil {
			log.Warn().Err(err).Msg("could not write audit log")
		}
	}
	if scanErr != nil {
		return scanErr
	}
	if code != 0 && !o.exitZero {
		return exitError{code: code}
	}
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openOutput returns stdout or a created file. The close func reports write
// errors that only surface when the file is closed.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatText  outputFormat = "text"
	formatJSON  outputFormat = "json"
	formatSARIF outputFormat = "sarif"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case formatTable, formatText, formatJSON, formatSARIF:
		return f, nil
	case "txt":
		return formatText, nil
	}
	return "", fmt.Errorf("%w: unknown output format %q", config.ErrInvalidConfig, s)
}
