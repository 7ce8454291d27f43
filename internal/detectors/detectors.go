package detectors

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/ansiblesec/ansiblesec/internal/rules"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

// Options tunes the entropy stage and overlap handling.
type Options struct {
	// EntropyThreshold is the minimum bits per character; zero or less disables the entropy stage.
	EntropyThreshold float64
	MinEntropyLength int
	EntropySeverity  types.Severity
	// DedupeSameSpan keeps a single regex finding per identical span instead of
	// one per matching pattern.
	DedupeSameSpan bool
}

// DefaultOptions mirrors the defaults of the configuration layer.
func DefaultOptions() Options {
	return Options{EntropyThreshold: 4.5, MinEntropyLength: 20, EntropySeverity: types.SevMed}
}

// Detector scans file content for secrets. It is immutable and safe for
// concurrent use.
type Detector struct {
	patterns []rules.SecretPattern
	opts     Options
}

// New builds a Detector from the enabled patterns in ps.
func New(ps []rules.SecretPattern, opts Options) *Detector {
	if opts.MinEntropyLength <= 0 {
		opts.MinEntropyLength = DefaultOptions().MinEntropyLength
	}
	if opts.EntropySeverity == "" {
		opts.EntropySeverity = types.SevMed
	}
	return &Detector{patterns: rules.EnabledSecrets(ps), opts: opts}
}

type span struct{ start, end int }

func (s span) overlaps(o span) bool { return s.start < o.end && o.start < s.end }
func (s span) within(o span) bool   { return o.start <= s.start && s.end <= o.end }

// Scan returns the findings for one file. Lines that are not valid UTF-8 are
// reported as info notices and skipped.
func (d *Detector) Scan(path string, data []byte) []types.Finding {
	var out []types.Finding
	var sup suppressor
	for i, raw := range splitLines(data) {
		lineNo := i + 1
		if !utf8.Valid(raw) {
			out = append(out, types.Finding{
				Path:     path,
				Line:     lineNo,
				Column:   1,
				Severity: types.SevInfo,
				RuleID:   types.RuleInvalidEncoding,
				Message:  "line is not valid UTF-8; skipped",
			})
			continue
		}
		line := string(raw)
		if sup.skip(line) {
			continue
		}
		out = append(out, d.scanLine(path, lineNo, line)...)
	}
	return out
}

func (d *Detector) scanLine(path string, lineNo int, line string) []types.Finding {
	type hit struct {
		sp span
		p  *rules.SecretPattern
	}
	var hits []hit
	for i := range d.patterns {
		p := &d.patterns[i]
		for _, loc := range p.Regex.FindAllStringIndex(line, -1) {
			if loc[0] == loc[1] {
				continue
			}
			hits = append(hits, hit{span{loc[0], loc[1]}, p})
		}
	}
	if d.opts.DedupeSameSpan && len(hits) > 1 {
		best := map[span]int{}
		var kept []hit
		for _, h := range hits {
			j, ok := best[h.sp]
			if !ok {
				best[h.sp] = len(kept)
				kept = append(kept, h)
				continue
			}
			cur := kept[j].p
			if h.p.Severity.Rank() > cur.Severity.Rank() ||
				(h.p.Severity.Rank() == cur.Severity.Rank() && h.p.ID < cur.ID) {
				kept[j] = h
			}
		}
		hits = kept
	}

	out := make([]types.Finding, 0, len(hits))
	regexSpans := make([]span, 0, len(hits))
	for _, h := range hits {
		regexSpans = append(regexSpans, h.sp)
		out = append(out, types.Finding{
			Path:     path,
			Line:     lineNo,
			Column:   column(line, h.sp.start),
			Severity: h.p.Severity,
			RuleID:   h.p.ID,
			Message:  h.p.Description,
			Context:  Redact(line[h.sp.start:h.sp.end]),
		})
	}

	if d.opts.EntropyThreshold <= 0 {
		return out
	}
	var emitted []span
	for _, c := range candidates(line, d.opts.MinEntropyLength) {
		if anyOverlap(c, regexSpans) || anyWithin(c, emitted) {
			continue
		}
		tok := line[c.start:c.end]
		if !looksRandom(tok) {
			continue
		}
		h := Entropy(tok)
		if h < d.opts.EntropyThreshold {
			continue
		}
		emitted = append(emitted, c)
		out = append(out, types.Finding{
			Path:     path,
			Line:     lineNo,
			Column:   column(line, c.start),
			Severity: d.opts.EntropySeverity,
			RuleID:   types.RuleHighEntropy,
			Message:  fmt.Sprintf("High entropy string detected (entropy: %.2f)", h),
			Context:  Redact(tok),
		})
	}
	return out
}

func anyOverlap(s span, others []span) bool {
	for _, o := range others {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}

func anyWithin(s span, others []span) bool {
	for _, o := range others {
		if s.within(o) {
			return true
		}
	}
	return false
}

// column converts a byte offset into a 1-based rune column.
func column(line string, off int) int {
	return utf8.RuneCountInString(line[:off]) + 1
}

// splitLines splits on \n and strips a trailing \r. A final newline does not
// start an extra empty line. bufio.Scanner is avoided because it rejects long
// lines such as inlined certificates.
func splitLines(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	lines := bytes.Split(data, []byte{'\n'})
	if len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = bytes.TrimSuffix(l, []byte{'\r'})
	}
	return lines
}

// candidates returns entropy candidates on a line: maximal runs of token
// characters and the bodies of quoted values without whitespace. Longer spans
// come first at each start offset so nested windows can be dropped.
func candidates(line string, minLen int) []span {
	seen := map[span]bool{}
	var out []span
	add := func(s span) {
		if utf8.RuneCountInString(line[s.start:s.end]) < minLen || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	start := -1
	for i := 0; i <= len(line); i++ {
		if i < len(line) && isTokenByte(line[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			add(span{start, i})
			start = -1
		}
	}

	for i := 0; i < len(line); i++ {
		q := line[i]
		if q != '"' && q != '\'' {
			continue
		}
		j := i + 1
		for j < len(line) && line[j] != q && !isSpace(line[j]) {
			j++
		}
		if j < len(line) && line[j] == q && j > i+1 {
			add(span{i + 1, j})
			i = j
		}
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].start != out[b].start {
			return out[a].start < out[b].start
		}
		return out[a].end > out[b].end
	})
	return out
}

func isTokenByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+', c == '/', c == '=', c == '_', c == '-':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\v' || c == '\f'
}
