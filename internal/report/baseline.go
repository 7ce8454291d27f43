package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

// Baseline is a set of accepted findings keyed by path, rule id and line.
type Baseline struct {
	Items map[string]bool `json:"items"`
}

// LoadBaseline reads a baseline file. A missing file yields an empty baseline
// and an error matching os.ErrNotExist.
func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Items: map[string]bool{}}
	f, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(f, &b); err != nil {
		return Baseline{Items: map[string]bool{}}, fmt.Errorf("decode baseline %s: %w", path, err)
	}
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	return b, nil
}

// SaveBaseline records every rule finding. Scan notices are never baselined.
func SaveBaseline(path string, findings []types.Finding) error {
	b := Baseline{Items: map[string]bool{}}
	for _, f := range findings {
		if f.IsScanNotice() {
			continue
		}
		b.Items[key(f)] = true
	}
	buf, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// FilterNewFindings drops findings present in base.
func FilterNewFindings(findings []types.Finding, base Baseline) []types.Finding {
	var out []types.Finding
	for _, f := range findings {
		if !base.Items[key(f)] {
			out = append(out, f)
		}
	}
	return out
}

func key(f types.Finding) string {
	return f.Path + "|" + f.RuleID + "|" + strconv.Itoa(f.Line)
}

// IsNotExist reports whether err came from a missing baseline file.
func IsNotExist(err error) bool { return errors.Is(err, os.ErrNotExist) }

// ExitCode maps findings to a process exit status: 0 when no rule finding
// reaches failOn, otherwise 2 if any critical finding is present and 1 if not.
// Scan notices and errors never fail a run.
func ExitCode(findings []types.Finding, failOn types.Severity) int {
	th := failOn.Rank()
	if th == 0 {
		th = types.SevHigh.Rank()
	}
	failed, critical := false, false
	for _, f := range findings {
		if f.IsScanNotice() {
			continue
		}
		r := f.Severity.Rank()
		if r >= th {
			failed = true
		}
		if f.Severity == types.SevCritical {
			critical = true
		}
	}
	switch {
	case !failed:
		return 0
	case critical:
		return 2
	default:
		return 1
	}
}
