package types

import "strings"

// Severity is a coarse-grained risk level for a finding.
type Severity string

const (
	SevCritical Severity = "critical"
	SevHigh     Severity = "high"
	SevMed      Severity = "medium"
	SevLow      Severity = "low"
	SevInfo     Severity = "info"
	// SevError marks findings produced by a failed scan step rather than by a rule.
	SevError Severity = "error"
)

// Severities lists all severities from most to least severe.
var Severities = []Severity{SevCritical, SevHigh, SevMed, SevLow, SevInfo, SevError}

// ParseSeverity maps a case-insensitive name to a Severity. The second return
// value is false for unknown names.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SevCritical, true
	case "high":
		return SevHigh, true
	case "medium", "med":
		return SevMed, true
	case "low":
		return SevLow, true
	case "info":
		return SevInfo, true
	case "error":
		return SevError, true
	}
	return "", false
}

// Rank orders risk severities; higher is worse. Error and unknown rank 0 so
// scan failures never trip risk thresholds.
func (s Severity) Rank() int {
	switch s {
	case SevCritical:
		return 5
	case SevHigh:
		return 4
	case SevMed:
		return 3
	case SevLow:
		return 2
	case SevInfo:
		return 1
	}
	return 0
}

// Rule ids used for findings that describe the scan itself.
const (
	RuleHighEntropy     = "SECRET_HIGH_ENTROPY"
	RuleInvalidEncoding = "SCAN_INVALID_ENCODING"
	RuleParseError      = "SCAN_PARSE_ERROR"
	RuleReadError       = "SCAN_READ_ERROR"
	RuleSkippedExcluded = "SCAN_SKIPPED_EXCLUDED"
	RuleSkippedTooLarge = "SCAN_SKIPPED_TOO_LARGE"
	RuleSkippedBinary   = "SCAN_SKIPPED_BINARY"
)

// Finding describes a secret or policy violation detected at a path, line and
// column. Context never holds the raw secret.
type Finding struct {
	Path     string   `json:"file_path"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Severity Severity `json:"severity"`
	RuleID   string   `json:"rule_id"`
	Message  string   `json:"message"`
	Context  string   `json:"redacted_context,omitempty"`
}

// IsScanNotice reports whether the finding was produced by the scanner itself
// (skips, read and parse errors) rather than by a secret or policy rule.
func (f Finding) IsScanNotice() bool {
	return strings.HasPrefix(f.RuleID, "SCAN_")
}

// Less is the total order used for results: path, line, column, rule id, then
// severity and message so equal keys still sort deterministically.
func Less(a, b Finding) bool {
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	if a.RuleID != b.RuleID {
		return a.RuleID < b.RuleID
	}
	if a.Severity != b.Severity {
		return a.Severity.Rank() > b.Severity.Rank()
	}
	return a.Message < b.Message
}

// Summary tallies findings per severity.
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Error    int `json:"error"`
}

// Add counts one finding of severity s.
func (s *Summary) Add(sev Severity) {
	switch sev {
	case SevCritical:
		s.Critical++
	case SevHigh:
		s.High++
	case SevMed:
		s.Medium++
	case SevLow:
		s.Low++
	case SevInfo:
		s.Info++
	case SevError:
		s.Error++
	}
}

// Total returns the number of counted findings.
func (s Summary) Total() int {
	return s.Critical + s.High + s.Medium + s.Low + s.Info + s.Error
}

// Count returns the tally for a single severity.
func (s Summary) Count(sev Severity) int {
	switch sev {
	case SevCritical:
		return s.Critical
	case SevHigh:
		return s.High
	case SevMed:
		return s.Medium
	case SevLow:
		return s.Low
	case SevInfo:
		return s.Info
	case SevError:
		return s.Error
	}
	return 0
}
