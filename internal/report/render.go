package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

type PrintOptions struct {
	NoColor      bool
	Duration     time.Duration
	FilesScanned int
	CacheHits    int
	// ShowNotices includes skipped-file and parse notices in the listing.
	ShowNotices bool
}

var severityStyles = map[types.Severity]lipgloss.Style{
	types.SevCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")),
	types.SevHigh:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	types.SevMed:      lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	types.SevLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	types.SevInfo:     lipgloss.NewStyle().Faint(true),
	types.SevError:    lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
}

// ColorEnabled reports whether output to f should be colored: f must be a
// terminal and NO_COLOR must be unset.
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func visible(findings []types.Finding, showNotices bool) []types.Finding {
	if showNotices {
		return findings
	}
	out := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		if !f.IsScanNotice() {
			out = append(out, f)
		}
	}
	return out
}

func location(f types.Finding) string {
	if f.Line == 0 {
		return f.Path
	}
	return f.Path + ":" + strconv.Itoa(f.Line) + ":" + strconv.Itoa(f.Column)
}

func severityLabel(s types.Severity, noColor bool) string {
	if noColor {
		return string(s)
	}
	if st, ok := severityStyles[s]; ok {
		return st.Render(string(s))
	}
	return string(s)
}

// PrintTable renders findings as a bordered table followed by a summary footer.
// Findings are expected in result order.
func PrintTable(w io.Writer, findings []types.Finding, opts PrintOptions) error {
	fs := visible(findings, opts.ShowNotices)
	if len(fs) == 0 {
		fmt.Fprintln(w, "No security issues found ✅")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header([]string{"SEVERITY", "RULE", "LOCATION", "MESSAGE", "CONTEXT"})
		rows := make([][]string, 0, len(fs))
		for _, f := range fs {
			rows = append(rows, []string{severityLabel(f.Severity, opts.NoColor), f.RuleID, location(f), f.Message, f.Context})
		}
		if err := table.Bulk(rows); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	printFooter(w, fs, opts)
	return nil
}

// PrintText renders one finding per line, suitable for grep and CI logs.
func PrintText(w io.Writer, findings []types.Finding, opts PrintOptions) {
	fs := visible(findings, opts.ShowNotices)
	if len(fs) == 0 {
		fmt.Fprintln(w, "No security issues found ✅")
	} else {
		fmt.Fprintf(w, "Findings: %d\n", len(fs))
		for _, f := range fs {
			line := fmt.Sprintf("%-8s %-24s %s  %s", severityLabel(f.Severity, opts.NoColor), f.RuleID, location(f), f.Message)
			if f.Context != "" {
				line += "  [" + f.Context + "]"
			}
			fmt.Fprintln(w, line)
		}
	}
	printFooter(w, fs, opts)
}

func printFooter(w io.Writer, fs []types.Finding, opts PrintOptions) {
	if opts.Duration <= 0 && opts.FilesScanned <= 0 {
		return
	}
	var s types.Summary
	for _, f := range fs {
		s.Add(f.Severity)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d (critical: %d, high: %d, medium: %d, low: %d, info: %d)\n",
		s.Total()-s.Error, s.Critical, s.High, s.Medium, s.Low, s.Info)
	if s.Error > 0 {
		fmt.Fprintf(w, "Scan errors: %d\n", s.Error)
	}
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", opts.Duration.Seconds())
	}
	if opts.FilesScanned > 0 {
		fmt.Fprintf(w, "Files scanned: %d\n", opts.FilesScanned)
	}
	if opts.CacheHits > 0 {
		fmt.Fprintf(w, "Cache hits: %d\n", opts.CacheHits)
	}
}
