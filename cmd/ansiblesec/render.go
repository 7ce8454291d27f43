package ansiblesec

import (
	"io"
	"time"

	"github.com/ansiblesec/ansiblesec/internal/report"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

type renderMeta struct {
	filesScanned int
	cacheHits    int
	duration     time.Duration
	noColor      bool
	showNotices  bool
}

func render(w io.Writer, format outputFormat, findings []types.Finding, m renderMeta) error {
	opts := report.PrintOptions{
		NoColor:      m.noColor,
		Duration:     m.duration,
		FilesScanned: m.filesScanned,
		CacheHits:    m.cacheHits,
		ShowNotices:  m.showNotices,
	}
	switch format {
	case formatJSON:
		return report.WriteJSON(w, report.NewDocument(buildVersion(), m.filesScanned, findings))
	case formatSARIF:
		return report.WriteSARIFWithStats(w, findings, buildVersion(), map[string]int{
			"filesScanned": m.filesScanned,
			"cacheHits":    m.cacheHits,
		})
	case formatText:
		report.PrintText(w, findings, opts)
		return nil
	default:
		return report.PrintTable(w, findings, opts)
	}
}
