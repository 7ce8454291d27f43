package report

import (
	"encoding/json"
	"io"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

// Document is the JSON report layout.
type Document struct {
	Tool         string          `json:"tool"`
	Version      string          `json:"version"`
	FilesScanned int             `json:"files_scanned"`
	Summary      types.Summary   `json:"summary"`
	Findings     []types.Finding `json:"findings"`
}

// NewDocument tallies findings into a Document.
func NewDocument(version string, filesScanned int, findings []types.Finding) Document {
	d := Document{Tool: "ansiblesec", Version: version, FilesScanned: filesScanned, Findings: findings}
	if d.Findings == nil {
		d.Findings = []types.Finding{}
	}
	for _, f := range findings {
		d.Summary.Add(f.Severity)
	}
	return d
}

// WriteJSON writes d as indented JSON.
func WriteJSON(w io.Writer, d Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
