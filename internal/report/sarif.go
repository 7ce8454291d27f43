package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

const sarifSchema = "https://json.schemastore.org/sarif-2.1.0.json"

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	ShortDescription     sarifMessage `json:"shortDescription"`
	DefaultConfiguration sarifConfig  `json:"defaultConfiguration"`
}

type sarifConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	RuleIndex int          `json:"ruleIndex"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt     `json:"artifactLocation"`
	Region           *sarifRegion `json:"region,omitempty"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int           `json:"startLine"`
	StartColumn int           `json:"startColumn,omitempty"`
	Snippet     *sarifMessage `json:"snippet,omitempty"`
}

func sevToLevel(s types.Severity) string {
	switch s {
	case types.SevCritical, types.SevHigh:
		return "error"
	case types.SevMed, types.SevError:
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF writes findings as SARIF 2.1.0 to the provided writer.
func WriteSARIF(w io.Writer, findings []types.Finding, version string) error {
	return WriteSARIFWithStats(w, findings, version, nil)
}

// WriteSARIFWithStats is WriteSARIF with scan statistics attached to the run
// properties.
func WriteSARIFWithStats(w io.Writer, findings []types.Finding, version string, stats map[string]int) error {
	index := map[string]int{}
	var ids []string
	first := map[string]types.Finding{}
	for _, f := range findings {
		if _, ok := first[f.RuleID]; !ok {
			first[f.RuleID] = f
			ids = append(ids, f.RuleID)
		}
	}
	sort.Strings(ids)
	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:           "ansiblesec",
			Version:        version,
			InformationURI: "https://github.com/ansiblesec/ansiblesec",
			Rules:          make([]sarifRule, 0, len(ids)),
		}},
		Results: make([]sarifResult, 0, len(findings)),
	}
	for i, id := range ids {
		index[id] = i
		f := first[id]
		run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
			ID:                   id,
			Name:                 id,
			ShortDescription:     sarifMessage{Text: f.Message},
			DefaultConfiguration: sarifConfig{Level: sevToLevel(f.Severity)},
		})
	}
	for _, f := range findings {
		phys := sarifPhys{ArtifactLocation: sarifArt{URI: f.Path}}
		if f.Line > 0 {
			phys.Region = &sarifRegion{StartLine: f.Line, StartColumn: f.Column}
			if f.Context != "" {
				phys.Region.Snippet = &sarifMessage{Text: f.Context}
			}
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:    f.RuleID,
			RuleIndex: index[f.RuleID],
			Level:     sevToLevel(f.Severity),
			Message:   sarifMessage{Text: f.Message},
			Locations: []sarifLoc{{PhysicalLocation: phys}},
		})
	}
	if len(stats) > 0 {
		run.Properties = map[string]any{"scanStats": stats}
	}
	doc := sarif{Schema: sarifSchema, Version: "2.1.0", Runs: []sarifRun{run}}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
