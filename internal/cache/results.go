package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

// LastScan is the persisted outcome of the most recent scan, used by the
// report command to re-render without rescanning.
type LastScan struct {
	Findings     []types.Finding `json:"findings"`
	Summary      types.Summary   `json:"summary"`
	FilesScanned int             `json:"files_scanned"`
	Timestamp    time.Time       `json:"timestamp"`
	Roots        []string        `json:"roots"`
}

// ResultsPath returns where the last scan is stored, next to the cache file.
func ResultsPath(cachePath string) string {
	return filepath.Join(filepath.Dir(cachePath), "ansiblesec-last-scan.json")
}

// SaveResults writes the last scan next to cachePath.
func SaveResults(cachePath string, res LastScan) error {
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(ResultsPath(cachePath), b)
}

// LoadResults reads the last scan stored next to cachePath.
func LoadResults(cachePath string) (LastScan, error) {
	var res LastScan
	b, err := os.ReadFile(ResultsPath(cachePath))
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return res, err
	}
	return res, nil
}
