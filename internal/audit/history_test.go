package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansiblesec/ansiblesec/internal/types"
)

func TestFor_PrefersGitDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, ".ansiblesec_audit.jsonl"), For(dir).Path())

	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".git", "ansiblesec_audit.jsonl"), For(dir).Path())
}

func TestAppendAndRecent(t *testing.T) {
	h := At(filepath.Join(t.TempDir(), "sub", "audit.jsonl"))
	fs := []types.Finding{
		{Path: "a.yml", Line: 1, RuleID: "POLICY_001", Severity: types.SevHigh, Context: "x"},
		{Path: "b.yml", RuleID: types.RuleSkippedBinary, Severity: types.SevInfo},
	}
	first := NewRun([]string{"."}, fs, fs, Stats{Files: 2, Duration: time.Second, ExitCode: 1})
	first.ID = "one"
	require.NoError(t, h.Append(first))
	second := NewRun([]string{"."}, fs, nil, Stats{Files: 2, CacheHits: 2})
	second.ID = "two"
	require.NoError(t, h.Append(second))

	runs, err := h.Recent(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "two", runs[0].ID)
	assert.Equal(t, 2, runs[0].Baselined)
	assert.Equal(t, 2, runs[0].CacheHits)
	assert.Equal(t, 1, runs[1].Summary.High)
	assert.Equal(t, 1, runs[1].Summary.Info)
	assert.Equal(t, "1s", runs[1].Duration)
	require.Len(t, runs[1].Listed, 1, "notices are not listed")
	assert.Equal(t, "POLICY_001", runs[1].Listed[0].RuleID)

	runs, err = h.Recent(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "two", runs[0].ID)

	st, err := os.Stat(h.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())
}

func TestRecent_SkipsMalformedLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "audit.jsonl")
	require.NoError(t, os.WriteFile(p, []byte("{\"scan_id\":\"a\"}\nnot json\n{\"scan_id\":\"b\"}\n"), 0o600))
	runs, err := At(p).Recent(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, "a", runs[1].ID)
}

func TestRecent_Missing(t *testing.T) {
	_, err := At(filepath.Join(t.TempDir(), "none.jsonl")).Recent(0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewRun_ListsAtMostTen(t *testing.T) {
	var fs []types.Finding
	for i := 0; i < 15; i++ {
		fs = append(fs, types.Finding{Path: "a.yml", Line: i + 1, RuleID: "SECRET_X", Severity: types.SevLow})
	}
	r := NewRun(nil, fs, fs, Stats{})
	assert.Len(t, r.Listed, maxListed)
	assert.Equal(t, 15, r.Summary.Low)
}
