package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralsim/internal/config"
)

func sampleArtifacts(runID string) RunArtifacts {
	sim := config.Sample()
	return RunArtifacts{
		Config: RunConfig{
			RunID:        runID,
			NetworkID:    "net-1",
			Seed:         1,
			Ticks:        3,
			TimeStep:     1,
			UpdateMethod: "default",
			Store:        "memory",
			RecordGroup:  "output",
			Precision:    "float64",
		},
		Blueprint:    &sim,
		Activations:  [][]float64{{0, 0.5}, {0.25, 0.5}, {0.25, 0.5}},
		RatioHistory: map[string][]float64{"input_to_output": {0.8, 0.8, 0.8}},
	}
}

func TestWriteAndReadRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("run-123")
	summary, err := SummarizeTrace(artifacts.Activations, 0)
	require.NoError(t, err)
	artifacts.Summary = summary

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(baseDir, "run-123"), runDir)

	cfg, ok, err := ReadRunConfig(baseDir, "run-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Config, cfg)

	trace, ok, err := ReadActivationTrace(baseDir, "run-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Activations, trace)

	history, ok, err := ReadRatioHistory(baseDir, "run-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.RatioHistory, history)

	gotSummary, ok, err := ReadTraceSummary(baseDir, "run-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, summary, gotSummary)

	sim, ok, err := ReadBlueprint(baseDir, "run-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, config.Sample(), sim)

	header, err := os.ReadFile(filepath.Join(runDir, activationsFile))
	require.NoError(t, err)
	assert.Contains(t, string(header), "tick,n0,n1\n1,0,0.5\n")
}

func TestReadMissingArtifacts(t *testing.T) {
	baseDir := t.TempDir()

	_, ok, err := ReadRunConfig(baseDir, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = ReadActivationTrace(baseDir, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = ReadBlueprint(baseDir, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteRunArtifactsValidation(t *testing.T) {
	baseDir := t.TempDir()

	_, err := WriteRunArtifacts(baseDir, RunArtifacts{})
	require.Error(t, err)

	artifacts := sampleArtifacts("ragged")
	artifacts.Activations = [][]float64{{1, 2}, {3}}
	_, err = WriteRunArtifacts(baseDir, artifacts)
	require.ErrorIs(t, err, ErrRaggedTrace)
}

func TestExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	_, err := WriteRunArtifacts(baseDir, sampleArtifacts("with-blueprint"))
	require.NoError(t, err)
	bare := sampleArtifacts("bare")
	bare.Blueprint = nil
	_, err = WriteRunArtifacts(baseDir, bare)
	require.NoError(t, err)

	dst, err := ExportRunArtifacts(baseDir, "with-blueprint", outDir)
	require.NoError(t, err)
	for _, file := range []string{configFile, blueprintFile, activationsFile, ratioHistoryFile, summaryFile} {
		assert.FileExists(t, filepath.Join(dst, file))
	}

	dst, err = ExportRunArtifacts(baseDir, "bare", outDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dst, configFile))
	assert.NoFileExists(t, filepath.Join(dst, blueprintFile))

	_, err = ExportRunArtifacts(baseDir, "missing", outDir)
	require.Error(t, err)
}

func TestRunIndexNewestFirstAndReplaces(t *testing.T) {
	baseDir := t.TempDir()

	index, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	assert.Empty(t, index)

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "c", CreatedAtUTC: "2026-01-03T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", Ticks: 9, CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.Error(t, AppendRunIndex(baseDir, RunIndexEntry{}))

	index, err = ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, index, 3)
	assert.Equal(t, "c", index[0].RunID)
	assert.Equal(t, "b", index[1].RunID)
	assert.Equal(t, "a", index[2].RunID)
	assert.Equal(t, 9, index[2].Ticks)
}

func TestWriteRunConfigRejectsMismatch(t *testing.T) {
	baseDir := t.TempDir()

	require.NoError(t, WriteRunConfig(baseDir, "r1", RunConfig{Ticks: 4}))
	cfg, ok, err := ReadRunConfig(baseDir, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", cfg.RunID)

	require.Error(t, WriteRunConfig(baseDir, "r1", RunConfig{RunID: "r2"}))
	require.Error(t, WriteRunConfig(baseDir, " ", RunConfig{}))
}
