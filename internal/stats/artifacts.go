// Package stats writes and reads the on-disk artifacts of a simulation run:
// its settings, blueprint, recorded activations, ratio history and a
// directory-wide run index.
package stats

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"neuralsim/internal/config"
)

const (
	runIndexFile     = "run_index.json"
	configFile       = "config.json"
	blueprintFile    = "blueprint.yaml"
	activationsFile  = "activations.csv"
	ratioHistoryFile = "ratio_history.json"
	summaryFile      = "summary.json"
)

var ErrRaggedTrace = errors.New("activation rows differ in width")

// RunConfig records how a run was driven.
type RunConfig struct {
	RunID        string  `json:"run_id"`
	NetworkID    string  `json:"network_id"`
	Seed         int64   `json:"seed"`
	Ticks        int     `json:"ticks"`
	TimeStep     float64 `json:"time_step"`
	UpdateMethod string  `json:"update_method"`
	Store        string  `json:"store"`
	RecordGroup  string  `json:"record_group,omitempty"`
	Precision    string  `json:"precision"`
}

type RunArtifacts struct {
	Config RunConfig
	// Blueprint is written as YAML when set.
	Blueprint *config.Simulation
	// Activations holds one row per tick for the recorded group.
	Activations  [][]float64
	RatioHistory map[string][]float64
	Summary      TraceSummary
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	NetworkID    string  `json:"network_id"`
	Ticks        int     `json:"ticks"`
	Seed         int64   `json:"seed"`
	Neurons      int     `json:"neurons"`
	Synapses     int     `json:"synapses"`
	FinalTime    float64 `json:"final_time"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if artifacts.Blueprint != nil {
		var buf bytes.Buffer
		if err := config.WriteYAML(&buf, *artifacts.Blueprint); err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(runDir, blueprintFile), buf.Bytes(), 0o644); err != nil {
			return "", err
		}
	}
	if err := WriteActivationTrace(filepath.Join(runDir, activationsFile), artifacts.Activations); err != nil {
		return "", err
	}
	history := artifacts.RatioHistory
	if history == nil {
		history = map[string][]float64{}
	}
	if err := writeJSON(filepath.Join(runDir, ratioHistoryFile), history); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), artifacts.Summary); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends first on equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory to outDir/<runID>. The blueprint
// is copied only when the run wrote one.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, activationsFile, ratioHistoryFile, summaryFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	blueprintPath := filepath.Join(src, blueprintFile)
	if _, err := os.Stat(blueprintPath); err == nil {
		if err := copyFile(blueprintPath, filepath.Join(dst, blueprintFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadBlueprint(baseDir, runID string) (config.Simulation, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, blueprintFile))
	if err != nil {
		if os.IsNotExist(err) {
			return config.Simulation{}, false, nil
		}
		return config.Simulation{}, false, err
	}
	sim, err := config.ParseYAML(data)
	if err != nil {
		return config.Simulation{}, false, err
	}
	return sim, true, nil
}

func ReadRatioHistory(baseDir, runID string) (map[string][]float64, bool, error) {
	var history map[string][]float64
	ok, err := readJSON(filepath.Join(baseDir, runID, ratioHistoryFile), &history)
	return history, ok, err
}

func ReadTraceSummary(baseDir, runID string) (TraceSummary, bool, error) {
	var summary TraceSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

// WriteActivationTrace writes a CSV with a header of tick,n0,n1,... and one
// row per tick, ticks counted from 1.
func WriteActivationTrace(path string, trace [][]float64) error {
	width := 0
	if len(trace) > 0 {
		width = len(trace[0])
	}
	for i, row := range trace {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedTrace, i, len(row), width)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := make([]string, 0, width+1)
	header = append(header, "tick")
	for i := 0; i < width; i++ {
		header = append(header, "n"+strconv.Itoa(i))
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	record := make([]string, width+1)
	for tick, row := range trace {
		record[0] = strconv.Itoa(tick + 1)
		for i, v := range row {
			record[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadActivationTrace(baseDir, runID string) ([][]float64, bool, error) {
	path := filepath.Join(baseDir, runID, activationsFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return [][]float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 1 || header[0] != "tick" {
		return nil, false, fmt.Errorf("activation trace header must start with tick")
	}

	trace := make([][]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		row := make([]float64, len(record)-1)
		for i, field := range record[1:] {
			row[i], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, false, err
			}
		}
		trace = append(trace, row)
	}
	return trace, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
