package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"neuralsim/internal/model"
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeNetwork(n model.NetworkRecord) ([]byte, error) {
	return json.Marshal(n)
}

func DecodeNetwork(data []byte) (model.NetworkRecord, error) {
	var network model.NetworkRecord
	if err := json.Unmarshal(data, &network); err != nil {
		return model.NetworkRecord{}, err
	}
	if err := checkVersion(network.VersionedRecord); err != nil {
		return model.NetworkRecord{}, err
	}
	return network, nil
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeActivityTrace(trace [][]float64) ([]byte, error) {
	return json.Marshal(trace)
}

func DecodeActivityTrace(data []byte) ([][]float64, error) {
	var trace [][]float64
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, err
	}
	return trace, nil
}

func EncodeRatioHistory(history map[string][]float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeRatioHistory(data []byte) (map[string][]float64, error) {
	var history map[string][]float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != model.CurrentSchemaVersion || v.CodecVersion != model.CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}

// sortRuns orders runs oldest first, breaking ties by id.
func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC < runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
}

func copyTrace(trace [][]float64) [][]float64 {
	out := make([][]float64, len(trace))
	for i, row := range trace {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func copyHistory(history map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(history))
	for k, v := range history {
		out[k] = append([]float64(nil), v...)
	}
	return out
}

func copyRun(run model.RunRecord) model.RunRecord {
	run.FinalActivity = append([]float64(nil), run.FinalActivity...)
	if run.ExcitatoryRatios != nil {
		ratios := make(map[string]float64, len(run.ExcitatoryRatios))
		for k, v := range run.ExcitatoryRatios {
			ratios[k] = v
		}
		run.ExcitatoryRatios = ratios
	}
	return run
}
