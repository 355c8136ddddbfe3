package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralsim/internal/model"
)

func versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: model.CurrentSchemaVersion, CodecVersion: model.CurrentCodecVersion}
}

func sampleNetwork(id string) model.NetworkRecord {
	return model.NetworkRecord{
		VersionedRecord: versioned(),
		ID:              id,
		Time:            4,
		TimeStep:        1,
		Iterations:      4,
		UpdateMethod:    "default",
		NeuronGroups: []model.NeuronGroupRecord{{
			ID:    "NeuronGroup_1",
			Label: "input",
			Neurons: []model.NeuronRecord{
				{ID: "Neuron_1", Activation: 0.5, LowerBound: -1, UpperBound: 1, UpdateRule: model.RuleRecord{Name: "linear"}},
			},
		}},
		SynapseGroups: []model.SynapseGroupRecord{{
			ID:              "SynapseGroup_1",
			Label:           "input to input",
			Source:          "NeuronGroup_1",
			Target:          "NeuronGroup_1",
			ExcitatoryRatio: 1,
			SparseCode:      []byte{0xff, 0xff, 0xff, 0xff, 1, 0, 0, 0, 0, 0, 0, 0, 0},
		}},
	}
}

func sampleRun(id, created string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord:  versioned(),
		ID:               id,
		NetworkID:        "net-1",
		Ticks:            10,
		Seed:             42,
		FinalTime:        10,
		RecordedGroup:    "input",
		FinalActivity:    []float64{0.25, -0.5},
		ExcitatoryRatios: map[string]float64{"input to input": 0.8},
		CreatedAtUTC:     created,
	}
}

// exerciseStore runs the behavior every backend shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.GetNetwork(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveNetwork(ctx, sampleNetwork("net-b")))
	require.NoError(t, store.SaveNetwork(ctx, sampleNetwork("net-a")))
	updated := sampleNetwork("net-b")
	updated.Iterations = 9
	require.NoError(t, store.SaveNetwork(ctx, updated))

	loaded, ok, err := store.GetNetwork(ctx, "net-b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9), loaded.Iterations)
	assert.Equal(t, updated.SynapseGroups[0].SparseCode, loaded.SynapseGroups[0].SparseCode)
	assert.Equal(t, "Neuron_1", loaded.NeuronGroups[0].Neurons[0].ID)

	ids, err := store.ListNetworks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"net-a", "net-b"}, ids)

	require.NoError(t, store.DeleteNetwork(ctx, "net-a"))
	_, ok, err = store.GetNetwork(ctx, "net-a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-2", "2024-03-02T00:00:00Z")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", "2024-03-01T00:00:00Z")))
	run, ok, err := store.GetRun(ctx, "run-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleRun("run-2", "2024-03-02T00:00:00Z"), run)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)

	trace := [][]float64{{0, 0.5}, {0.25, 1}}
	require.NoError(t, store.SaveActivityTrace(ctx, "run-1", trace))
	gotTrace, ok, err := store.GetActivityTrace(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, trace, gotTrace)
	_, ok, err = store.GetActivityTrace(ctx, "run-2")
	require.NoError(t, err)
	assert.False(t, ok)

	history := map[string][]float64{"input to input": {0.5, 0.75, 0.8}}
	require.NoError(t, store.SaveRatioHistory(ctx, "run-1", history))
	gotHistory, ok, err := store.GetRatioHistory(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, history, gotHistory)
}
