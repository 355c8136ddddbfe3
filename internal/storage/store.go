package storage

import (
	"context"
	"errors"

	"neuralsim/internal/model"
)

var (
	ErrNotInitialized = errors.New("store is not initialized")
	ErrUnsupported    = errors.New("unsupported store backend")
)

// Store persists network snapshots and the results of simulation runs.
// Getters report absence with a false flag rather than an error.
type Store interface {
	Init(ctx context.Context) error
	SaveNetwork(ctx context.Context, network model.NetworkRecord) error
	GetNetwork(ctx context.Context, id string) (model.NetworkRecord, bool, error)
	ListNetworks(ctx context.Context) ([]string, error)
	DeleteNetwork(ctx context.Context, id string) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveActivityTrace(ctx context.Context, runID string, trace [][]float64) error
	GetActivityTrace(ctx context.Context, runID string) ([][]float64, bool, error)
	SaveRatioHistory(ctx context.Context, runID string, history map[string][]float64) error
	GetRatioHistory(ctx context.Context, runID string) (map[string][]float64, bool, error)
}
