package storage

import (
	"context"
	"sort"
	"sync"

	"neuralsim/internal/model"
)

// MemoryStore keeps networks as encoded payloads so callers never share
// slices with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	networks    map[string][]byte
	runs        map[string]model.RunRecord
	traces      map[string][][]float64
	ratios      map[string]map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.networks = make(map[string][]byte)
	s.runs = make(map[string]model.RunRecord)
	s.traces = make(map[string][][]float64)
	s.ratios = make(map[string]map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveNetwork(_ context.Context, network model.NetworkRecord) error {
	payload, err := EncodeNetwork(network)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	s.networks[network.ID] = payload
	return nil
}

func (s *MemoryStore) GetNetwork(_ context.Context, id string) (model.NetworkRecord, bool, error) {
	s.mu.RLock()
	payload, ok := s.networks[id]
	s.mu.RUnlock()

	if !ok {
		return model.NetworkRecord{}, false, nil
	}
	network, err := DecodeNetwork(payload)
	if err != nil {
		return model.NetworkRecord{}, false, err
	}
	return network, true, nil
}

func (s *MemoryStore) ListNetworks(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.networks))
	for id := range s.networks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) DeleteNetwork(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.networks, id)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return copyRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, copyRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveActivityTrace(_ context.Context, runID string, trace [][]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	s.traces[runID] = copyTrace(trace)
	return nil
}

func (s *MemoryStore) GetActivityTrace(_ context.Context, runID string) ([][]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trace, ok := s.traces[runID]
	if !ok {
		return nil, false, nil
	}
	return copyTrace(trace), true, nil
}

func (s *MemoryStore) SaveRatioHistory(_ context.Context, runID string, history map[string][]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	s.ratios[runID] = copyHistory(history)
	return nil
}

func (s *MemoryStore) GetRatioHistory(_ context.Context, runID string) (map[string][]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.ratios[runID]
	if !ok {
		return nil, false, nil
	}
	return copyHistory(history), true, nil
}
