package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"neuralsim/internal/model"
)

const (
	networkPrefix = "network/"
	runPrefix     = "run/"
	tracePrefix   = "trace/"
	ratioPrefix   = "ratios/"
)

// BadgerOptions configures a BadgerStore. An empty Path implies InMemory.
type BadgerOptions struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
}

// BadgerStore keeps every record as a JSON payload under a kind prefix.
type BadgerStore struct {
	opts BadgerOptions

	mu sync.RWMutex
	db *badger.DB
}

func NewBadgerStore(opts BadgerOptions) *BadgerStore {
	if opts.Path == "" {
		opts.InMemory = true
	}
	return &BadgerStore{opts: opts}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Badger reports compactions and value log replays at info; keep them at debug.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (s *BadgerStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db != nil {
		return nil
	}

	var opts badger.Options
	if s.opts.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.opts.Path, 0o750); err != nil {
			return fmt.Errorf("create badger directory %s: %w", s.opts.Path, err)
		}
		opts = badger.DefaultOptions(s.opts.Path)
	}
	opts = opts.WithSyncWrites(s.opts.SyncWrites).WithNumVersionsToKeep(1)
	if s.opts.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: s.opts.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	s.db = db
	return nil
}

func (s *BadgerStore) SaveNetwork(ctx context.Context, network model.NetworkRecord) error {
	payload, err := EncodeNetwork(network)
	if err != nil {
		return err
	}
	return s.put(ctx, networkPrefix+network.ID, payload)
}

func (s *BadgerStore) GetNetwork(ctx context.Context, id string) (model.NetworkRecord, bool, error) {
	payload, ok, err := s.get(ctx, networkPrefix+id)
	if err != nil || !ok {
		return model.NetworkRecord{}, false, err
	}

	network, err := DecodeNetwork(payload)
	if err != nil {
		return model.NetworkRecord{}, false, fmt.Errorf("decode network %s: %w", id, err)
	}
	return network, true, nil
}

func (s *BadgerStore) ListNetworks(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.scan(ctx, networkPrefix, func(key string, _ []byte) error {
		ids = append(ids, key[len(networkPrefix):])
		return nil
	})
	return ids, err
}

func (s *BadgerStore) DeleteNetwork(ctx context.Context, id string) error {
	db, err := s.getDB(ctx)
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(networkPrefix + id))
	})
}

func (s *BadgerStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return s.put(ctx, runPrefix+run.ID, payload)
}

func (s *BadgerStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	payload, ok, err := s.get(ctx, runPrefix+id)
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *BadgerStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	var runs []model.RunRecord
	err := s.scan(ctx, runPrefix, func(key string, payload []byte) error {
		run, err := DecodeRun(payload)
		if err != nil {
			return fmt.Errorf("decode run %s: %w", key[len(runPrefix):], err)
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (s *BadgerStore) SaveActivityTrace(ctx context.Context, runID string, trace [][]float64) error {
	payload, err := EncodeActivityTrace(trace)
	if err != nil {
		return err
	}
	return s.put(ctx, tracePrefix+runID, payload)
}

func (s *BadgerStore) GetActivityTrace(ctx context.Context, runID string) ([][]float64, bool, error) {
	payload, ok, err := s.get(ctx, tracePrefix+runID)
	if err != nil || !ok {
		return nil, false, err
	}

	trace, err := DecodeActivityTrace(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode activity trace %s: %w", runID, err)
	}
	return trace, true, nil
}

func (s *BadgerStore) SaveRatioHistory(ctx context.Context, runID string, history map[string][]float64) error {
	payload, err := EncodeRatioHistory(history)
	if err != nil {
		return err
	}
	return s.put(ctx, ratioPrefix+runID, payload)
}

func (s *BadgerStore) GetRatioHistory(ctx context.Context, runID string) (map[string][]float64, bool, error) {
	payload, ok, err := s.get(ctx, ratioPrefix+runID)
	if err != nil || !ok {
		return nil, false, err
	}

	history, err := DecodeRatioHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode ratio history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BadgerStore) getDB(ctx context.Context) (*badger.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func (s *BadgerStore) put(ctx context.Context, key string, payload []byte) error {
	db, err := s.getDB(ctx)
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
}

func (s *BadgerStore) get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.getDB(ctx)
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// scan visits every key under prefix in key order.
func (s *BadgerStore) scan(ctx context.Context, prefix string, visit func(key string, payload []byte) error) error {
	db, err := s.getDB(ctx)
	if err != nil {
		return err
	}
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := visit(string(item.KeyCopy(nil)), payload); err != nil {
				return err
			}
		}
		return nil
	})
}
