package storage

import (
	"fmt"
	"log/slog"
)

// NewStore builds an uninitialized backend. path is the SQLite file or the
// Badger directory; an empty Badger path keeps the database in memory.
func NewStore(kind, path string) (Store, error) {
	return NewStoreWithLogger(kind, path, nil)
}

// NewStoreWithLogger is NewStore with a logger for backends that emit their
// own diagnostics. Only Badger does today.
func NewStoreWithLogger(kind, path string, logger *slog.Logger) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(path)
	case "badger":
		return NewBadgerStore(BadgerOptions{Path: path, Logger: logger}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
