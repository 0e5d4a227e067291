package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the accumulated map has never been written.
var ErrNotFound = errors.New("storage: record not found")

// DefaultKey is the key the accumulated map is persisted under.
const DefaultKey = "domainData"

// Source is the read side of the store. The dashboard only ever needs this.
type Source interface {
	// Load returns the persisted map, or ErrNotFound when nothing was saved yet.
	Load(ctx context.Context) (AccumulatedMap, error)
	// Subscribe delivers the full map after every write until ctx is done.
	Subscribe(ctx context.Context) (<-chan AccumulatedMap, error)
}

// Store represents the root storage interface.
type Store interface {
	Source
	// Save replaces the persisted map as a whole.
	Save(ctx context.Context, data AccumulatedMap) error
	Close() error
}

// LoadOrEmpty loads the map from src, treating a missing value as empty.
func LoadOrEmpty(ctx context.Context, src Source) (AccumulatedMap, error) {
	data, err := src.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return AccumulatedMap{}, nil
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = AccumulatedMap{}
	}
	return data, nil
}
