package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/sitetime/internal/storage"
	"go.etcd.io/bbolt"
)

// bucketLocal plays the role of the browser's local storage area.
const bucketLocal = "local"

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db      *bbolt.DB
	key     string
	changes *storage.Broadcaster
}

// Open opens a BoltDB-backed store. The map is kept under key.
func Open(path, key string) (*Store, error) {
	if key == "" {
		key = storage.DefaultKey
	}
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db, key: key, changes: storage.NewBroadcaster()}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketLocal)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketLocal, err)
		}
		return nil
	})
}

// Load returns the persisted map or storage.ErrNotFound.
func (s *Store) Load(ctx context.Context) (storage.AccumulatedMap, error) {
	value, err := getBucketValue(ctx, s.db, bucketLocal, s.key)
	if err != nil {
		return nil, err
	}
	return storage.Decode(value)
}

// Save replaces the persisted map and notifies subscribers.
func (s *Store) Save(ctx context.Context, data storage.AccumulatedMap) error {
	encoded, err := storage.Encode(data)
	if err != nil {
		return err
	}
	if err := putBucketValue(ctx, s.db, bucketLocal, s.key, encoded); err != nil {
		return err
	}
	s.changes.Publish(data)
	return nil
}

// Subscribe reports writes made through this Store. bolt locks the file
// exclusively, so there are no writers in other processes to observe.
func (s *Store) Subscribe(ctx context.Context) (<-chan storage.AccumulatedMap, error) {
	return s.changes.Subscribe(ctx), nil
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	s.changes.Close()
	return s.db.Close()
}

func getBucketValue(ctx context.Context, db *bbolt.DB, bucket string, key string) ([]byte, error) {
	var out []byte
	err := db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}
		// value is only valid for the life of the transaction.
		out = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func putBucketValue(ctx context.Context, db *bbolt.DB, bucket string, key string, value []byte) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucket)
		}
		return b.Put([]byte(key), value)
	})
}
