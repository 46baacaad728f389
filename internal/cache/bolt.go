package cache

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// BoltStore keeps all entries in a single bbolt file, one bucket per renderer.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the bbolt file at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{NoFreelistSync: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt cache: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get returns the entry for a key
func (s *BoltStore) Get(renderer, keyHash string) ([]byte, error) {
	var v []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(renderer))
		if b == nil {
			return nil
		}
		if data := b.Get([]byte(keyHash)); data != nil {
			v = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read bolt cache: %w", err)
	}

	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// Put stores the entry for a key
func (s *BoltStore) Put(renderer, keyHash string, data []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(renderer))
		if err != nil {
			return fmt.Errorf("creating bucket in Bolt: %w", err)
		}
		return b.Put([]byte(keyHash), data)
	})
	if err != nil {
		return fmt.Errorf("updating value for key %s in bucket %s: %w", keyHash, renderer, err)
	}
	return nil
}

// List returns all entries in the store
func (s *BoltStore) List() ([]EntryInfo, error) {
	var entries []EntryInfo

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			return b.ForEach(func(k, v []byte) error {
				entries = append(entries, EntryInfo{
					Renderer: string(name),
					KeyHash:  string(k),
					Size:     int64(len(v)),
				})
				return nil
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bolt cache: %w", err)
	}
	return entries, nil
}

// Delete removes the entry for a key
func (s *BoltStore) Delete(renderer, keyHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(renderer))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(keyHash))
	})
}
