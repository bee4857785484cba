package kv

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// LevelStore is a Store backed by a LevelDB directory.
type LevelStore struct {
	db *leveldb.DB
}

// NewLevelStore creates or opens a LevelDB database at path.
func NewLevelStore(path string) (*LevelStore, error) {
	if path == "" {
		path = "./data/leveldb"
	}
	db, err := leveldb.OpenFile(filepath.Clean(path), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb at %s", path)
	}
	return &LevelStore{db: db}, nil
}

// Get retrieves the value stored for key.
func (s *LevelStore) Get(key string) ([]byte, error) {
	value, err := s.db.Get([]byte(key), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Wrapf(err, "leveldb get %s", key)
	}
	return value, nil
}

// Put inserts or replaces the value for key.
func (s *LevelStore) Put(key string, value []byte) error {
	if key == "" {
		return errors.New("leveldb store key is required")
	}
	return errors.Wrapf(s.db.Put([]byte(key), value, nil), "leveldb put %s", key)
}

// Close closes the database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
