// Package kv provides the string-keyed byte stores the ledger persists into.
package kv

import "github.com/pkg/errors"

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal durable key-value store.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendWAL     Backend = "wal"
	BackendLevelDB Backend = "leveldb"
)

// Open creates the store for the given backend rooted at dir.
func Open(backend Backend, dir string) (Store, error) {
	switch backend {
	case BackendWAL, "":
		return NewWALStore(dir)
	case BackendLevelDB:
		return NewLevelStore(dir)
	default:
		return nil, errors.Errorf("unknown storage backend %q", backend)
	}
}
