package kv

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultWALDir      = "./data/wal"
	walSegmentLimit    = 1000
	walMaxSegments     = 1000
	walDirPermissions  = 0o755
	walSegmentFilename = "ledger_"
)

// WALStore keeps every value in an append-only WAL and serves reads from an
// in-memory index rebuilt on open. The latest write for a key wins.
type WALStore struct {
	wal   *gowal.Wal
	mu    sync.RWMutex
	index map[string][]byte
}

// NewWALStore opens (or creates) a WAL-backed store under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultWALDir
	}
	if err := os.MkdirAll(dir, walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure WAL directory %s", dir)
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           walSegmentFilename,
		SegmentThreshold: walSegmentLimit,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	index := make(map[string][]byte)
	for msg := range wal.Iterator() {
		index[msg.Key] = msg.Value
	}

	return &WALStore{wal: wal, index: index}, nil
}

// Get returns the last value written for key.
func (s *WALStore) Get(key string) ([]byte, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("wal store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.index[key]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put appends value for key to the WAL.
func (s *WALStore) Put(key string, value []byte) error {
	if s == nil || s.wal == nil {
		return errors.New("wal store is not initialized")
	}
	if key == "" {
		return errors.New("wal store key is required")
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, stored); err != nil {
		return errors.Wrapf(err, "write %s to WAL", key)
	}
	s.index[key] = stored

	return nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("wal store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
