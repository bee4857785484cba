// Package ledger is the per-wallet, per-chain journal of locally recorded
// supply and withdraw actions. It is a best-effort fallback: storage
// failures are logged and never returned to callers.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/metrics"
	"github.com/vadiminshakov/lendscope/internal/storage/kv"
)

// DefaultNamespace prefixes every ledger key.
const DefaultNamespace = "morpho-tools-transactions"

// ErrStorageUnavailable marks a ledger without a backing store. It is only
// logged; Append and Query never return it.
var ErrStorageUnavailable = errors.New("ledger storage is not configured")

// Store appends and queries transaction records scoped by (owner, chain).
type Store struct {
	l         *zap.Logger
	kv        kv.Store
	namespace string
	metrics   *metrics.Metrics
	mu        sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithNamespace overrides the key namespace.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

// WithMetrics attaches failure counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a ledger over the given key-value store. A nil kv store yields
// a ledger that accepts appends and always queries empty.
func New(l *zap.Logger, store kv.Store, opts ...Option) *Store {
	if l == nil {
		l = zap.NewNop()
	}
	s := &Store{
		l:         l,
		kv:        store,
		namespace: DefaultNamespace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key derives the storage key for a scope.
func (s *Store) Key(owner common.Address, chain domain.ChainID) string {
	return fmt.Sprintf("%s-%s-%d", s.namespace, strings.ToLower(owner.Hex()), chain)
}

// Append adds rec to the end of the scope's list and persists it immediately.
func (s *Store) Append(owner common.Address, chain domain.ChainID, rec domain.TransactionRecord) {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.Key(owner, chain)
	stored, err := s.load(key)
	if err != nil {
		s.degrade("append", key, err)
		return
	}

	stored = append(stored, toStored(rec))
	payload, err := json.Marshal(stored)
	if err != nil {
		s.degrade("append", key, errors.Wrap(err, "marshal ledger"))
		return
	}

	if err := s.put(key, payload); err != nil {
		s.degrade("append", key, err)
	}
}

// Query returns every record of the scope in insertion order.
func (s *Store) Query(owner common.Address, chain domain.ChainID) []domain.TransactionRecord {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.Key(owner, chain)
	stored, err := s.load(key)
	if err != nil {
		s.degrade("query", key, err)
		return nil
	}

	records := make([]domain.TransactionRecord, 0, len(stored))
	for _, sr := range stored {
		rec, err := sr.toDomain()
		if err != nil {
			s.l.Warn("skipping malformed ledger record", zap.String("key", key), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records
}

// QueryMarket returns the scope's records for one market in insertion order.
func (s *Store) QueryMarket(owner common.Address, chain domain.ChainID, marketKey string) []domain.TransactionRecord {
	return domain.FilterByMarket(s.Query(owner, chain), marketKey)
}

func (s *Store) load(key string) ([]storedRecord, error) {
	if s.kv == nil {
		return nil, nil
	}

	payload, err := s.kv.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read ledger")
	}

	var stored []storedRecord
	if err := json.Unmarshal(payload, &stored); err != nil {
		// corrupt payload behaves like an empty ledger
		s.l.Warn("discarding unreadable ledger", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return stored, nil
}

func (s *Store) put(key string, payload []byte) error {
	if s.kv == nil {
		return ErrStorageUnavailable
	}
	return errors.Wrap(s.kv.Put(key, payload), "write ledger")
}

func (s *Store) degrade(op, key string, err error) {
	s.metrics.LedgerFailure(op)
	s.l.Warn("ledger storage unavailable", zap.String("op", op), zap.String("key", key), zap.Error(err))
}
