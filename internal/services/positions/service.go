// Package positions joins live positions with transaction history and
// derives per-position profit for display.
package positions

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/metrics"
)

type morphoAPI interface {
	FetchUserPositions(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.UserPosition, error)
	FetchUserTransactions(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.TransactionRecord, error)
}

type localLedger interface {
	QueryMarket(owner common.Address, chain domain.ChainID, marketKey string) []domain.TransactionRecord
}

// Position is a live position with its resolved history and profit.
type Position struct {
	domain.UserPosition
	Source domain.HistorySourceKind
	// Profit is nil when no history is available for the market.
	Profit *domain.PositionCostBasis
}

// Service computes positions for a wallet.
type Service struct {
	l       *zap.Logger
	api     morphoAPI
	ledger  localLedger
	metrics *metrics.Metrics
}

// NewService creates a positions service.
func NewService(l *zap.Logger, api morphoAPI, ledger localLedger, m *metrics.Metrics) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{l: l, api: api, ledger: ledger, metrics: m}
}

// Positions fetches live positions and authoritative history in parallel,
// then resolves one history source per position. A failed history fetch
// means "unavailable", never "empty".
func (s *Service) Positions(ctx context.Context, owner common.Address, chain domain.ChainID) ([]Position, error) {
	var (
		live          []domain.UserPosition
		history       []domain.TransactionRecord
		historyLoaded bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		live, err = s.api.FetchUserPositions(gctx, owner, chain)
		return errors.Wrap(err, "fetch positions")
	})
	g.Go(func() error {
		records, err := s.api.FetchUserTransactions(gctx, owner, chain)
		if err != nil {
			s.l.Warn("transaction history unavailable, falling back to local ledger", zap.Error(err))
			return nil
		}
		history, historyLoaded = records, true
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	loadLocal := func(marketKey string) []domain.TransactionRecord {
		if s.ledger == nil {
			return nil
		}
		return s.ledger.QueryMarket(owner, chain, marketKey)
	}

	out := make([]Position, 0, len(live))
	for _, p := range live {
		key := p.Market.UniqueKey
		src := domain.ResolveHistory(history, historyLoaded, key, loadLocal)
		s.metrics.HistorySource(src.Kind.String())

		out = append(out, Position{
			UserPosition: p,
			Source:       src.Kind,
			Profit:       src.Profit(key, p.CurrentValue()),
		})
	}
	return out, nil
}
