// Package rewards aggregates claimable incentives from Merkl and Morpho.
package rewards

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

type rewardsSource interface {
	FetchRewards(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.RewardItem, error)
}

type pricer interface {
	MorphoPrice(ctx context.Context) decimal.Decimal
}

// Summary is the rewards view for one wallet on one chain.
type Summary struct {
	Merkl            []domain.AggregatedReward `json:"merkl"`
	Morpho           []domain.AggregatedReward `json:"morpho"`
	ClaimableNowUsd  decimal.Decimal           `json:"claimableNowUsd"`
	ClaimableNextUsd decimal.Decimal           `json:"claimableNextUsd"`
}

// All returns both sources concatenated, Merkl first.
func (s Summary) All() []domain.AggregatedReward {
	out := make([]domain.AggregatedReward, 0, len(s.Merkl)+len(s.Morpho))
	out = append(out, s.Merkl...)
	return append(out, s.Morpho...)
}

// Service fetches rewards from every source in parallel.
type Service struct {
	l      *zap.Logger
	merkl  rewardsSource
	morpho rewardsSource
	price  pricer
}

// NewService creates a rewards service.
func NewService(l *zap.Logger, merkl, morpho rewardsSource, price pricer) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{l: l, merkl: merkl, morpho: morpho, price: price}
}

// Rewards never fails: a source that errors contributes an empty list.
func (s *Service) Rewards(ctx context.Context, owner common.Address, chain domain.ChainID) Summary {
	var (
		merklItems  []domain.RewardItem
		morphoItems []domain.RewardItem
		morphoPrice = decimal.Zero
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		merklItems = s.fetch(gctx, "merkl", s.merkl, owner, chain)
		return nil
	})
	g.Go(func() error {
		morphoItems = s.fetch(gctx, "morpho", s.morpho, owner, chain)
		return nil
	})
	if s.price != nil {
		g.Go(func() error {
			morphoPrice = s.price.MorphoPrice(gctx)
			return nil
		})
	}
	_ = g.Wait()

	for i := range morphoItems {
		morphoItems[i].Price = morphoPrice
	}

	summary := Summary{
		Merkl:  domain.AggregateRewards(merklItems),
		Morpho: domain.AggregateRewards(morphoItems),
	}
	summary.ClaimableNowUsd, summary.ClaimableNextUsd = domain.RewardTotals(summary.All())
	return summary
}

func (s *Service) fetch(ctx context.Context, name string, src rewardsSource, owner common.Address, chain domain.ChainID) []domain.RewardItem {
	if src == nil {
		return nil
	}
	items, err := src.FetchRewards(ctx, owner, chain)
	if err != nil {
		s.l.Warn("rewards source unavailable", zap.String("source", name), zap.Error(err))
		return nil
	}
	return items
}
