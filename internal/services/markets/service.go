// Package markets lists lending markets with search, filtering and sorting.
package markets

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

// DefaultMinSupplyUsdMillions hides markets smaller than $10M.
const DefaultMinSupplyUsdMillions = 10

var million = decimal.NewFromInt(1_000_000)

// SortField is a market column to sort by.
type SortField string

const (
	SortMarket      SortField = "market"
	SortTotalSupply SortField = "totalSupply"
	SortTotalBorrow SortField = "totalBorrow"
	SortLiquidity   SortField = "liquidity"
	SortUtilization SortField = "utilization"
	SortLLTV        SortField = "lltv"
	SortNetApy      SortField = "netApy"
)

// ParseSortField validates a sort column name. Empty selects totalSupply.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.TrimSpace(s)); f {
	case "":
		return SortTotalSupply, nil
	case SortMarket, SortTotalSupply, SortTotalBorrow, SortLiquidity, SortUtilization, SortLLTV, SortNetApy:
		return f, nil
	default:
		return "", errors.Errorf("unknown sort field %q", s)
	}
}

// Query selects and orders markets.
type Query struct {
	Search               string
	IncludeIdle          bool
	MinSupplyUsdMillions decimal.Decimal
	Sort                 SortField
	Ascending            bool
}

// DefaultQuery is the listing shown without user input.
func DefaultQuery() Query {
	return Query{
		MinSupplyUsdMillions: decimal.NewFromInt(DefaultMinSupplyUsdMillions),
		Sort:                 SortTotalSupply,
	}
}

type marketsAPI interface {
	FetchMarkets(ctx context.Context, chain domain.ChainID) ([]domain.Market, error)
}

// Service lists markets.
type Service struct {
	l   *zap.Logger
	api marketsAPI
}

// NewService creates a markets service.
func NewService(l *zap.Logger, api marketsAPI) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{l: l, api: api}
}

// List fetches markets for chain and applies q.
func (s *Service) List(ctx context.Context, chain domain.ChainID, q Query) ([]domain.Market, error) {
	all, err := s.api.FetchMarkets(ctx, chain)
	if err != nil {
		return nil, errors.Wrap(err, "list markets")
	}
	out := Apply(all, q)
	s.l.Debug("markets listed", zap.Int("fetched", len(all)), zap.Int("shown", len(out)))
	return out, nil
}

// Find returns the market with the given key from the unfiltered listing.
func (s *Service) Find(ctx context.Context, chain domain.ChainID, marketKey string) (domain.Market, bool, error) {
	all, err := s.api.FetchMarkets(ctx, chain)
	if err != nil {
		return domain.Market{}, false, errors.Wrap(err, "find market")
	}
	for _, m := range all {
		if strings.EqualFold(m.UniqueKey, marketKey) {
			return m, true, nil
		}
	}
	return domain.Market{}, false, nil
}

// Apply filters and sorts markets without mutating the input.
func Apply(all []domain.Market, q Query) []domain.Market {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	minSupply := q.MinSupplyUsdMillions.Mul(million)

	out := make([]domain.Market, 0, len(all))
	for _, m := range all {
		if search != "" && !matches(m, search) {
			continue
		}
		if !q.IncludeIdle && m.IsIdle() {
			continue
		}
		if m.SupplyUsd().LessThan(minSupply) {
			continue
		}
		out = append(out, m)
	}

	field := q.Sort
	if field == "" {
		field = SortTotalSupply
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j], field)
		if q.Ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

func matches(m domain.Market, search string) bool {
	if strings.Contains(strings.ToLower(m.LoanAsset.Symbol), search) {
		return true
	}
	return m.CollateralAsset != nil && strings.Contains(strings.ToLower(m.CollateralAsset.Symbol), search)
}

func compare(a, b domain.Market, field SortField) int {
	switch field {
	case SortMarket:
		return strings.Compare(strings.ToLower(a.LoanAsset.Symbol), strings.ToLower(b.LoanAsset.Symbol))
	case SortTotalBorrow:
		return a.BorrowUsd().Cmp(b.BorrowUsd())
	case SortLiquidity:
		return a.LiquidityUsd().Cmp(b.LiquidityUsd())
	case SortUtilization:
		return a.State.Utilization.Cmp(b.State.Utilization)
	case SortLLTV:
		return a.LLTVRatio().Cmp(b.LLTVRatio())
	case SortNetApy:
		return a.State.NetSupplyApy.Cmp(b.State.NetSupplyApy)
	default:
		return a.SupplyUsd().Cmp(b.SupplyUsd())
	}
}
