package markets

import (
	"context"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) FetchMarkets(ctx context.Context, chain domain.ChainID) ([]domain.Market, error) {
	args := m.Called(ctx, chain)
	markets, _ := args.Get(0).([]domain.Market)
	return markets, args.Error(1)
}

// market builds a USD-priced market; supply and borrow are whole dollars.
func market(key, loan, collateral string, supplyUsd, borrowUsd int64, utilization, netApy string, lltvPct int64) domain.Market {
	one := decimal.NewFromInt(1)
	m := domain.Market{
		UniqueKey: key,
		LLTV:      new(big.Int).Mul(big.NewInt(lltvPct), big.NewInt(10_000_000_000_000_000)),
		LoanAsset: domain.Token{Symbol: loan, Decimals: 0, PriceUsd: &one},
		State: domain.MarketState{
			SupplyAssets: big.NewInt(supplyUsd),
			BorrowAssets: big.NewInt(borrowUsd),
			Utilization:  decimal.RequireFromString(utilization),
			NetSupplyApy: decimal.RequireFromString(netApy),
		},
	}
	if collateral != "" {
		m.CollateralAsset = &domain.Token{Symbol: collateral, Decimals: 18}
	}
	return m
}

func fixtures() []domain.Market {
	return []domain.Market{
		market("a", "USDC", "WETH", 50_000_000, 40_000_000, "0.8", "0.05", 86),
		market("b", "WETH", "wstETH", 200_000_000, 190_000_000, "0.95", "0.02", 94),
		market("c", "USDT", "WBTC", 12_000_000, 1_000_000, "0.1", "0.07", 77),
		market("d", "DAI", "sDAI", 5_000_000, 4_000_000, "0.8", "0.09", 96),
		market("idle", "USDC", "", 900_000_000, 0, "0", "0.01", 0),
	}
}

func keys(markets []domain.Market) []string {
	out := make([]string, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.UniqueKey)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		expected []string
	}{
		{name: "default drops idle and small, sorts by supply desc", query: DefaultQuery(), expected: []string{"b", "a", "c"}},
		{name: "search matches collateral", query: Query{Search: "wst", Sort: SortTotalSupply}, expected: []string{"b"}},
		{name: "search is case insensitive on loan", query: Query{Search: "usd", Sort: SortTotalSupply}, expected: []string{"a", "c"}},
		{name: "include idle", query: Query{IncludeIdle: true}, expected: []string{"idle", "b", "a", "c", "d"}},
		{name: "zero minimum keeps small", query: Query{Sort: SortNetApy}, expected: []string{"d", "c", "a", "b"}},
		{name: "market ascending", query: Query{Sort: SortMarket, Ascending: true}, expected: []string{"d", "a", "c", "b"}},
		{name: "borrow desc", query: Query{Sort: SortTotalBorrow}, expected: []string{"b", "a", "d", "c"}},
		{name: "liquidity asc", query: Query{Sort: SortLiquidity, Ascending: true}, expected: []string{"d", "a", "b", "c"}},
		{name: "utilization desc", query: Query{Sort: SortUtilization}, expected: []string{"b", "a", "d", "c"}},
		{name: "lltv asc", query: Query{Sort: SortLLTV, Ascending: true}, expected: []string{"c", "a", "b", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := fixtures()
			got := Apply(input, tt.query)
			assert.Equal(t, tt.expected, keys(got))
			assert.Equal(t, "a", input[0].UniqueKey, "input must not be reordered")
		})
	}
}

func TestParseSortField(t *testing.T) {
	f, err := ParseSortField("")
	require.NoError(t, err)
	assert.Equal(t, SortTotalSupply, f)

	f, err = ParseSortField("netApy")
	require.NoError(t, err)
	assert.Equal(t, SortNetApy, f)

	_, err = ParseSortField("volume")
	assert.Error(t, err)
}

func TestService(t *testing.T) {
	api := &mockAPI{}
	api.On("FetchMarkets", mock.Anything, domain.ChainBase).Return(fixtures(), nil)

	svc := NewService(zap.NewNop(), api)
	got, err := svc.List(context.Background(), domain.ChainBase, DefaultQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, keys(got))

	m, ok, err := svc.Find(context.Background(), domain.ChainBase, "D")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "DAI", m.LoanAsset.Symbol)

	_, ok, err = svc.Find(context.Background(), domain.ChainBase, "zzz")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Error(t *testing.T) {
	api := &mockAPI{}
	api.On("FetchMarkets", mock.Anything, domain.ChainEthereum).Return(nil, errors.New("down"))

	_, err := NewService(zap.NewNop(), api).List(context.Background(), domain.ChainEthereum, DefaultQuery())
	assert.Error(t, err)
}

func TestToRows(t *testing.T) {
	rows := ToRows(fixtures()[:1], domain.GetChainConfig(domain.ChainBase))
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, "$50.00M", r.TotalSupply)
	assert.Equal(t, "$40.00M", r.TotalBorrow)
	assert.Equal(t, "$10.00M", r.Liquidity)
	assert.Equal(t, "80.00%", r.Utilization)
	assert.Equal(t, "86.00%", r.LLTV)
	assert.Equal(t, "5.00%", r.NetApy)
	assert.Equal(t, "https://app.morpho.org/base/market/a/USDC-WETH", r.MarketURL)
}
