package positions

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

var owner = common.HexToAddress("0x0000000000000000000000000000000000000abc")

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) FetchUserPositions(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.UserPosition, error) {
	args := m.Called(ctx, owner, chain)
	positions, _ := args.Get(0).([]domain.UserPosition)
	return positions, args.Error(1)
}

func (m *mockAPI) FetchUserTransactions(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.TransactionRecord, error) {
	args := m.Called(ctx, owner, chain)
	records, _ := args.Get(0).([]domain.TransactionRecord)
	return records, args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) QueryMarket(owner common.Address, chain domain.ChainID, marketKey string) []domain.TransactionRecord {
	args := m.Called(owner, chain, marketKey)
	records, _ := args.Get(0).([]domain.TransactionRecord)
	return records
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func position(key string, supplyAssets int64) domain.UserPosition {
	return domain.UserPosition{
		Market: domain.Market{
			UniqueKey:       key,
			LLTV:            big.NewInt(860_000_000_000_000_000),
			LoanAsset:       domain.Token{Symbol: "USDC", Decimals: 2, PriceUsd: price("1")},
			CollateralAsset: &domain.Token{Symbol: "WETH", Decimals: 18},
			State: domain.MarketState{
				Utilization:  decimal.RequireFromString("0.9"),
				NetSupplyApy: decimal.RequireFromString("0.0512"),
			},
		},
		SupplyAssets: big.NewInt(supplyAssets),
		SupplyShares: big.NewInt(supplyAssets),
	}
}

func tx(kind domain.TxKind, key string, assets uint64, shares *uint64, ts int64) domain.TransactionRecord {
	r := domain.TransactionRecord{
		Kind:        kind,
		MarketKey:   key,
		AssetAmount: uint256.NewInt(assets),
		Timestamp:   ts,
	}
	if shares != nil {
		r.ShareAmount = uint256.NewInt(*shares)
	}
	return r
}

func u(v uint64) *uint64 { return &v }

func TestService_Positions(t *testing.T) {
	t.Run("authoritative history is used exclusively", func(t *testing.T) {
		api := &mockAPI{}
		ledger := &mockLedger{}
		api.On("FetchUserPositions", mock.Anything, owner, domain.ChainEthereum).
			Return([]domain.UserPosition{position("0xm1", 1600)}, nil)
		api.On("FetchUserTransactions", mock.Anything, owner, domain.ChainEthereum).
			Return([]domain.TransactionRecord{
				tx(domain.TxSupply, "0xm1", 1000, u(1000), 1),
				tx(domain.TxSupply, "0xm1", 500, u(500), 2),
			}, nil)

		svc := NewService(zap.NewNop(), api, ledger, nil)
		got, err := svc.Positions(context.Background(), owner, domain.ChainEthereum)
		require.NoError(t, err)
		require.Len(t, got, 1)

		assert.Equal(t, domain.SourceAuthoritative, got[0].Source)
		require.NotNil(t, got[0].Profit)
		assert.Equal(t, "1500", got[0].Profit.NetDeposited.String())
		assert.Equal(t, "100", got[0].Profit.Profit.String())
		ledger.AssertNotCalled(t, "QueryMarket", mock.Anything, mock.Anything, mock.Anything)
		api.AssertExpectations(t)
	})

	t.Run("history failure falls back to local ledger", func(t *testing.T) {
		api := &mockAPI{}
		ledger := &mockLedger{}
		api.On("FetchUserPositions", mock.Anything, owner, domain.ChainBase).
			Return([]domain.UserPosition{position("0xm1", 210)}, nil)
		api.On("FetchUserTransactions", mock.Anything, owner, domain.ChainBase).
			Return(nil, errors.New("timeout"))
		ledger.On("QueryMarket", owner, domain.ChainBase, "0xm1").
			Return([]domain.TransactionRecord{tx(domain.TxSupply, "0xm1", 200, nil, 1_700_000_000_000)})

		svc := NewService(zap.NewNop(), api, ledger, nil)
		got, err := svc.Positions(context.Background(), owner, domain.ChainBase)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, domain.SourceLocal, got[0].Source)
		require.NotNil(t, got[0].Profit)
		assert.Equal(t, "10", got[0].Profit.Profit.String())
		ledger.AssertExpectations(t)
	})

	t.Run("no history anywhere yields nil profit", func(t *testing.T) {
		api := &mockAPI{}
		ledger := &mockLedger{}
		api.On("FetchUserPositions", mock.Anything, owner, domain.ChainEthereum).
			Return([]domain.UserPosition{position("0xm2", 500)}, nil)
		api.On("FetchUserTransactions", mock.Anything, owner, domain.ChainEthereum).
			Return([]domain.TransactionRecord{tx(domain.TxSupply, "0xother", 1, u(1), 1)}, nil)
		ledger.On("QueryMarket", owner, domain.ChainEthereum, "0xm2").Return(nil)

		svc := NewService(zap.NewNop(), api, ledger, nil)
		got, err := svc.Positions(context.Background(), owner, domain.ChainEthereum)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, domain.SourceUnavailable, got[0].Source)
		assert.Nil(t, got[0].Profit)
	})

	t.Run("positions failure is an error", func(t *testing.T) {
		api := &mockAPI{}
		api.On("FetchUserPositions", mock.Anything, owner, domain.ChainEthereum).
			Return(nil, errors.New("down"))
		api.On("FetchUserTransactions", mock.Anything, owner, domain.ChainEthereum).
			Return(nil, nil).Maybe()

		svc := NewService(zap.NewNop(), api, nil, nil)
		_, err := svc.Positions(context.Background(), owner, domain.ChainEthereum)
		assert.Error(t, err)
	})
}

func TestToRow(t *testing.T) {
	chain := domain.GetChainConfig(domain.ChainEthereum)

	t.Run("gain", func(t *testing.T) {
		p := Position{
			UserPosition: position("0xm1", 1600),
			Source:       domain.SourceAuthoritative,
			Profit: domain.ComputeProfit([]domain.TransactionRecord{
				tx(domain.TxSupply, "0xm1", 1000, u(1000), 1),
				tx(domain.TxSupply, "0xm1", 500, u(500), 2),
			}, "0xm1", big.NewInt(1600)),
		}
		row := ToRow(p, chain)

		assert.Equal(t, "15.00", row.Average)
		assert.Equal(t, "16.00", row.PositionTokens)
		assert.Equal(t, "$16.00", row.PositionUsd)
		assert.Equal(t, "+1.00", row.Profit)
		assert.Equal(t, "+6.66%", row.ProfitPercent)
		assert.Equal(t, ProfitPositive, row.ProfitSign)
		assert.Equal(t, "90.00%", row.Utilization)
		assert.Equal(t, "86.00%", row.LLTV)
		assert.Equal(t, "5.12%", row.NetApy)
		assert.Equal(t, "authoritative", row.Source)
		assert.Equal(t, "https://app.morpho.org/ethereum/market/0xm1/USDC-WETH", row.MarketURL)
	})

	t.Run("loss", func(t *testing.T) {
		p := Position{
			UserPosition: position("0xm1", 950),
			Source:       domain.SourceLocal,
			Profit:       domain.ComputeProfit([]domain.TransactionRecord{tx(domain.TxSupply, "0xm1", 1000, nil, 1)}, "0xm1", big.NewInt(950)),
		}
		row := ToRow(p, chain)
		assert.Equal(t, "-0.50", row.Profit)
		assert.Equal(t, "-5.00%", row.ProfitPercent)
		assert.Equal(t, ProfitNegative, row.ProfitSign)
	})

	t.Run("no history renders neutral placeholders", func(t *testing.T) {
		row := ToRow(Position{UserPosition: position("0xm1", 500)}, chain)
		assert.Equal(t, Placeholder, row.Average)
		assert.Equal(t, Placeholder, row.Profit)
		assert.Empty(t, row.ProfitPercent)
		assert.Equal(t, ProfitNeutral, row.ProfitSign)
		assert.Equal(t, "unavailable", row.Source)
	})

	t.Run("zero profit is neutral", func(t *testing.T) {
		p := Position{
			UserPosition: position("0xm1", 1000),
			Profit:       domain.ComputeProfit([]domain.TransactionRecord{tx(domain.TxSupply, "0xm1", 1000, u(1000), 1)}, "0xm1", big.NewInt(1000)),
		}
		row := ToRow(p, chain)
		assert.Equal(t, ProfitNeutral, row.ProfitSign)
		assert.Equal(t, "+0", row.Profit)
		assert.Equal(t, "+0.00%", row.ProfitPercent)
	})

	assert.Len(t, ToRows([]Position{{UserPosition: position("a", 1)}, {UserPosition: position("b", 2)}}, chain), 2)
}
