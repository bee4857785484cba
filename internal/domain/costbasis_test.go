package domain

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMarket = "0xmarket"

func supply(ts int64, assets, shares uint64) TransactionRecord {
	return TransactionRecord{
		Kind:        TxSupply,
		MarketKey:   testMarket,
		AssetAmount: uint256.NewInt(assets),
		ShareAmount: uint256.NewInt(shares),
		Timestamp:   ts,
	}
}

func withdraw(ts int64, assets, shares uint64) TransactionRecord {
	return TransactionRecord{
		Kind:        TxWithdraw,
		MarketKey:   testMarket,
		AssetAmount: uint256.NewInt(assets),
		ShareAmount: uint256.NewInt(shares),
		Timestamp:   ts,
	}
}

func assetsOnly(r TransactionRecord) TransactionRecord {
	r.ShareAmount = nil
	return r
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name         string
		records      []TransactionRecord
		supplied     int64
		withdrawn    int64
		net          int64
		resets       int
		shareTracked bool
	}{
		{
			name:         "two supplies",
			records:      []TransactionRecord{supply(1, 1000, 1000), supply(2, 500, 500)},
			supplied:     1500,
			net:          1500,
			shareTracked: true,
		},
		{
			name:         "partial withdraw",
			records:      []TransactionRecord{supply(1, 1000, 1000), withdraw(2, 400, 390)},
			supplied:     1000,
			withdrawn:    400,
			net:          600,
			shareTracked: true,
		},
		{
			name: "full exit resets the cycle",
			records: []TransactionRecord{
				supply(1, 1000, 1000),
				withdraw(2, 1000, 1000),
				supply(3, 200, 200),
			},
			supplied:     200,
			net:          200,
			resets:       1,
			shareTracked: true,
		},
		{
			name: "full exit with accrued interest",
			records: []TransactionRecord{
				supply(1, 1000, 1000),
				withdraw(2, 1050, 1000),
			},
			net:          0,
			resets:       1,
			shareTracked: true,
		},
		{
			name: "records are sorted by timestamp",
			records: []TransactionRecord{
				supply(3, 200, 200),
				withdraw(2, 1000, 1000),
				supply(1, 1000, 1000),
			},
			supplied:     200,
			net:          200,
			resets:       1,
			shareTracked: true,
		},
		{
			name: "without shares no reset is applied",
			records: []TransactionRecord{
				assetsOnly(supply(1, 1000, 0)),
				assetsOnly(withdraw(2, 1000, 0)),
				assetsOnly(supply(3, 200, 0)),
			},
			supplied:     1200,
			withdrawn:    1000,
			net:          200,
			shareTracked: false,
		},
		{
			name: "one record without shares disables resets",
			records: []TransactionRecord{
				supply(1, 1000, 1000),
				assetsOnly(withdraw(2, 1000, 0)),
			},
			supplied:     1000,
			withdrawn:    1000,
			net:          0,
			shareTracked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			basis, ok := Replay(tt.records)
			require.True(t, ok)
			assert.Equal(t, big.NewInt(tt.supplied).String(), basis.TotalSupplied.String())
			assert.Equal(t, big.NewInt(tt.withdrawn).String(), basis.TotalWithdrawn.String())
			assert.Equal(t, big.NewInt(tt.net).String(), basis.NetDeposited.String())
			assert.Equal(t, tt.resets, basis.Resets)
			assert.Equal(t, tt.shareTracked, basis.ShareTracked)
		})
	}
}

func TestReplay_Empty(t *testing.T) {
	_, ok := Replay(nil)
	assert.False(t, ok)
}

func TestReplay_DoesNotReorderInput(t *testing.T) {
	records := []TransactionRecord{supply(2, 1, 1), supply(1, 2, 2)}
	_, ok := Replay(records)
	require.True(t, ok)
	assert.Equal(t, int64(2), records[0].Timestamp)
}

func TestReplay_TiesKeepInputOrder(t *testing.T) {
	// same timestamp: exit first then re-enter, so only the re-entry remains
	records := []TransactionRecord{
		supply(1, 1000, 1000),
		withdraw(5, 1000, 1000),
		supply(5, 300, 300),
	}
	basis, ok := Replay(records)
	require.True(t, ok)
	assert.Equal(t, "300", basis.NetDeposited.String())

	// swapped order at the tie: supply lands before the exit, nothing closes
	records[1], records[2] = records[2], records[1]
	basis, ok = Replay(records)
	require.True(t, ok)
	assert.Equal(t, "300", basis.NetDeposited.String())
	assert.Equal(t, 0, basis.Resets)
}

func TestReplay_SuffixAfterResetMatchesStandaloneRun(t *testing.T) {
	prefix := []TransactionRecord{
		supply(1, 700, 690),
		supply(2, 300, 295),
		withdraw(3, 1020, 985),
	}
	suffix := []TransactionRecord{
		supply(4, 250, 240),
		withdraw(5, 50, 48),
		supply(6, 80, 77),
	}

	full, ok := Replay(append(append([]TransactionRecord{}, prefix...), suffix...))
	require.True(t, ok)
	alone, ok := Replay(suffix)
	require.True(t, ok)

	assert.Equal(t, alone.NetDeposited.String(), full.NetDeposited.String())
	assert.Equal(t, alone.TotalSupplied.String(), full.TotalSupplied.String())
	assert.Equal(t, alone.TotalWithdrawn.String(), full.TotalWithdrawn.String())
}

func TestComputeProfit(t *testing.T) {
	t.Run("supply twice then gain", func(t *testing.T) {
		records := []TransactionRecord{supply(1, 1000, 1000), supply(2, 500, 500)}
		res := ComputeProfit(records, testMarket, big.NewInt(1600))
		require.NotNil(t, res)
		assert.Equal(t, "1500", res.NetDeposited.String())
		assert.Equal(t, "100", res.Profit.String())
		assert.True(t, decimal.RequireFromString("6.66").Equal(res.ProfitPercent), "got %s", res.ProfitPercent)
	})

	t.Run("re-entry after full exit", func(t *testing.T) {
		records := []TransactionRecord{
			supply(1, 1000, 1000),
			withdraw(2, 1000, 1000),
			supply(3, 200, 200),
		}
		res := ComputeProfit(records, testMarket, big.NewInt(210))
		require.NotNil(t, res)
		assert.Equal(t, "200", res.NetDeposited.String())
		assert.Equal(t, "10", res.Profit.String())
		assert.True(t, decimal.NewFromInt(5).Equal(res.ProfitPercent), "got %s", res.ProfitPercent)
	})

	t.Run("no history is nil", func(t *testing.T) {
		assert.Nil(t, ComputeProfit(nil, testMarket, big.NewInt(500)))
		assert.Nil(t, ComputeProfit([]TransactionRecord{}, testMarket, big.NewInt(500)))
	})

	t.Run("other markets are ignored", func(t *testing.T) {
		other := supply(1, 1000, 1000)
		other.MarketKey = "0xother"
		assert.Nil(t, ComputeProfit([]TransactionRecord{other}, testMarket, big.NewInt(500)))
	})

	t.Run("zero net deposit has zero percent", func(t *testing.T) {
		records := []TransactionRecord{
			assetsOnly(supply(1, 1000, 0)),
			assetsOnly(withdraw(2, 1000, 0)),
		}
		res := ComputeProfit(records, testMarket, big.NewInt(40))
		require.NotNil(t, res)
		assert.Equal(t, "0", res.NetDeposited.String())
		assert.Equal(t, "40", res.Profit.String())
		assert.True(t, res.ProfitPercent.IsZero())
	})

	t.Run("negative net deposit has zero percent", func(t *testing.T) {
		records := []TransactionRecord{
			assetsOnly(supply(1, 1000, 0)),
			assetsOnly(withdraw(2, 1100, 0)),
		}
		res := ComputeProfit(records, testMarket, big.NewInt(0))
		require.NotNil(t, res)
		assert.Equal(t, "-100", res.NetDeposited.String())
		assert.True(t, res.ProfitPercent.IsZero())
	})

	t.Run("loss", func(t *testing.T) {
		records := []TransactionRecord{supply(1, 1000, 1000)}
		res := ComputeProfit(records, testMarket, big.NewInt(950))
		require.NotNil(t, res)
		assert.Equal(t, "-50", res.Profit.String())
		assert.True(t, decimal.NewFromInt(-5).Equal(res.ProfitPercent), "got %s", res.ProfitPercent)
	})

	t.Run("nil current value counts as zero", func(t *testing.T) {
		res := ComputeProfit([]TransactionRecord{supply(1, 10, 10)}, testMarket, nil)
		require.NotNil(t, res)
		assert.Equal(t, "-10", res.Profit.String())
	})
}
