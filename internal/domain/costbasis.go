package domain

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
)

const percentScale = 10000

// CostBasis is the replay result for the currently open cycle of a position.
type CostBasis struct {
	TotalSupplied  *big.Int
	TotalWithdrawn *big.Int
	// NetDeposited = TotalSupplied - TotalWithdrawn for the open cycle.
	NetDeposited *big.Int
	// ShareTracked is false when at least one record lacked shares, in which
	// case full-exit resets were not applied.
	ShareTracked bool
	// Resets counts full exits seen during replay.
	Resets int
}

// Replay accumulates records for a single market in ascending timestamp order.
// Ties keep their input order. Whenever the running share balance drops to
// zero or below, the cycle is closed and the totals restart from zero.
// The second return value is false when there is no history at all.
func Replay(records []TransactionRecord) (CostBasis, bool) {
	if len(records) == 0 {
		return CostBasis{}, false
	}

	ordered := make([]TransactionRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	shareTracked := true
	for _, r := range ordered {
		if !r.HasShares() {
			shareTracked = false
			break
		}
	}

	var (
		supplied  = new(big.Int)
		withdrawn = new(big.Int)
		shares    = new(big.Int)
		resets    int
	)

	for _, r := range ordered {
		switch r.Kind {
		case TxSupply:
			supplied.Add(supplied, r.Assets())
			shares.Add(shares, r.Shares())
		case TxWithdraw:
			withdrawn.Add(withdrawn, r.Assets())
			shares.Sub(shares, r.Shares())
		default:
			continue
		}

		if shareTracked && shares.Sign() <= 0 {
			supplied.SetInt64(0)
			withdrawn.SetInt64(0)
			shares.SetInt64(0)
			resets++
		}
	}

	return CostBasis{
		TotalSupplied:  supplied,
		TotalWithdrawn: withdrawn,
		NetDeposited:   new(big.Int).Sub(supplied, withdrawn),
		ShareTracked:   shareTracked,
		Resets:         resets,
	}, true
}

// PositionCostBasis is the derived profit view of one (wallet, chain, market).
type PositionCostBasis struct {
	CostBasis
	CurrentValue *big.Int
	// Profit = CurrentValue - NetDeposited, in asset units.
	Profit *big.Int
	// ProfitPercent is zero whenever NetDeposited <= 0.
	ProfitPercent decimal.Decimal
}

// ComputeProfit filters records to marketKey, replays them and derives profit
// against currentValue. It returns nil when the market has no history, which
// callers must render as "unknown" rather than as zero profit.
func ComputeProfit(records []TransactionRecord, marketKey string, currentValue *big.Int) *PositionCostBasis {
	basis, ok := Replay(FilterByMarket(records, marketKey))
	if !ok {
		return nil
	}

	current := new(big.Int)
	if currentValue != nil {
		current.Set(currentValue)
	}
	profit := new(big.Int).Sub(current, basis.NetDeposited)

	return &PositionCostBasis{
		CostBasis:     basis,
		CurrentValue:  current,
		Profit:        profit,
		ProfitPercent: ProfitPercent(profit, basis.NetDeposited),
	}
}

// ProfitPercent returns profit/netDeposited*100 with two decimals, computed as
// truncating integer division profit*10000/netDeposited. Non-positive net
// deposits yield zero.
func ProfitPercent(profit, netDeposited *big.Int) decimal.Decimal {
	if profit == nil || netDeposited == nil || netDeposited.Sign() <= 0 {
		return decimal.Zero
	}
	scaled := new(big.Int).Mul(profit, big.NewInt(percentScale))
	scaled.Quo(scaled, netDeposited)
	return decimal.NewFromBigInt(scaled, -2)
}
