package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// RewardSource names the distributor a reward is claimed from.
type RewardSource string

const (
	RewardSourceMerkl  RewardSource = "merkl"
	RewardSourceMorpho RewardSource = "morpho"
)

// RewardItem is one reward entry as reported by a distributor.
type RewardItem struct {
	Source        RewardSource
	Token         common.Address
	Symbol        string
	Decimals      int
	Price         decimal.Decimal
	LogoURI       string
	ChainID       ChainID
	TotalEarned   *big.Int
	ClaimableNow  *big.Int
	ClaimableNext *big.Int
	Claimed       *big.Int
	Proofs        []string
	Root          string
}

// AggregatedReward sums all entries of one token from one distributor.
type AggregatedReward struct {
	Source        RewardSource    `json:"source"`
	Token         common.Address  `json:"tokenAddress"`
	Symbol        string          `json:"tokenSymbol"`
	Decimals      int             `json:"tokenDecimals"`
	Price         decimal.Decimal `json:"tokenPrice"`
	LogoURI       string          `json:"tokenLogoURI,omitempty"`
	ChainID       ChainID         `json:"chainId"`
	TotalEarned   *big.Int        `json:"totalEarned"`
	ClaimableNow  *big.Int        `json:"claimableNow"`
	ClaimableNext *big.Int        `json:"claimableNext"`
	Claimed       *big.Int        `json:"claimed"`
	Proofs        []string        `json:"proofs"`
	Root          string          `json:"root"`
}

// ClaimableNowUsd prices the currently claimable amount.
func (r AggregatedReward) ClaimableNowUsd() decimal.Decimal {
	return ToDecimal(r.ClaimableNow, r.Decimals).Mul(r.Price)
}

// ClaimableNextUsd prices the amount that becomes claimable next.
func (r AggregatedReward) ClaimableNextUsd() decimal.Decimal {
	return ToDecimal(r.ClaimableNext, r.Decimals).Mul(r.Price)
}

// AggregateRewards groups items by lower-cased token address. Output keeps the
// order in which tokens were first seen; metadata comes from the first entry.
func AggregateRewards(items []RewardItem) []AggregatedReward {
	index := make(map[string]int, len(items))
	aggregated := make([]AggregatedReward, 0, len(items))

	for _, item := range items {
		key := strings.ToLower(item.Token.Hex())
		if i, ok := index[key]; ok {
			existing := &aggregated[i]
			existing.TotalEarned.Add(existing.TotalEarned, orZero(item.TotalEarned))
			existing.ClaimableNow.Add(existing.ClaimableNow, orZero(item.ClaimableNow))
			existing.ClaimableNext.Add(existing.ClaimableNext, orZero(item.ClaimableNext))
			existing.Claimed.Add(existing.Claimed, orZero(item.Claimed))
			continue
		}

		index[key] = len(aggregated)
		aggregated = append(aggregated, AggregatedReward{
			Source:        item.Source,
			Token:         item.Token,
			Symbol:        item.Symbol,
			Decimals:      item.Decimals,
			Price:         item.Price,
			LogoURI:       item.LogoURI,
			ChainID:       item.ChainID,
			TotalEarned:   new(big.Int).Set(orZero(item.TotalEarned)),
			ClaimableNow:  new(big.Int).Set(orZero(item.ClaimableNow)),
			ClaimableNext: new(big.Int).Set(orZero(item.ClaimableNext)),
			Claimed:       new(big.Int).Set(orZero(item.Claimed)),
			Proofs:        item.Proofs,
			Root:          item.Root,
		})
	}

	return aggregated
}

// RewardTotals sums USD values across rewards.
func RewardTotals(rewards []AggregatedReward) (claimableNow, claimableNext decimal.Decimal) {
	claimableNow, claimableNext = decimal.Zero, decimal.Zero
	for _, r := range rewards {
		claimableNow = claimableNow.Add(r.ClaimableNowUsd())
		claimableNext = claimableNext.Add(r.ClaimableNextUsd())
	}
	return claimableNow, claimableNext
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
