package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// lltvScale is the fixed-point scale of liquidation LTV values (1e18 = 100%).
var lltvScale = decimal.New(1, 18)

// Token describes an ERC-20 asset as reported by the markets API.
type Token struct {
	Address  common.Address   `json:"address"`
	Symbol   string           `json:"symbol"`
	Decimals int              `json:"decimals"`
	PriceUsd *decimal.Decimal `json:"priceUsd"`
	LogoURI  string           `json:"logoURI,omitempty"`
}

// RewardInfo is an incentive program attached to a market.
type RewardInfo struct {
	SupplyApr   decimal.Decimal `json:"supplyApr"`
	BorrowApr   decimal.Decimal `json:"borrowApr"`
	AssetSymbol string          `json:"assetSymbol"`
	Asset       common.Address  `json:"asset"`
}

// MarketState is the live state of a market.
type MarketState struct {
	SupplyAssets *big.Int        `json:"supplyAssets"`
	BorrowAssets *big.Int        `json:"borrowAssets"`
	SupplyApy    decimal.Decimal `json:"supplyApy"`
	BorrowApy    decimal.Decimal `json:"borrowApy"`
	NetSupplyApy decimal.Decimal `json:"netSupplyApy"`
	Utilization  decimal.Decimal `json:"utilization"`
	Rewards      []RewardInfo    `json:"rewards"`
}

// Market is a lending pool pairing a loan asset with an optional collateral.
type Market struct {
	UniqueKey       string         `json:"uniqueKey"`
	LLTV            *big.Int       `json:"lltv"`
	Whitelisted     bool           `json:"whitelisted"`
	LoanAsset       Token          `json:"loanAsset"`
	CollateralAsset *Token         `json:"collateralAsset"`
	State           MarketState    `json:"state"`
	Oracle          common.Address `json:"oracle"`
	IRM             common.Address `json:"irm"`
}

// LLTVRatio returns the liquidation LTV as a ratio (0.86 for 86%).
func (m Market) LLTVRatio() decimal.Decimal {
	if m.LLTV == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(m.LLTV, 0).Div(lltvScale)
}

// IsIdle reports markets without collateral or with zero LLTV.
func (m Market) IsIdle() bool {
	return m.CollateralAsset == nil || m.LLTV == nil || m.LLTV.Sign() == 0
}

// SupplyUsd is the total supplied value in USD.
func (m Market) SupplyUsd() decimal.Decimal {
	return UsdValue(m.State.SupplyAssets, m.LoanAsset.Decimals, m.LoanAsset.PriceUsd)
}

// BorrowUsd is the total borrowed value in USD.
func (m Market) BorrowUsd() decimal.Decimal {
	return UsdValue(m.State.BorrowAssets, m.LoanAsset.Decimals, m.LoanAsset.PriceUsd)
}

// LiquidityUsd is supplied minus borrowed in USD.
func (m Market) LiquidityUsd() decimal.Decimal {
	return m.SupplyUsd().Sub(m.BorrowUsd())
}

// CollateralSymbol returns the collateral symbol or "NONE".
func (m Market) CollateralSymbol() string {
	if m.CollateralAsset == nil {
		return "NONE"
	}
	return m.CollateralAsset.Symbol
}

// Params returns the on-chain identifying parameters of the market.
func (m Market) Params() MarketParams {
	params := MarketParams{
		LoanToken: m.LoanAsset.Address,
		Oracle:    m.Oracle,
		IRM:       m.IRM,
		LLTV:      new(big.Int),
	}
	if m.CollateralAsset != nil {
		params.CollateralToken = m.CollateralAsset.Address
	}
	if m.LLTV != nil {
		params.LLTV.Set(m.LLTV)
	}
	return params
}

// MarketParams identifies a market on-chain.
type MarketParams struct {
	LoanToken       common.Address
	CollateralToken common.Address
	Oracle          common.Address
	IRM             common.Address
	LLTV            *big.Int
}

// UserPosition is the live supply position of a wallet in a market.
type UserPosition struct {
	Market       Market   `json:"market"`
	SupplyAssets *big.Int `json:"supplyAssets"`
	SupplyShares *big.Int `json:"supplyShares"`
}

// CurrentValue is the supply-asset amount of the position.
func (p UserPosition) CurrentValue() *big.Int {
	if p.SupplyAssets == nil {
		return new(big.Int)
	}
	return p.SupplyAssets
}
