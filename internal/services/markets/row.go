package markets

import "github.com/vadiminshakov/lendscope/internal/domain"

// Row is the display contract for one market.
type Row struct {
	MarketKey        string `json:"marketKey"`
	LoanSymbol       string `json:"loanSymbol"`
	CollateralSymbol string `json:"collateralSymbol"`
	TotalSupply      string `json:"totalSupply"`
	TotalBorrow      string `json:"totalBorrow"`
	Liquidity        string `json:"liquidity"`
	Utilization      string `json:"utilization"`
	LLTV             string `json:"lltv"`
	NetApy           string `json:"netApy"`
	Rewards          int    `json:"rewards"`
	MarketURL        string `json:"marketUrl"`
}

// ToRows maps markets to display rows.
func ToRows(markets []domain.Market, chain domain.ChainConfig) []Row {
	rows := make([]Row, 0, len(markets))
	for _, m := range markets {
		rows = append(rows, Row{
			MarketKey:        m.UniqueKey,
			LoanSymbol:       m.LoanAsset.Symbol,
			CollateralSymbol: m.CollateralSymbol(),
			TotalSupply:      domain.FormatUsd(m.SupplyUsd()),
			TotalBorrow:      domain.FormatUsd(m.BorrowUsd()),
			Liquidity:        domain.FormatUsd(m.LiquidityUsd()),
			Utilization:      domain.FormatPercent(m.State.Utilization),
			LLTV:             domain.FormatPercent(m.LLTVRatio()),
			NetApy:           domain.FormatPercent(m.State.NetSupplyApy),
			Rewards:          len(m.State.Rewards),
			MarketURL:        chain.MarketURL(m),
		})
	}
	return rows
}
