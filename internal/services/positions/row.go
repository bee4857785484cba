package positions

import (
	"math/big"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

// DisplayDecimals is the number of fractional digits shown for token amounts.
const DisplayDecimals = 4

// Placeholder is rendered wherever a value cannot be computed.
const Placeholder = "-"

// ProfitSign selects the styling of a profit cell.
type ProfitSign string

const (
	ProfitPositive ProfitSign = "positive"
	ProfitNegative ProfitSign = "negative"
	ProfitNeutral  ProfitSign = "neutral"
)

// Row is the display contract for one position.
type Row struct {
	MarketKey        string     `json:"marketKey"`
	LoanSymbol       string     `json:"loanSymbol"`
	CollateralSymbol string     `json:"collateralSymbol"`
	Average          string     `json:"average"`
	PositionTokens   string     `json:"positionTokens"`
	PositionUsd      string     `json:"positionUsd"`
	Profit           string     `json:"profit"`
	ProfitPercent    string     `json:"profitPercent"`
	ProfitSign       ProfitSign `json:"profitSign"`
	Utilization      string     `json:"utilization"`
	LLTV             string     `json:"lltv"`
	NetApy           string     `json:"netApy"`
	Source           string     `json:"source"`
	MarketURL        string     `json:"marketUrl"`
}

// ToRow maps a position to display values. It formats only; all amounts
// come from the position and its cost basis.
func ToRow(p Position, chain domain.ChainConfig) Row {
	m := p.Market
	decimals := m.LoanAsset.Decimals
	current := p.CurrentValue()

	row := Row{
		MarketKey:        m.UniqueKey,
		LoanSymbol:       m.LoanAsset.Symbol,
		CollateralSymbol: m.CollateralSymbol(),
		Average:          Placeholder,
		PositionTokens:   domain.FormatAmount(current, decimals, DisplayDecimals),
		PositionUsd:      domain.FormatUsd(domain.UsdValue(current, decimals, m.LoanAsset.PriceUsd)),
		Profit:           Placeholder,
		ProfitPercent:    "",
		ProfitSign:       ProfitNeutral,
		Utilization:      domain.FormatPercent(m.State.Utilization),
		LLTV:             domain.FormatPercent(m.LLTVRatio()),
		NetApy:           domain.FormatPercent(m.State.NetSupplyApy),
		Source:           p.Source.String(),
		MarketURL:        chain.MarketURL(m),
	}

	if p.Profit == nil {
		return row
	}

	row.Average = domain.FormatAmount(p.Profit.NetDeposited, decimals, DisplayDecimals)
	row.ProfitSign = signOf(p.Profit.Profit)

	magnitude := new(big.Int).Abs(p.Profit.Profit)
	prefix := "+"
	if p.Profit.Profit.Sign() < 0 {
		prefix = "-"
	}
	row.Profit = prefix + domain.FormatAmount(magnitude, decimals, DisplayDecimals)

	percent := p.Profit.ProfitPercent
	percentPrefix := ""
	if !percent.IsNegative() {
		percentPrefix = "+"
	}
	row.ProfitPercent = percentPrefix + percent.StringFixed(2) + "%"

	return row
}

// ToRows maps all positions.
func ToRows(positions []Position, chain domain.ChainConfig) []Row {
	rows := make([]Row, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, ToRow(p, chain))
	}
	return rows
}

func signOf(v *big.Int) ProfitSign {
	switch v.Sign() {
	case 1:
		return ProfitPositive
	case -1:
		return ProfitNegative
	default:
		return ProfitNeutral
	}
}
