// Package render draws terminal tables for the CLI views.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/services/markets"
	"github.com/vadiminshakov/lendscope/internal/services/positions"
	"github.com/vadiminshakov/lendscope/internal/services/rewards"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	danger    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F73"}

	titleStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			Padding(0, 1)

	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle = cellStyle.Foreground(subtle)

	positiveStyle = cellStyle.Foreground(special)
	negativeStyle = cellStyle.Foreground(danger)

	// totals sit on a plain line under the table, no cell padding
	totalStyle = lipgloss.NewStyle().Foreground(special).Bold(true)
)

// SignStyle maps a profit sign to its cell style.
func SignStyle(sign positions.ProfitSign) lipgloss.Style {
	switch sign {
	case positions.ProfitPositive:
		return positiveStyle
	case positions.ProfitNegative:
		return negativeStyle
	default:
		return mutedStyle
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		Headers(headers...)
}

func titled(title, body string) string {
	return titleStyle.Render(title) + "\n" + body + "\n"
}

// Positions renders the positions view. Profit and percent cells are
// coloured by sign; rows without history show placeholders.
func Positions(chain domain.ChainConfig, rows []positions.Row) string {
	title := fmt.Sprintf("Positions on %s", chain.Name)
	if len(rows) == 0 {
		return titled(title, mutedStyle.Render("no open positions"))
	}

	const (
		colProfit  = 4
		colPercent = 5
	)

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			marketLabel(r.LoanSymbol, r.CollateralSymbol),
			r.Average,
			r.PositionTokens,
			r.PositionUsd,
			r.Profit,
			orPlaceholder(r.ProfitPercent),
			r.NetApy,
			r.Utilization,
			r.LLTV,
			r.Source,
		})
	}

	t := newTable("Market", "Average", "Position", "USD", "Profit", "Profit %", "Net APY", "Util", "LLTV", "History").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == colProfit || col == colPercent {
				return SignStyle(rows[row].ProfitSign)
			}
			return cellStyle
		})

	return titled(title, t.String())
}

// Markets renders the market listing.
func Markets(chain domain.ChainConfig, rows []markets.Row) string {
	title := fmt.Sprintf("Markets on %s", chain.Name)
	if len(rows) == 0 {
		return titled(title, mutedStyle.Render("no markets match the filters"))
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			marketLabel(r.LoanSymbol, r.CollateralSymbol),
			r.TotalSupply,
			r.TotalBorrow,
			r.Liquidity,
			r.Utilization,
			r.LLTV,
			r.NetApy,
			shortKey(r.MarketKey),
		})
	}

	t := newTable("Market", "Supply", "Borrow", "Liquidity", "Util", "LLTV", "Net APY", "Key").
		Rows(data...).
		StyleFunc(headerOrCell)

	return titled(title, t.String())
}

// Rewards renders both reward sources followed by the USD totals.
func Rewards(chain domain.ChainConfig, summary rewards.Summary) string {
	title := fmt.Sprintf("Rewards on %s", chain.Name)
	all := summary.All()
	if len(all) == 0 {
		return titled(title, mutedStyle.Render("no rewards"))
	}

	data := make([][]string, 0, len(all))
	for _, r := range all {
		data = append(data, []string{
			string(r.Source),
			r.Symbol,
			domain.FormatAmount(r.TotalEarned, r.Decimals, positions.DisplayDecimals),
			domain.FormatAmount(r.ClaimableNow, r.Decimals, positions.DisplayDecimals),
			domain.FormatUsd(r.ClaimableNowUsd()),
			domain.FormatAmount(r.ClaimableNext, r.Decimals, positions.DisplayDecimals),
			domain.FormatUsd(r.ClaimableNextUsd()),
		})
	}

	t := newTable("Source", "Token", "Earned", "Claimable", "USD", "Next", "Next USD").
		Rows(data...).
		StyleFunc(headerOrCell)

	totals := fmt.Sprintf("Claimable now: %s   Next claimable: %s",
		totalStyle.Render(domain.FormatUsd(summary.ClaimableNowUsd)),
		domain.FormatUsd(summary.ClaimableNextUsd))

	return titled(title, t.String()+"\n"+totals)
}

// History renders locally recorded transactions.
func History(chain domain.ChainConfig, records []domain.TransactionRecord) string {
	title := fmt.Sprintf("Local history on %s", chain.Name)
	if len(records) == 0 {
		return titled(title, mutedStyle.Render("no recorded transactions"))
	}

	data := make([][]string, 0, len(records))
	for _, r := range records {
		tx := positions.Placeholder
		if r.TxHash != nil {
			tx = chain.TxURL(*r.TxHash)
		}
		data = append(data, []string{
			time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339),
			string(r.Kind),
			shortKey(r.MarketKey),
			domain.FormatAmount(r.Assets(), r.TokenDecimals, positions.DisplayDecimals) + " " + r.TokenSymbol,
			tx,
		})
	}

	t := newTable("Time", "Kind", "Market", "Amount", "Transaction").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && records[row].Kind == domain.TxWithdraw {
				return negativeStyle
			}
			if col == 1 {
				return positiveStyle
			}
			return cellStyle
		})

	return titled(title, t.String())
}

func headerOrCell(row, _ int) lipgloss.Style {
	if row == table.HeaderRow {
		return headerStyle
	}
	return cellStyle
}

func marketLabel(loan, collateral string) string {
	if collateral == "" {
		collateral = "NONE"
	}
	return loan + " / " + collateral
}

func orPlaceholder(s string) string {
	if s == "" {
		return positions.Placeholder
	}
	return s
}

// shortKey abbreviates a 32-byte market key to 0x1234…abcd.
func shortKey(key string) string {
	if len(key) <= 14 {
		return key
	}
	return strings.ToLower(key[:6]) + "…" + strings.ToLower(key[len(key)-4:])
}
