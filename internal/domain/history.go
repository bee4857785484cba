package domain

import "math/big"

// HistorySourceKind tells where a position's transaction history came from.
type HistorySourceKind int

const (
	// SourceUnavailable means neither source has records for the market.
	SourceUnavailable HistorySourceKind = iota
	// SourceAuthoritative is the server-side transaction history.
	SourceAuthoritative
	// SourceLocal is the locally recorded ledger.
	SourceLocal
)

func (k HistorySourceKind) String() string {
	switch k {
	case SourceAuthoritative:
		return "authoritative"
	case SourceLocal:
		return "local"
	default:
		return "unavailable"
	}
}

// HistorySource is the history chosen for one market position. Records only
// ever come from a single source; the two are never merged.
type HistorySource struct {
	Kind    HistorySourceKind
	Records []TransactionRecord
}

// Authoritative wraps server-side records.
func Authoritative(records []TransactionRecord) HistorySource {
	return HistorySource{Kind: SourceAuthoritative, Records: records}
}

// Local wraps locally recorded records.
func Local(records []TransactionRecord) HistorySource {
	return HistorySource{Kind: SourceLocal, Records: records}
}

// Unavailable is the empty history.
func Unavailable() HistorySource {
	return HistorySource{Kind: SourceUnavailable}
}

// ResolveHistory picks the history for marketKey. Authoritative records win
// when they were fetched successfully and contain the market; otherwise the
// local ledger is consulted through loadLocal, which is only called when
// needed.
func ResolveHistory(authoritative []TransactionRecord, authoritativeOK bool, marketKey string,
	loadLocal func(marketKey string) []TransactionRecord) HistorySource {
	if authoritativeOK {
		if records := FilterByMarket(authoritative, marketKey); len(records) > 0 {
			return Authoritative(records)
		}
	}

	if loadLocal != nil {
		if records := FilterByMarket(loadLocal(marketKey), marketKey); len(records) > 0 {
			return Local(records)
		}
	}

	return Unavailable()
}

// Profit computes the cost basis for the resolved history, or nil when the
// history is unavailable.
func (h HistorySource) Profit(marketKey string, currentValue *big.Int) *PositionCostBasis {
	if h.Kind == SourceUnavailable {
		return nil
	}
	return ComputeProfit(h.Records, marketKey, currentValue)
}
