package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TxKind is the direction of a position change.
type TxKind string

const (
	TxSupply   TxKind = "supply"
	TxWithdraw TxKind = "withdraw"
)

// ParseTxKind accepts both ledger ("supply") and API ("MarketSupply") spellings.
func ParseTxKind(s string) (TxKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supply", "marketsupply":
		return TxSupply, true
	case "withdraw", "marketwithdraw":
		return TxWithdraw, true
	default:
		return "", false
	}
}

// TransactionRecord is a single supply or withdraw against a market position.
// Records come either from the authoritative transaction history or from the
// local ledger; the latter never carries share amounts.
type TransactionRecord struct {
	Kind          TxKind
	MarketKey     string
	TokenAddress  common.Address
	TokenSymbol   string
	TokenDecimals int
	AssetAmount   *uint256.Int
	// ShareAmount is nil when the source does not track shares.
	ShareAmount *uint256.Int
	// Timestamp orders records within a single source.
	Timestamp int64
	TxHash    *common.Hash
}

// HasShares reports whether the record carries a share amount.
func (r TransactionRecord) HasShares() bool {
	return r.ShareAmount != nil
}

// Assets returns the asset amount as a big integer (zero when unset).
func (r TransactionRecord) Assets() *big.Int {
	if r.AssetAmount == nil {
		return new(big.Int)
	}
	return r.AssetAmount.ToBig()
}

// Shares returns the share amount as a big integer (zero when unset).
func (r TransactionRecord) Shares() *big.Int {
	if r.ShareAmount == nil {
		return new(big.Int)
	}
	return r.ShareAmount.ToBig()
}

// FilterByMarket returns records for marketKey preserving their order. Market
// keys are hex ids and compare case-insensitively.
func FilterByMarket(records []TransactionRecord, marketKey string) []TransactionRecord {
	filtered := make([]TransactionRecord, 0, len(records))
	for _, r := range records {
		if strings.EqualFold(r.MarketKey, marketKey) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
