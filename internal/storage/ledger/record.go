package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

// storedRecord is the persisted form of a transaction record.
// Amounts are raw integer strings so values above 2^53 survive JSON.
type storedRecord struct {
	Type         string `json:"type"`
	MarketKey    string `json:"marketKey"`
	TokenAddress string `json:"tokenAddress"`
	TokenSymbol  string `json:"tokenSymbol"`
	Amount       string `json:"amount"`
	Shares       string `json:"shares,omitempty"`
	Decimals     int    `json:"decimals"`
	Timestamp    int64  `json:"timestamp"`
	TxHash       string `json:"txHash,omitempty"`
}

func toStored(rec domain.TransactionRecord) storedRecord {
	s := storedRecord{
		Type:         string(rec.Kind),
		MarketKey:    rec.MarketKey,
		TokenAddress: rec.TokenAddress.Hex(),
		TokenSymbol:  rec.TokenSymbol,
		Amount:       "0",
		Decimals:     rec.TokenDecimals,
		Timestamp:    rec.Timestamp,
	}
	if rec.AssetAmount != nil {
		s.Amount = rec.AssetAmount.Dec()
	}
	if rec.ShareAmount != nil {
		s.Shares = rec.ShareAmount.Dec()
	}
	if rec.TxHash != nil {
		s.TxHash = rec.TxHash.Hex()
	}
	return s
}

func (s storedRecord) toDomain() (domain.TransactionRecord, error) {
	kind, ok := domain.ParseTxKind(s.Type)
	if !ok {
		return domain.TransactionRecord{}, errors.Errorf("unknown transaction type %q", s.Type)
	}

	amount, err := uint256.FromDecimal(s.Amount)
	if err != nil {
		return domain.TransactionRecord{}, errors.Wrapf(err, "parse amount %q", s.Amount)
	}

	rec := domain.TransactionRecord{
		Kind:          kind,
		MarketKey:     s.MarketKey,
		TokenAddress:  common.HexToAddress(s.TokenAddress),
		TokenSymbol:   s.TokenSymbol,
		TokenDecimals: s.Decimals,
		AssetAmount:   amount,
		Timestamp:     s.Timestamp,
	}

	if s.Shares != "" {
		shares, err := uint256.FromDecimal(s.Shares)
		if err != nil {
			return domain.TransactionRecord{}, errors.Wrapf(err, "parse shares %q", s.Shares)
		}
		rec.ShareAmount = shares
	}
	if s.TxHash != "" {
		hash := common.HexToHash(s.TxHash)
		rec.TxHash = &hash
	}

	return rec, nil
}
