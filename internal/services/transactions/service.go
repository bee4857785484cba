// Package transactions records supply and withdraw actions in the local ledger
// once they are confirmed on-chain.
package transactions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/clients"
	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/events"
	"github.com/vadiminshakov/lendscope/internal/metrics"
)

var (
	ErrInvalidAmount = errors.New("amount must be a plain decimal number")
	ErrZeroAmount    = errors.New("amount must be greater than zero")
	ErrInvalidHash   = errors.New("transaction hash must be 32 hex bytes")
	ErrUnknownMarket = errors.New("market not found on this chain")
	ErrReverted      = errors.New("transaction reverted")
)

// Request describes a transaction the user has signed and broadcast.
type Request struct {
	Owner     common.Address
	Chain     domain.ChainID
	Kind      domain.TxKind
	MarketKey string
	Amount    string
	TxHash    string
}

type positionsAPI interface {
	FetchUserPositions(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.UserPosition, error)
}

type marketFinder interface {
	Find(ctx context.Context, chain domain.ChainID, marketKey string) (domain.Market, bool, error)
}

type receiptWaiter interface {
	Enabled(chain domain.ChainID) bool
	WaitForReceipt(ctx context.Context, chain domain.ChainID, hash common.Hash) (clients.ReceiptStatus, error)
}

type recorder interface {
	Append(owner common.Address, chain domain.ChainID, rec domain.TransactionRecord)
	Query(owner common.Address, chain domain.ChainID) []domain.TransactionRecord
}

type notifier interface {
	Add(kind events.Kind, message string, link *events.Link) string
}

// Service validates, confirms and records local transactions.
type Service struct {
	l         *zap.Logger
	positions positionsAPI
	markets   marketFinder
	receipts  receiptWaiter
	ledger    recorder
	notifier  notifier
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService wires the recorder. receipts and notifier may be nil.
func NewService(l *zap.Logger, positions positionsAPI, markets marketFinder, receipts receiptWaiter,
	store recorder, notifier notifier, m *metrics.Metrics) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{
		l:         l,
		positions: positions,
		markets:   markets,
		receipts:  receipts,
		ledger:    store,
		notifier:  notifier,
		metrics:   m,
		now:       time.Now,
	}
}

// Record validates req, waits for its receipt when an RPC endpoint is
// configured and appends it to the local ledger.
func (s *Service) Record(ctx context.Context, req Request) (domain.TransactionRecord, error) {
	if !domain.IsValidAmount(req.Amount) {
		return domain.TransactionRecord{}, ErrInvalidAmount
	}
	hash, err := parseHash(req.TxHash)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	if req.Kind != domain.TxSupply && req.Kind != domain.TxWithdraw {
		return domain.TransactionRecord{}, errors.Errorf("unsupported transaction kind %q", req.Kind)
	}

	market, err := s.resolveMarket(ctx, req.Owner, req.Chain, req.MarketKey)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	token := market.LoanAsset

	amount := domain.ParseAmount(req.Amount, token.Decimals)
	if amount.Sign() == 0 {
		return domain.TransactionRecord{}, ErrZeroAmount
	}
	assets, overflow := uint256.FromBig(amount)
	if overflow {
		return domain.TransactionRecord{}, ErrInvalidAmount
	}

	chain := domain.GetChainConfig(req.Chain)
	if s.receipts != nil && s.receipts.Enabled(req.Chain) {
		status, err := s.receipts.WaitForReceipt(ctx, req.Chain, hash)
		if err != nil {
			s.notify(events.KindError, fmt.Sprintf("%s failed. Please try again.", title(req.Kind)), nil)
			return domain.TransactionRecord{}, errors.Wrap(err, "wait for receipt")
		}
		if status != clients.ReceiptSuccess {
			s.notify(events.KindError, fmt.Sprintf("%s failed. Please try again.", title(req.Kind)),
				&events.Link{URL: chain.TxURL(hash), Text: "View transaction"})
			return domain.TransactionRecord{}, ErrReverted
		}
	} else {
		s.l.Debug("no rpc endpoint, recording without receipt", zap.Uint64("chain", uint64(req.Chain)))
	}

	rec := domain.TransactionRecord{
		Kind:          req.Kind,
		MarketKey:     market.UniqueKey,
		TokenAddress:  token.Address,
		TokenSymbol:   token.Symbol,
		TokenDecimals: token.Decimals,
		AssetAmount:   assets,
		Timestamp:     s.now().UnixMilli(),
		TxHash:        &hash,
	}
	s.ledger.Append(req.Owner, req.Chain, rec)
	s.metrics.Recorded(string(req.Kind))

	s.l.Info("transaction recorded",
		zap.String("kind", string(req.Kind)),
		zap.String("market", market.UniqueKey),
		zap.String("amount", amount.String()),
		zap.String("tx", hash.Hex()))

	s.notify(events.KindSuccess,
		fmt.Sprintf("%s %s %s", pastTense(req.Kind), domain.FormatAmount(amount, token.Decimals, 4), token.Symbol),
		&events.Link{URL: chain.TxURL(hash), Text: "View transaction"})

	return rec, nil
}

// History lists locally recorded transactions, optionally for one market.
func (s *Service) History(owner common.Address, chain domain.ChainID, marketKey string) []domain.TransactionRecord {
	all := s.ledger.Query(owner, chain)
	if marketKey == "" {
		return all
	}
	return domain.FilterByMarket(all, marketKey)
}

// resolveMarket prefers the user's live position and falls back to the
// market listing. The returned market carries the canonical key spelling.
func (s *Service) resolveMarket(ctx context.Context, owner common.Address, chain domain.ChainID, marketKey string) (domain.Market, error) {
	if s.positions != nil {
		positions, err := s.positions.FetchUserPositions(ctx, owner, chain)
		if err != nil {
			s.l.Warn("positions unavailable while resolving market", zap.Error(err))
		}
		for _, p := range positions {
			if strings.EqualFold(p.Market.UniqueKey, marketKey) {
				return p.Market, nil
			}
		}
	}

	if s.markets != nil {
		m, ok, err := s.markets.Find(ctx, chain, marketKey)
		if err != nil {
			return domain.Market{}, errors.Wrap(err, "resolve market")
		}
		if ok {
			return m, nil
		}
	}
	return domain.Market{}, ErrUnknownMarket
}

func (s *Service) notify(kind events.Kind, message string, link *events.Link) {
	if s.notifier == nil {
		return
	}
	s.notifier.Add(kind, message, link)
}

func parseHash(raw string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, ErrInvalidHash
	}
	return common.BytesToHash(b), nil
}

func title(kind domain.TxKind) string {
	if kind == domain.TxWithdraw {
		return "Withdraw"
	}
	return "Supply"
}

func pastTense(kind domain.TxKind) string {
	if kind == domain.TxWithdraw {
		return "Withdrew"
	}
	return "Supplied"
}
