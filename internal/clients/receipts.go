package clients

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

const (
	defaultReceiptPoll    = 2 * time.Second
	defaultReceiptTimeout = 3 * time.Minute
)

// ErrNoRPC is returned when no RPC endpoint is configured for a chain.
var ErrNoRPC = errors.New("no rpc endpoint configured")

// ReceiptStatus is the outcome of a mined transaction.
type ReceiptStatus int

const (
	ReceiptSuccess ReceiptStatus = iota
	ReceiptReverted
)

// EVMClient is the subset of the Ethereum RPC used for receipt polling.
type EVMClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	Close()
}

// Dialer opens an EVM client for an endpoint.
type Dialer func(ctx context.Context, endpoint string) (EVMClient, error)

func dialEthclient(ctx context.Context, endpoint string) (EVMClient, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ReceiptClient waits for transaction receipts over JSON-RPC.
type ReceiptClient struct {
	l       *zap.Logger
	rpc     map[domain.ChainID]string
	dial    Dialer
	poll    time.Duration
	timeout time.Duration
}

// NewReceiptClient creates a receipt waiter. rpc maps chains to endpoints;
// an empty string disables waiting for that chain.
func NewReceiptClient(l *zap.Logger, rpc map[domain.ChainID]string) *ReceiptClient {
	if l == nil {
		l = zap.NewNop()
	}
	endpoints := make(map[domain.ChainID]string, len(rpc))
	for chain, url := range rpc {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			endpoints[chain] = trimmed
		}
	}
	return &ReceiptClient{
		l:       l.With(zap.String("client", "rpc")),
		rpc:     endpoints,
		dial:    dialEthclient,
		poll:    defaultReceiptPoll,
		timeout: defaultReceiptTimeout,
	}
}

// WithDialer replaces the RPC dialer.
func (c *ReceiptClient) WithDialer(d Dialer) *ReceiptClient {
	c.dial = d
	return c
}

// WithPolling overrides the poll interval and overall timeout.
func (c *ReceiptClient) WithPolling(poll, timeout time.Duration) *ReceiptClient {
	c.poll = poll
	c.timeout = timeout
	return c
}

// Enabled reports whether receipts can be awaited on chain.
func (c *ReceiptClient) Enabled(chain domain.ChainID) bool {
	if c == nil {
		return false
	}
	_, ok := c.rpc[chain]
	return ok
}

// WaitForReceipt polls until the transaction is mined, the context ends or
// the timeout elapses.
func (c *ReceiptClient) WaitForReceipt(ctx context.Context, chain domain.ChainID, hash common.Hash) (ReceiptStatus, error) {
	endpoint, ok := c.rpc[chain]
	if !ok {
		return ReceiptReverted, ErrNoRPC
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := c.dial(ctx, endpoint)
	if err != nil {
		return ReceiptReverted, errors.Wrapf(err, "dial rpc for chain %d", chain)
	}
	defer client.Close()

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == gethtypes.ReceiptStatusSuccessful {
				return ReceiptSuccess, nil
			}
			return ReceiptReverted, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			c.l.Debug("receipt lookup failed", zap.String("tx", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ReceiptReverted, errors.Wrapf(ctx.Err(), "wait for receipt %s", hash.Hex())
		case <-ticker.C:
		}
	}
}
