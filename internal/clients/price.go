package clients

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

// DefaultDefiLlamaAPI is the DefiLlama current-price endpoint.
const DefaultDefiLlamaAPI = "https://coins.llama.fi/prices/current"

const priceCacheTTL = time.Hour

// PriceClient looks up token prices on DefiLlama with a one hour cache.
type PriceClient struct {
	l       *zap.Logger
	baseURL string
	t       *transport
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	cache map[common.Address]cachedPrice
}

type cachedPrice struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// NewPriceClient creates a DefiLlama price client.
func NewPriceClient(l *zap.Logger, baseURL string, opts ...Option) *PriceClient {
	if baseURL == "" {
		baseURL = DefaultDefiLlamaAPI
	}
	t := newTransport(l, "defillama", opts...)
	return &PriceClient{
		l:       t.l,
		baseURL: strings.TrimRight(baseURL, "/"),
		t:       t,
		ttl:     priceCacheTTL,
		now:     time.Now,
		cache:   make(map[common.Address]cachedPrice),
	}
}

type defiLlamaResponse struct {
	Coins map[string]struct {
		Price decimal.Decimal `json:"price"`
	} `json:"coins"`
}

// MorphoPrice returns the USD price of the MORPHO token.
func (c *PriceClient) MorphoPrice(ctx context.Context) decimal.Decimal {
	return c.EthereumTokenPrice(ctx, domain.MorphoTokenAddress)
}

// EthereumTokenPrice returns the USD price of an Ethereum mainnet token. It
// never fails: on error the last cached price is returned, or zero.
func (c *PriceClient) EthereumTokenPrice(ctx context.Context, token common.Address) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cached, ok := c.cache[token]
	if ok && now.Sub(cached.fetchedAt) < c.ttl {
		return cached.price
	}

	coinID := fmt.Sprintf("ethereum:%s", token.Hex())
	var resp defiLlamaResponse
	if err := c.t.getJSON(ctx, fmt.Sprintf("%s/%s", c.baseURL, coinID), &resp); err != nil {
		c.l.Warn("price lookup failed", zap.String("coin", coinID), zap.Error(err))
		return cached.price
	}

	price := decimal.Zero
	for id, coin := range resp.Coins {
		if strings.EqualFold(id, coinID) {
			price = coin.Price
			break
		}
	}

	c.cache[token] = cachedPrice{price: price, fetchedAt: now}
	return price
}
