package clients

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

// DefaultMorphoGraphQL is the public Morpho Blue API endpoint.
const DefaultMorphoGraphQL = "https://blue-api.morpho.org/graphql"

const (
	marketsLimit         = 100
	transactionsPageSize = 500
	transactionsMaxPages = 20
)

const tokenFields = `address symbol decimals priceUsd logoURI`

const marketsQuery = `query GetMarkets($chainId: Int!) {
  markets(
    where: { chainId_in: [$chainId], whitelisted: true }
    orderBy: SupplyAssetsUsd
    orderDirection: Desc
    first: 100
  ) {
    items {
      uniqueKey
      lltv
      whitelisted
      loanAsset { ` + tokenFields + ` }
      collateralAsset { ` + tokenFields + ` }
      state {
        supplyAssets
        borrowAssets
        supplyApy
        borrowApy
        netSupplyApy
        utilization
        rewards { supplyApr borrowApr asset { symbol address logoURI } }
      }
      oracleAddress
      irmAddress
    }
  }
}`

const positionsQuery = `query GetUserPositions($address: String!, $chainId: Int!) {
  marketPositions(
    where: { userAddress_in: [$address], chainId_in: [$chainId], supplyShares_gte: 1 }
  ) {
    items {
      market {
        uniqueKey
        lltv
        loanAsset { ` + tokenFields + ` }
        collateralAsset { ` + tokenFields + ` }
        state {
          supplyAssets
          borrowAssets
          supplyApy
          netSupplyApy
          utilization
          rewards { supplyApr asset { symbol address logoURI } }
        }
        oracleAddress
        irmAddress
      }
      supplyAssets
      supplyShares
    }
  }
}`

const transactionsQuery = `query GetUserTransactions($address: String!, $chainId: Int!, $first: Int!, $skip: Int!) {
  transactions(
    first: $first
    skip: $skip
    where: { userAddress_in: [$address], chainId_in: [$chainId], type_in: [MarketSupply, MarketWithdraw] }
    orderBy: Timestamp
    orderDirection: Asc
  ) {
    items {
      hash
      timestamp
      type
      data {
        ... on MarketTransferTransactionData {
          shares
          assets
          market { uniqueKey loanAsset { address symbol decimals } }
        }
      }
    }
  }
}`

// MorphoClient queries the Morpho GraphQL API.
type MorphoClient struct {
	l        *zap.Logger
	endpoint string
	t        *transport
	pageSize int
	maxPages int
}

// NewMorphoClient creates a client for the given GraphQL endpoint.
func NewMorphoClient(l *zap.Logger, endpoint string, opts ...Option) *MorphoClient {
	if endpoint == "" {
		endpoint = DefaultMorphoGraphQL
	}
	t := newTransport(l, "morpho_graphql", opts...)
	return &MorphoClient{
		l:        t.l,
		endpoint: endpoint,
		t:        t,
		pageSize: transactionsPageSize,
		maxPages: transactionsMaxPages,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse[T any] struct {
	Data   *T             `json:"data"`
	Errors []graphqlError `json:"errors"`
}

func query[T any](ctx context.Context, c *MorphoClient, q string, vars map[string]any) (*T, error) {
	var resp graphqlResponse[T]
	if err := c.t.postJSON(ctx, c.endpoint, graphqlRequest{Query: q, Variables: vars}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, errors.Wrapf(ErrUnavailable, "graphql: %s", strings.Join(msgs, "; "))
	}
	if resp.Data == nil {
		return nil, errors.Wrap(ErrUnavailable, "graphql: empty data")
	}
	return resp.Data, nil
}

type tokenWire struct {
	Address  string           `json:"address"`
	Symbol   string           `json:"symbol"`
	Decimals int              `json:"decimals"`
	PriceUsd *decimal.Decimal `json:"priceUsd"`
	LogoURI  string           `json:"logoURI"`
}

func (t tokenWire) toDomain() domain.Token {
	return domain.Token{
		Address:  common.HexToAddress(t.Address),
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
		PriceUsd: t.PriceUsd,
		LogoURI:  t.LogoURI,
	}
}

type rewardWire struct {
	SupplyApr decimal.Decimal `json:"supplyApr"`
	BorrowApr decimal.Decimal `json:"borrowApr"`
	Asset     struct {
		Symbol  string `json:"symbol"`
		Address string `json:"address"`
	} `json:"asset"`
}

type marketStateWire struct {
	SupplyAssets decimal.Decimal `json:"supplyAssets"`
	BorrowAssets decimal.Decimal `json:"borrowAssets"`
	SupplyApy    decimal.Decimal `json:"supplyApy"`
	BorrowApy    decimal.Decimal `json:"borrowApy"`
	NetSupplyApy decimal.Decimal `json:"netSupplyApy"`
	Utilization  decimal.Decimal `json:"utilization"`
	Rewards      []rewardWire    `json:"rewards"`
}

type marketWire struct {
	UniqueKey       string           `json:"uniqueKey"`
	Lltv            decimal.Decimal  `json:"lltv"`
	Whitelisted     bool             `json:"whitelisted"`
	LoanAsset       tokenWire        `json:"loanAsset"`
	CollateralAsset *tokenWire       `json:"collateralAsset"`
	State           *marketStateWire `json:"state"`
	OracleAddress   string           `json:"oracleAddress"`
	IrmAddress      string           `json:"irmAddress"`
}

func (m marketWire) toDomain() domain.Market {
	market := domain.Market{
		UniqueKey:   m.UniqueKey,
		LLTV:        m.Lltv.BigInt(),
		Whitelisted: m.Whitelisted,
		LoanAsset:   m.LoanAsset.toDomain(),
		Oracle:      common.HexToAddress(m.OracleAddress),
		IRM:         common.HexToAddress(m.IrmAddress),
		State: domain.MarketState{
			SupplyAssets: new(big.Int),
			BorrowAssets: new(big.Int),
		},
	}
	if m.CollateralAsset != nil {
		collateral := m.CollateralAsset.toDomain()
		market.CollateralAsset = &collateral
	}
	if m.State != nil {
		market.State = domain.MarketState{
			SupplyAssets: m.State.SupplyAssets.BigInt(),
			BorrowAssets: m.State.BorrowAssets.BigInt(),
			SupplyApy:    m.State.SupplyApy,
			BorrowApy:    m.State.BorrowApy,
			NetSupplyApy: m.State.NetSupplyApy,
			Utilization:  m.State.Utilization,
		}
		for _, r := range m.State.Rewards {
			market.State.Rewards = append(market.State.Rewards, domain.RewardInfo{
				SupplyApr:   r.SupplyApr,
				BorrowApr:   r.BorrowApr,
				AssetSymbol: r.Asset.Symbol,
				Asset:       common.HexToAddress(r.Asset.Address),
			})
		}
	}
	return market
}

// FetchMarkets returns whitelisted markets of a chain ordered by supply USD.
func (c *MorphoClient) FetchMarkets(ctx context.Context, chain domain.ChainID) ([]domain.Market, error) {
	data, err := query[struct {
		Markets struct {
			Items []marketWire `json:"items"`
		} `json:"markets"`
	}](ctx, c, marketsQuery, map[string]any{"chainId": uint64(chain)})
	if err != nil {
		return nil, errors.Wrap(err, "fetch markets")
	}

	markets := make([]domain.Market, 0, len(data.Markets.Items))
	for _, item := range data.Markets.Items {
		markets = append(markets, item.toDomain())
		if len(markets) == marketsLimit {
			break
		}
	}
	return markets, nil
}

// FetchUserPositions returns positions of owner holding at least one supply share.
func (c *MorphoClient) FetchUserPositions(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.UserPosition, error) {
	data, err := query[struct {
		MarketPositions struct {
			Items []struct {
				Market       marketWire      `json:"market"`
				SupplyAssets decimal.Decimal `json:"supplyAssets"`
				SupplyShares decimal.Decimal `json:"supplyShares"`
			} `json:"items"`
		} `json:"marketPositions"`
	}](ctx, c, positionsQuery, map[string]any{
		"address": strings.ToLower(owner.Hex()),
		"chainId": uint64(chain),
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch user positions")
	}

	positions := make([]domain.UserPosition, 0, len(data.MarketPositions.Items))
	for _, item := range data.MarketPositions.Items {
		positions = append(positions, domain.UserPosition{
			Market:       item.Market.toDomain(),
			SupplyAssets: item.SupplyAssets.BigInt(),
			SupplyShares: item.SupplyShares.BigInt(),
		})
	}
	return positions, nil
}

type transactionWire struct {
	Hash      string          `json:"hash"`
	Timestamp decimal.Decimal `json:"timestamp"`
	Type      string          `json:"type"`
	Data      struct {
		Shares *decimal.Decimal `json:"shares"`
		Assets *decimal.Decimal `json:"assets"`
		Market *struct {
			UniqueKey string `json:"uniqueKey"`
			LoanAsset struct {
				Address  string `json:"address"`
				Symbol   string `json:"symbol"`
				Decimals int    `json:"decimals"`
			} `json:"loanAsset"`
		} `json:"market"`
	} `json:"data"`
}

func (w transactionWire) toDomain() (domain.TransactionRecord, error) {
	kind, ok := domain.ParseTxKind(w.Type)
	if !ok {
		return domain.TransactionRecord{}, errors.Errorf("unsupported transaction type %q", w.Type)
	}
	if w.Data.Market == nil || w.Data.Assets == nil {
		return domain.TransactionRecord{}, errors.New("transaction without market data")
	}

	assets, err := toUint256(*w.Data.Assets)
	if err != nil {
		return domain.TransactionRecord{}, errors.Wrap(err, "assets")
	}

	rec := domain.TransactionRecord{
		Kind:          kind,
		MarketKey:     w.Data.Market.UniqueKey,
		TokenAddress:  common.HexToAddress(w.Data.Market.LoanAsset.Address),
		TokenSymbol:   w.Data.Market.LoanAsset.Symbol,
		TokenDecimals: w.Data.Market.LoanAsset.Decimals,
		AssetAmount:   assets,
		Timestamp:     w.Timestamp.IntPart(),
	}
	if w.Data.Shares != nil {
		shares, err := toUint256(*w.Data.Shares)
		if err != nil {
			return domain.TransactionRecord{}, errors.Wrap(err, "shares")
		}
		rec.ShareAmount = shares
	}
	if w.Hash != "" {
		hash := common.HexToHash(w.Hash)
		rec.TxHash = &hash
	}
	return rec, nil
}

// FetchUserTransactions returns the authoritative supply/withdraw history of
// owner in fetch order. Any failure is reported as ErrUnavailable so callers
// never mistake it for an empty history. A history longer than the page limit
// is unavailable too: a partial history is not authoritative.
func (c *MorphoClient) FetchUserTransactions(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.TransactionRecord, error) {
	var records []domain.TransactionRecord

	for page := 0; page < c.maxPages; page++ {
		data, err := query[struct {
			Transactions struct {
				Items []transactionWire `json:"items"`
			} `json:"transactions"`
		}](ctx, c, transactionsQuery, map[string]any{
			"address": strings.ToLower(owner.Hex()),
			"chainId": uint64(chain),
			"first":   c.pageSize,
			"skip":    page * c.pageSize,
		})
		if err != nil {
			return nil, errors.Wrap(err, "fetch user transactions")
		}

		for _, item := range data.Transactions.Items {
			rec, err := item.toDomain()
			if err != nil {
				c.l.Warn("skipping transaction", zap.String("hash", item.Hash), zap.Error(err))
				continue
			}
			records = append(records, rec)
		}

		if len(data.Transactions.Items) < c.pageSize {
			return records, nil
		}
	}

	c.l.Warn("transaction history exceeds page limit", zap.Int("pages", c.maxPages), zap.Int("records", len(records)))
	return nil, errors.Wrapf(ErrUnavailable, "history longer than %d records", c.maxPages*c.pageSize)
}

func toUint256(d decimal.Decimal) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, errors.Errorf("negative amount %s", d)
	}
	v, overflow := uint256.FromBig(d.BigInt())
	if overflow {
		return nil, errors.Errorf("amount %s overflows 256 bits", d)
	}
	return v, nil
}
