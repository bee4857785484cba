package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

// DefaultMerklAPI is the Merkl v4 REST base URL.
const DefaultMerklAPI = "https://api.merkl.xyz/v4"

// MerklClient fetches Merkl campaign rewards.
type MerklClient struct {
	baseURL string
	t       *transport
}

// NewMerklClient creates a Merkl client.
func NewMerklClient(l *zap.Logger, baseURL string, opts ...Option) *MerklClient {
	if baseURL == "" {
		baseURL = DefaultMerklAPI
	}
	return &MerklClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		t:       newTransport(l, "merkl", opts...),
	}
}

type merklChainRewards struct {
	Chain *struct {
		ID uint64 `json:"id"`
	} `json:"chain"`
	Rewards []merklReward `json:"rewards"`
}

type merklReward struct {
	Root                string          `json:"root"`
	DistributionChainID uint64          `json:"distributionChainId"`
	Amount              decimal.Decimal `json:"amount"`
	Claimed             decimal.Decimal `json:"claimed"`
	Pending             decimal.Decimal `json:"pending"`
	Proofs              []string        `json:"proofs"`
	Token               struct {
		Address  string          `json:"address"`
		Symbol   string          `json:"symbol"`
		Decimals int             `json:"decimals"`
		Price    decimal.Decimal `json:"price"`
	} `json:"token"`
}

func (r merklReward) toDomain() domain.RewardItem {
	amount := r.Amount.BigInt()
	claimed := r.Claimed.BigInt()
	pending := r.Pending.BigInt()

	claimableNow := new(big.Int).Sub(amount, claimed)
	claimableNow.Sub(claimableNow, pending)

	return domain.RewardItem{
		Source:        domain.RewardSourceMerkl,
		Token:         common.HexToAddress(r.Token.Address),
		Symbol:        r.Token.Symbol,
		Decimals:      r.Token.Decimals,
		Price:         r.Token.Price,
		ChainID:       domain.ChainID(r.DistributionChainID),
		TotalEarned:   amount,
		ClaimableNow:  claimableNow,
		ClaimableNext: pending,
		Claimed:       claimed,
		Proofs:        r.Proofs,
		Root:          r.Root,
	}
}

// FetchRewards returns the owner's Merkl rewards for chain.
func (c *MerklClient) FetchRewards(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.RewardItem, error) {
	url := fmt.Sprintf("%s/users/%s/rewards?chainId=%d", c.baseURL, strings.ToLower(owner.Hex()), chain)

	var resp []merklChainRewards
	if err := c.t.getJSON(ctx, url, &resp); err != nil {
		return nil, errors.Wrap(err, "fetch merkl rewards")
	}

	for _, chainRewards := range resp {
		if chainRewards.Chain == nil || domain.ChainID(chainRewards.Chain.ID) != chain {
			continue
		}
		items := make([]domain.RewardItem, 0, len(chainRewards.Rewards))
		for _, r := range chainRewards.Rewards {
			items = append(items, r.toDomain())
		}
		return items, nil
	}
	return nil, nil
}
