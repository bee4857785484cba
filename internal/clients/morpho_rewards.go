package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

// DefaultMorphoRewardsAPI is the Morpho rewards REST base URL.
const DefaultMorphoRewardsAPI = "https://rewards.morpho.org/v1"

const (
	morphoSymbol   = "MORPHO"
	morphoDecimals = 18
)

// MorphoRewardsClient fetches MORPHO rewards from the Morpho distributor API.
type MorphoRewardsClient struct {
	baseURL string
	t       *transport
}

// NewMorphoRewardsClient creates a Morpho rewards client.
func NewMorphoRewardsClient(l *zap.Logger, baseURL string, opts ...Option) *MorphoRewardsClient {
	if baseURL == "" {
		baseURL = DefaultMorphoRewardsAPI
	}
	return &MorphoRewardsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		t:       newTransport(l, "morpho_rewards", opts...),
	}
}

type morphoRewardsResponse struct {
	Data []struct {
		Asset struct {
			Address string `json:"address"`
			ChainID uint64 `json:"chain_id"`
		} `json:"asset"`
		Amount struct {
			Total         decimal.Decimal `json:"total"`
			ClaimableNow  decimal.Decimal `json:"claimable_now"`
			ClaimableNext decimal.Decimal `json:"claimable_next"`
			Claimed       decimal.Decimal `json:"claimed"`
		} `json:"amount"`
	} `json:"data"`
}

// FetchRewards returns the owner's MORPHO rewards for chain. Items are
// unpriced; the caller attaches the MORPHO price.
func (c *MorphoRewardsClient) FetchRewards(ctx context.Context, owner common.Address, chain domain.ChainID) ([]domain.RewardItem, error) {
	url := fmt.Sprintf("%s/users/%s/rewards?chain_id=%d", c.baseURL, strings.ToLower(owner.Hex()), chain)

	var resp morphoRewardsResponse
	if err := c.t.getJSON(ctx, url, &resp); err != nil {
		return nil, errors.Wrap(err, "fetch morpho rewards")
	}

	items := make([]domain.RewardItem, 0, len(resp.Data))
	for _, r := range resp.Data {
		items = append(items, domain.RewardItem{
			Source:        domain.RewardSourceMorpho,
			Token:         common.HexToAddress(r.Asset.Address),
			Symbol:        morphoSymbol,
			Decimals:      morphoDecimals,
			ChainID:       domain.ChainID(r.Asset.ChainID),
			TotalEarned:   r.Amount.Total.BigInt(),
			ClaimableNow:  r.Amount.ClaimableNow.BigInt(),
			ClaimableNext: r.Amount.ClaimableNext.BigInt(),
			Claimed:       r.Amount.Claimed.BigInt(),
			Proofs:        []string{},
		})
	}
	return items, nil
}
