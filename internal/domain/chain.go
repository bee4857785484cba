package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID is an EVM chain id.
type ChainID uint64

const (
	ChainEthereum ChainID = 1
	ChainBase     ChainID = 8453
	ChainArbitrum ChainID = 42161
	ChainHyperEVM ChainID = 999

	DefaultChainID = ChainEthereum
)

// ChainConfig is static per-chain metadata.
type ChainConfig struct {
	ID            ChainID        `json:"id"`
	Name          string         `json:"name"`
	MorphoAddress common.Address `json:"morphoAddress"`
	ExplorerURL   string         `json:"explorerUrl"`
	MorphoAppURL  string         `json:"morphoAppUrl"`
	RPCURL        string         `json:"rpcUrl"`
}

var chains = map[ChainID]ChainConfig{
	ChainEthereum: {
		ID:            ChainEthereum,
		Name:          "Ethereum",
		MorphoAddress: common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"),
		ExplorerURL:   "https://etherscan.io",
		MorphoAppURL:  "https://app.morpho.org/ethereum",
		RPCURL:        "https://cloudflare-eth.com",
	},
	ChainBase: {
		ID:            ChainBase,
		Name:          "Base",
		MorphoAddress: common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"),
		ExplorerURL:   "https://basescan.org",
		MorphoAppURL:  "https://app.morpho.org/base",
		RPCURL:        "https://mainnet.base.org",
	},
	ChainArbitrum: {
		ID:            ChainArbitrum,
		Name:          "Arbitrum",
		MorphoAddress: common.HexToAddress("0x6c247b1F6182318877311737BaC0844bAa518F5e"),
		ExplorerURL:   "https://arbiscan.io",
		MorphoAppURL:  "https://app.morpho.org/arbitrum",
		RPCURL:        "https://arb1.arbitrum.io/rpc",
	},
	ChainHyperEVM: {
		ID:            ChainHyperEVM,
		Name:          "HyperEVM",
		MorphoAddress: common.HexToAddress("0x68e37dE8d93d3496ae143F2E900490f6280C57cD"),
		ExplorerURL:   "https://hyperevmscan.io",
		MorphoAppURL:  "https://app.morpho.org/hyperevm",
		RPCURL:        "https://rpc.hyperliquid.xyz/evm",
	},
}

// MorphoTokenAddress is the canonical MORPHO token on Ethereum, used for pricing.
var MorphoTokenAddress = common.HexToAddress("0x58D97B57BB95320F9a05dC918Aef65434969c2B2")

// IsSupportedChain reports whether the chain has static metadata.
func IsSupportedChain(id ChainID) bool {
	_, ok := chains[id]
	return ok
}

// GetChainConfig returns metadata for id, falling back to Ethereum.
func GetChainConfig(id ChainID) ChainConfig {
	if cfg, ok := chains[id]; ok {
		return cfg
	}
	return chains[DefaultChainID]
}

// SupportedChains lists chain ids in a stable order.
func SupportedChains() []ChainID {
	return []ChainID{ChainEthereum, ChainBase, ChainArbitrum, ChainHyperEVM}
}

// TxURL links a transaction on the chain explorer.
func (c ChainConfig) TxURL(hash common.Hash) string {
	return fmt.Sprintf("%s/tx/%s", c.ExplorerURL, hash.Hex())
}

// MarketURL links a market on the Morpho app.
func (c ChainConfig) MarketURL(m Market) string {
	return fmt.Sprintf("%s/market/%s/%s-%s", c.MorphoAppURL, m.UniqueKey, m.LoanAsset.Symbol, m.CollateralSymbol())
}
