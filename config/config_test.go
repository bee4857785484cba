package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/storage/kv"
	"github.com/vadiminshakov/lendscope/internal/storage/ledger"
)

const wallet = "0x52908400098527886E0F7030069857D2E4169EE7"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lendscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Yaml(t *testing.T) {
	path := writeConfig(t, `
wallet: "0x52908400098527886e0f7030069857d2e4169ee7"
chain_id: "8453"
storage:
  backend: leveldb
  dir: /tmp/lendscope
api:
  timeout: 5s
  max_retries: "4"
rpc:
  "8453": https://base.example
web:
  addr: 127.0.0.1:9090
log:
  level: debug
  file: lendscope.log
markets:
  min_supply_usd_millions: "2.5"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(wallet), cfg.Wallet)
	assert.Equal(t, domain.ChainBase, cfg.ChainID)
	assert.Equal(t, kv.BackendLevelDB, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/lendscope", cfg.Storage.Dir)
	assert.Equal(t, ledger.DefaultNamespace, cfg.Storage.Namespace)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 4, cfg.API.MaxRetries)
	assert.Equal(t, "https://base.example", cfg.RPCURL(domain.ChainBase))
	assert.Equal(t, domain.GetChainConfig(domain.ChainEthereum).RPCURL, cfg.RPCURL(domain.ChainEthereum))
	assert.Equal(t, "127.0.0.1:9090", cfg.WebAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "lendscope.log", cfg.Log.File)
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)
	assert.True(t, decimal.RequireFromString("2.5").Equal(cfg.MinSupplyUsdMillions))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, common.Address{}, cfg.Wallet)
	assert.Equal(t, domain.ChainEthereum, cfg.ChainID)
	assert.Equal(t, kv.BackendWAL, cfg.Storage.Backend)
	assert.Equal(t, "morpho-tools-transactions", cfg.Storage.Namespace)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.True(t, decimal.NewFromInt(10).Equal(cfg.MinSupplyUsdMillions))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		tmp  ConfigTmp
	}{
		{name: "wallet", tmp: ConfigTmp{Wallet: "0x123"}},
		{name: "chain", tmp: ConfigTmp{ChainID: "base"}},
		{name: "backend", tmp: ConfigTmp{Storage: StorageTmp{Backend: "redis"}}},
		{name: "retries", tmp: ConfigTmp{API: APITmp{MaxRetriesStr: "-1"}}},
		{name: "timeout", tmp: ConfigTmp{API: APITmp{Timeout: -time.Second}}},
		{name: "rpc key", tmp: ConfigTmp{RPC: map[string]string{"base": "https://x"}}},
		{name: "min supply", tmp: ConfigTmp{Markets: MarketsTmp{MinSupplyUsdMillionsStr: "ten"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tmp.Parse()
			assert.Error(t, err)
		})
	}
}

func TestParseChainID(t *testing.T) {
	chain, err := ParseChainID("42161")
	require.NoError(t, err)
	assert.Equal(t, domain.ChainArbitrum, chain)

	chain, err = ParseChainID("10")
	require.NoError(t, err)
	assert.Equal(t, domain.ChainEthereum, chain, "unsupported chains fall back to ethereum")
}

func TestGet_Precedence(t *testing.T) {
	path := writeConfig(t, "chain_id: \"8453\"\nwallet: \"0x0000000000000000000000000000000000000001\"\n")
	t.Setenv(EnvChainID, "42161")
	t.Setenv(EnvDataDir, "/data")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	o := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-wallet", wallet, "-addr", ":7000"}))

	cfg, err := Get(o)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(wallet), cfg.Wallet, "flag beats file")
	assert.Equal(t, domain.ChainArbitrum, cfg.ChainID, "env beats file")
	assert.Equal(t, "/data", cfg.Storage.Dir)
	assert.Equal(t, ":7000", cfg.WebAddr)

	o.Chain = "999"
	cfg, err = Get(o)
	require.NoError(t, err)
	assert.Equal(t, domain.ChainHyperEVM, cfg.ChainID, "flag beats env")
}

func TestGet_InvalidEnv(t *testing.T) {
	t.Setenv(EnvWallet, "not-an-address")
	_, err := Get(&Overrides{Path: writeConfig(t, "{}\n")})
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
