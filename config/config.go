// Package config loads lendscope settings from a YAML file, the environment
// and command-line flags, in that order of precedence (flags win).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/lendscope/internal/clients"
	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/logging"
	"github.com/vadiminshakov/lendscope/internal/storage/kv"
	"github.com/vadiminshakov/lendscope/internal/storage/ledger"
)

// DefaultPath is read when no -config flag is given and the file exists.
const DefaultPath = "lendscope.yaml"

const (
	EnvWallet  = "LENDSCOPE_WALLET"
	EnvChainID = "LENDSCOPE_CHAIN_ID"
	EnvDataDir = "LENDSCOPE_DATA_DIR"
)

const (
	defaultDataDir    = ".lendscope"
	defaultWebAddr    = "127.0.0.1:8080"
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 2
	defaultMinSupply  = 10
)

type Config struct {
	Wallet               common.Address
	ChainID              domain.ChainID
	Storage              StorageConfig
	API                  APIConfig
	RPC                  map[domain.ChainID]string
	WebAddr              string
	Log                  logging.Config
	MinSupplyUsdMillions decimal.Decimal
}

type StorageConfig struct {
	Backend   kv.Backend
	Dir       string
	Namespace string
}

type APIConfig struct {
	MorphoGraphQL string
	MorphoRewards string
	Merkl         string
	DefiLlama     string
	Timeout       time.Duration
	MaxRetries    int
}

// RPCURL returns the configured endpoint for chain, falling back to the
// chain table default.
func (c Config) RPCURL(chain domain.ChainID) string {
	if url, ok := c.RPC[chain]; ok {
		return url
	}
	return domain.GetChainConfig(chain).RPCURL
}

// ConfigTmp is the raw YAML form of Config.
type ConfigTmp struct {
	Wallet  string            `yaml:"wallet,omitempty"`
	ChainID string            `yaml:"chain_id,omitempty"`
	Storage StorageTmp        `yaml:"storage,omitempty"`
	API     APITmp            `yaml:"api,omitempty"`
	RPC     map[string]string `yaml:"rpc,omitempty"`
	Web     WebTmp            `yaml:"web,omitempty"`
	Log     LogTmp            `yaml:"log,omitempty"`
	Markets MarketsTmp        `yaml:"markets,omitempty"`
}

type StorageTmp struct {
	Backend   string `yaml:"backend,omitempty"`
	Dir       string `yaml:"dir,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

type APITmp struct {
	MorphoGraphQL string        `yaml:"morpho_graphql,omitempty"`
	MorphoRewards string        `yaml:"morpho_rewards,omitempty"`
	Merkl         string        `yaml:"merkl,omitempty"`
	DefiLlama     string        `yaml:"defillama,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	MaxRetriesStr string        `yaml:"max_retries,omitempty"`
}

type WebTmp struct {
	Addr string `yaml:"addr,omitempty"`
}

type LogTmp struct {
	Level      string `yaml:"level,omitempty"`
	Format     string `yaml:"format,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

type MarketsTmp struct {
	MinSupplyUsdMillionsStr string `yaml:"min_supply_usd_millions,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ChainID: domain.DefaultChainID,
		Storage: StorageConfig{
			Backend:   kv.BackendWAL,
			Dir:       defaultDataDir,
			Namespace: ledger.DefaultNamespace,
		},
		API: APIConfig{
			MorphoGraphQL: clients.DefaultMorphoGraphQL,
			MorphoRewards: clients.DefaultMorphoRewardsAPI,
			Merkl:         clients.DefaultMerklAPI,
			DefiLlama:     clients.DefaultDefiLlamaAPI,
			Timeout:       defaultTimeout,
			MaxRetries:    defaultMaxRetries,
		},
		RPC:                  map[domain.ChainID]string{},
		WebAddr:              defaultWebAddr,
		Log:                  logging.DefaultConfig(),
		MinSupplyUsdMillions: decimal.NewFromInt(defaultMinSupply),
	}
}

// Load reads the file at path (DefaultPath if empty and present), then
// applies .env and environment overrides.
func Load(path string) (Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	cfg := Default()
	if path != "" {
		var err error
		cfg, err = getYaml(path)
		if err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
	}
	return tmp.Parse()
}

// Parse validates raw values and fills in defaults.
func (c ConfigTmp) Parse() (Config, error) {
	cfg := Default()

	if c.Wallet != "" {
		wallet, err := ParseWallet(c.Wallet)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'wallet' param in yaml config: %w", err)
		}
		cfg.Wallet = wallet
	}

	if c.ChainID != "" {
		chain, err := ParseChainID(c.ChainID)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'chain_id' param in yaml config: %w", err)
		}
		cfg.ChainID = chain
	}

	if c.Storage.Backend != "" {
		switch b := kv.Backend(strings.ToLower(c.Storage.Backend)); b {
		case kv.BackendWAL, kv.BackendLevelDB:
			cfg.Storage.Backend = b
		default:
			return Config{}, fmt.Errorf("incorrect 'storage.backend' param in yaml config (wal or leveldb): %s", c.Storage.Backend)
		}
	}
	cfg.Storage.Dir = orDefault(c.Storage.Dir, cfg.Storage.Dir)
	cfg.Storage.Namespace = orDefault(c.Storage.Namespace, cfg.Storage.Namespace)

	cfg.API.MorphoGraphQL = orDefault(c.API.MorphoGraphQL, cfg.API.MorphoGraphQL)
	cfg.API.MorphoRewards = orDefault(c.API.MorphoRewards, cfg.API.MorphoRewards)
	cfg.API.Merkl = orDefault(c.API.Merkl, cfg.API.Merkl)
	cfg.API.DefiLlama = orDefault(c.API.DefiLlama, cfg.API.DefiLlama)
	if c.API.Timeout < 0 {
		return Config{}, fmt.Errorf("incorrect 'api.timeout' param in yaml config (must be positive): %s", c.API.Timeout)
	}
	if c.API.Timeout > 0 {
		cfg.API.Timeout = c.API.Timeout
	}
	if c.API.MaxRetriesStr != "" {
		retries, err := strconv.Atoi(c.API.MaxRetriesStr)
		if err != nil || retries < 0 {
			return Config{}, fmt.Errorf("incorrect 'api.max_retries' param in yaml config (must be a non-negative integer): %s", c.API.MaxRetriesStr)
		}
		cfg.API.MaxRetries = retries
	}

	for rawChain, url := range c.RPC {
		id, err := strconv.ParseUint(strings.TrimSpace(rawChain), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'rpc' key in yaml config (must be a chain id): %s", rawChain)
		}
		cfg.RPC[domain.ChainID(id)] = strings.TrimSpace(url)
	}

	cfg.WebAddr = orDefault(c.Web.Addr, cfg.WebAddr)

	cfg.Log.Level = orDefault(c.Log.Level, cfg.Log.Level)
	cfg.Log.Format = orDefault(c.Log.Format, cfg.Log.Format)
	cfg.Log.File = c.Log.File
	cfg.Log.Compress = c.Log.Compress
	if c.Log.MaxSizeMB > 0 {
		cfg.Log.MaxSizeMB = c.Log.MaxSizeMB
	}
	if c.Log.MaxBackups > 0 {
		cfg.Log.MaxBackups = c.Log.MaxBackups
	}
	if c.Log.MaxAgeDays > 0 {
		cfg.Log.MaxAgeDays = c.Log.MaxAgeDays
	}

	if c.Markets.MinSupplyUsdMillionsStr != "" {
		minSupply, err := decimal.NewFromString(c.Markets.MinSupplyUsdMillionsStr)
		if err != nil || minSupply.IsNegative() {
			return Config{}, fmt.Errorf("incorrect 'markets.min_supply_usd_millions' param in yaml config (must be a non-negative decimal): %s",
				c.Markets.MinSupplyUsdMillionsStr)
		}
		cfg.MinSupplyUsdMillions = minSupply
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvWallet)); v != "" {
		wallet, err := ParseWallet(v)
		if err != nil {
			return fmt.Errorf("incorrect %s: %w", EnvWallet, err)
		}
		cfg.Wallet = wallet
	}
	if v := strings.TrimSpace(os.Getenv(EnvChainID)); v != "" {
		chain, err := ParseChainID(v)
		if err != nil {
			return fmt.Errorf("incorrect %s: %w", EnvChainID, err)
		}
		cfg.ChainID = chain
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.Storage.Dir = v
	}
	return nil
}

// ParseWallet validates and checksums an EVM address.
func ParseWallet(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseChainID parses a decimal chain id. Unsupported chains resolve to
// the default chain.
func ParseChainID(s string) (domain.ChainID, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q", s)
	}
	if !domain.IsSupportedChain(domain.ChainID(id)) {
		return domain.DefaultChainID, nil
	}
	return domain.ChainID(id), nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
