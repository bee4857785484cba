package config

import (
	"flag"
	"fmt"
	"strings"
)

// Overrides are the flags shared by every subcommand.
type Overrides struct {
	Path   string
	Wallet string
	Chain  string
	Addr   string
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Overrides {
	o := &Overrides{}
	fs.StringVar(&o.Path, "config", "", "path to yaml config (default "+DefaultPath+" if present)")
	fs.StringVar(&o.Wallet, "wallet", "", "wallet address, example: 0xAbC...")
	fs.StringVar(&o.Chain, "chain", "", "chain id: 1, 8453, 42161 or 999")
	fs.StringVar(&o.Addr, "addr", "", "web server listen address")
	return o
}

// Get loads the config named by o and applies the flag values on top.
func Get(o *Overrides) (Config, error) {
	if o == nil {
		o = &Overrides{}
	}

	cfg, err := Load(o.Path)
	if err != nil {
		return Config{}, err
	}

	if o.Wallet != "" {
		wallet, err := ParseWallet(o.Wallet)
		if err != nil {
			return Config{}, fmt.Errorf("invalid --wallet provided: %w", err)
		}
		cfg.Wallet = wallet
	}
	if o.Chain != "" {
		chain, err := ParseChainID(o.Chain)
		if err != nil {
			return Config{}, fmt.Errorf("invalid --chain provided: %w", err)
		}
		cfg.ChainID = chain
	}
	if addr := strings.TrimSpace(o.Addr); addr != "" {
		cfg.WebAddr = addr
	}
	return cfg, nil
}
