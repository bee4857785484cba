// Command lendscope tracks supply positions on Morpho markets: cost basis and
// profit per position, market listings, claimable rewards and a local ledger
// of transactions sent from this machine.
//
// Usage:
//
//	lendscope positions [-wallet 0x...] [-chain 8453] [-json]
//	lendscope markets [-search usdc] [-min-supply 10] [-sort netApy] [-order asc] [-include-idle]
//	lendscope rewards [-wallet 0x...]
//	lendscope record -type supply -market 0x... -amount 1.5 -tx 0x...
//	lendscope history [-market 0x...]
//	lendscope serve [-addr 127.0.0.1:8080]
//	lendscope setup [-out lendscope.yaml]
//
// Every command accepts -config; LENDSCOPE_WALLET, LENDSCOPE_CHAIN_ID and
// LENDSCOPE_DATA_DIR override the file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/config"
	"github.com/vadiminshakov/lendscope/internal/app"
	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/logging"
	"github.com/vadiminshakov/lendscope/internal/render"
	"github.com/vadiminshakov/lendscope/internal/services/markets"
	"github.com/vadiminshakov/lendscope/internal/services/positions"
	"github.com/vadiminshakov/lendscope/internal/services/transactions"
	"github.com/vadiminshakov/lendscope/internal/setup"
)

const commandTimeout = 2 * time.Minute

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, out io.Writer) error
}

var commands = []command{
	{name: "positions", usage: "show supply positions with cost basis and profit", run: runPositions},
	{name: "markets", usage: "list markets", run: runMarkets},
	{name: "rewards", usage: "show claimable rewards", run: runRewards},
	{name: "record", usage: "record a supply or withdraw sent from this machine", run: runRecord},
	{name: "history", usage: "list locally recorded transactions", run: runHistory},
	{name: "serve", usage: "run the local web dashboard and API", run: runServe},
	{name: "setup", usage: "interactive configuration wizard", run: runSetup},
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if name != "-h" && name != "help" && name != "--help" {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	}
	printUsage(os.Stderr)
	os.Exit(2)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: lendscope <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
}

// env is what every data command needs.
type env struct {
	app *app.App
	cfg config.Config
	l   *zap.Logger
}

func (e *env) close() {
	if err := e.app.Close(); err != nil {
		e.l.Warn("failed to close app", zap.Error(err))
	}
	logging.Sync(e.l)
}

func (e *env) requireWallet() (common.Address, error) {
	if e.cfg.Wallet == (common.Address{}) {
		return common.Address{}, errors.Errorf("wallet is not set: use -wallet, %s or %s", config.EnvWallet, config.DefaultPath)
	}
	return e.cfg.Wallet, nil
}

func (e *env) chain() domain.ChainConfig {
	return domain.GetChainConfig(e.cfg.ChainID)
}

func newEnv(o *config.Overrides) (*env, error) {
	cfg, err := config.Get(o)
	if err != nil {
		return nil, err
	}
	l, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &env{app: app.New(cfg, l), cfg: cfg, l: l}, nil
}

func parse(name string, args []string, register func(fs *flag.FlagSet)) (*config.Overrides, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	o := config.RegisterFlags(fs)
	if register != nil {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runPositions(ctx context.Context, args []string, out io.Writer) error {
	var asJSON bool
	o, err := parse("positions", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&asJSON, "json", false, "print rows as JSON")
	})
	if err != nil {
		return err
	}

	e, err := newEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	owner, err := e.requireWallet()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	list, err := e.app.Positions.Positions(ctx, owner, e.cfg.ChainID)
	if err != nil {
		return err
	}
	rows := positions.ToRows(list, e.chain())
	if asJSON {
		return writeJSON(out, rows)
	}
	_, err = fmt.Fprint(out, render.Positions(e.chain(), rows))
	return err
}

func runMarkets(ctx context.Context, args []string, out io.Writer) error {
	var (
		asJSON      bool
		search      string
		minSupply   string
		sortField   string
		order       string
		includeIdle bool
	)
	o, err := parse("markets", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&asJSON, "json", false, "print rows as JSON")
		fs.StringVar(&search, "search", "", "filter by loan or collateral symbol")
		fs.StringVar(&minSupply, "min-supply", "", "minimum total supply in USD millions")
		fs.StringVar(&sortField, "sort", "", "market, totalSupply, totalBorrow, liquidity, utilization, lltv or netApy")
		fs.StringVar(&order, "order", "desc", "asc or desc")
		fs.BoolVar(&includeIdle, "include-idle", false, "include idle markets")
	})
	if err != nil {
		return err
	}

	e, err := newEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	q := e.app.MarketQuery()
	q.Search = search
	q.IncludeIdle = includeIdle
	if minSupply != "" {
		v, err := decimal.NewFromString(minSupply)
		if err != nil || v.IsNegative() {
			return errors.Errorf("invalid --min-supply provided, --min-supply=%s", minSupply)
		}
		q.MinSupplyUsdMillions = v
	}
	if q.Sort, err = markets.ParseSortField(sortField); err != nil {
		return err
	}
	switch strings.ToLower(order) {
	case "asc":
		q.Ascending = true
	case "desc":
		q.Ascending = false
	default:
		return errors.Errorf("invalid --order provided, --order=%s", order)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	list, err := e.app.Markets.List(ctx, e.cfg.ChainID, q)
	if err != nil {
		return err
	}
	rows := markets.ToRows(list, e.chain())
	if asJSON {
		return writeJSON(out, rows)
	}
	_, err = fmt.Fprint(out, render.Markets(e.chain(), rows))
	return err
}

func runRewards(ctx context.Context, args []string, out io.Writer) error {
	var asJSON bool
	o, err := parse("rewards", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&asJSON, "json", false, "print as JSON")
	})
	if err != nil {
		return err
	}

	e, err := newEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	owner, err := e.requireWallet()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	summary := e.app.Rewards.Rewards(ctx, owner, e.cfg.ChainID)
	if asJSON {
		return writeJSON(out, summary)
	}
	_, err = fmt.Fprint(out, render.Rewards(e.chain(), summary))
	return err
}

func runRecord(ctx context.Context, args []string, out io.Writer) error {
	var kindStr, marketKey, amount, txHash string
	o, err := parse("record", args, func(fs *flag.FlagSet) {
		fs.StringVar(&kindStr, "type", "", "supply or withdraw")
		fs.StringVar(&marketKey, "market", "", "market unique key")
		fs.StringVar(&amount, "amount", "", "amount in token units, example: 1.5")
		fs.StringVar(&txHash, "tx", "", "transaction hash")
	})
	if err != nil {
		return err
	}

	kind, ok := domain.ParseTxKind(kindStr)
	if !ok {
		return errors.Errorf("invalid --type provided, --type=%s", kindStr)
	}
	if marketKey == "" {
		return errors.New("--market is required")
	}

	e, err := newEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	owner, err := e.requireWallet()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	_, recordErr := e.app.Transactions.Record(ctx, transactions.Request{
		Owner:     owner,
		Chain:     e.cfg.ChainID,
		Kind:      kind,
		MarketKey: marketKey,
		Amount:    amount,
		TxHash:    txHash,
	})

	for _, n := range e.app.Notifier.List() {
		line := n.Message
		if n.Link != nil {
			line += " " + n.Link.URL
		}
		fmt.Fprintln(out, line)
	}
	return recordErr
}

func runHistory(_ context.Context, args []string, out io.Writer) error {
	var (
		asJSON    bool
		marketKey string
	)
	o, err := parse("history", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&asJSON, "json", false, "print as JSON")
		fs.StringVar(&marketKey, "market", "", "only this market")
	})
	if err != nil {
		return err
	}

	e, err := newEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	owner, err := e.requireWallet()
	if err != nil {
		return err
	}

	records := e.app.Transactions.History(owner, e.cfg.ChainID, marketKey)
	if asJSON {
		return writeJSON(out, records)
	}
	_, err = fmt.Fprint(out, render.History(e.chain(), records))
	return err
}

func runServe(ctx context.Context, args []string, _ io.Writer) error {
	o, err := parse("serve", args, nil)
	if err != nil {
		return err
	}

	e, err := newEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	if e.cfg.Wallet == (common.Address{}) {
		e.l.Info("no default wallet configured, pass ?wallet= on each request")
	}
	return e.app.Server().Start(ctx)
}

func runSetup(_ context.Context, args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	path := fs.String("out", config.DefaultPath, "where to write the config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return setup.RunTUI(*path)
}
