// Package app wires configuration, storage, upstream clients and services
// into one application root.
package app

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/config"
	"github.com/vadiminshakov/lendscope/internal/clients"
	"github.com/vadiminshakov/lendscope/internal/events"
	"github.com/vadiminshakov/lendscope/internal/metrics"
	"github.com/vadiminshakov/lendscope/internal/services/markets"
	"github.com/vadiminshakov/lendscope/internal/services/positions"
	"github.com/vadiminshakov/lendscope/internal/services/rewards"
	"github.com/vadiminshakov/lendscope/internal/services/transactions"
	"github.com/vadiminshakov/lendscope/internal/storage/kv"
	"github.com/vadiminshakov/lendscope/internal/storage/ledger"
	"github.com/vadiminshakov/lendscope/internal/web"
	"github.com/vadiminshakov/lendscope/pkg/retrier"
)

// App owns every long-lived component. Close releases them.
type App struct {
	Config   config.Config
	Registry *prometheus.Registry
	Notifier *events.Notifier
	Ledger   *ledger.Store

	Positions    *positions.Service
	Markets      *markets.Service
	Rewards      *rewards.Service
	Transactions *transactions.Service

	l     *zap.Logger
	store kv.Store
}

// New builds the application. A ledger that cannot be opened is logged and
// replaced by an empty, read-only one so the rest of the app keeps working.
func New(cfg config.Config, l *zap.Logger) *App {
	if l == nil {
		l = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, err := kv.Open(cfg.Storage.Backend, filepath.Join(cfg.Storage.Dir, string(cfg.Storage.Backend)))
	if err != nil {
		l.Warn("local ledger unavailable, continuing without it",
			zap.String("backend", string(cfg.Storage.Backend)),
			zap.String("dir", cfg.Storage.Dir),
			zap.Error(err))
		store = nil
	}
	txLedger := ledger.New(l, store, ledger.WithNamespace(cfg.Storage.Namespace), ledger.WithMetrics(m))

	opts := []clients.Option{
		clients.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		clients.WithRetrier(retrier.New(
			retrier.WithMaxRetries(cfg.API.MaxRetries),
			retrier.OnRetry(func(retry int, err error, wait time.Duration) {
				l.Debug("retrying upstream call", zap.Int("retry", retry), zap.Duration("wait", wait), zap.Error(err))
			}),
		)),
		clients.WithMetrics(m),
	}
	morpho := clients.NewMorphoClient(l, cfg.API.MorphoGraphQL, opts...)
	merkl := clients.NewMerklClient(l, cfg.API.Merkl, opts...)
	morphoRewards := clients.NewMorphoRewardsClient(l, cfg.API.MorphoRewards, opts...)
	prices := clients.NewPriceClient(l, cfg.API.DefiLlama, opts...)
	receipts := clients.NewReceiptClient(l, cfg.RPC)

	notifier := events.NewNotifier(events.WithOnAdded(m.Notified))

	marketsSvc := markets.NewService(l, morpho)

	return &App{
		Config:       cfg,
		Registry:     reg,
		Notifier:     notifier,
		Ledger:       txLedger,
		Positions:    positions.NewService(l, morpho, txLedger, m),
		Markets:      marketsSvc,
		Rewards:      rewards.NewService(l, merkl, morphoRewards, prices),
		Transactions: transactions.NewService(l, morpho, marketsSvc, receipts, txLedger, notifier, m),
		l:            l,
		store:        store,
	}
}

// MarketQuery is the default listing with the configured supply floor.
func (a *App) MarketQuery() markets.Query {
	q := markets.DefaultQuery()
	q.MinSupplyUsdMillions = a.Config.MinSupplyUsdMillions
	return q
}

// Server builds the web API over the app's services.
func (a *App) Server() *web.Server {
	return web.NewServer(a.l, a.Config.WebAddr, a.Config.Wallet, a.Config.ChainID, web.Services{
		Positions:     a.Positions,
		Markets:       a.Markets,
		Rewards:       a.Rewards,
		Transactions:  a.Transactions,
		Notifications: a.Notifier,
	}, web.WithGatherer(a.Registry), web.WithMarketDefaults(a.MarketQuery()))
}

// Close stops notification timers and closes the ledger storage.
func (a *App) Close() error {
	a.Notifier.Close()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
