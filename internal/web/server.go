// Package web serves the localhost JSON API, the notification stream and a
// minimal HTML shell.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/events"
	"github.com/vadiminshakov/lendscope/internal/services/markets"
	"github.com/vadiminshakov/lendscope/internal/services/positions"
	"github.com/vadiminshakov/lendscope/internal/services/rewards"
	"github.com/vadiminshakov/lendscope/internal/services/transactions"
)

const (
	requestTimeout    = 30 * time.Second
	heartbeatInterval = 30 * time.Second
	maxBodyBytes      = 1 << 16
)

type positionsService interface {
	Positions(ctx context.Context, owner common.Address, chain domain.ChainID) ([]positions.Position, error)
}

type marketsService interface {
	List(ctx context.Context, chain domain.ChainID, q markets.Query) ([]domain.Market, error)
}

type rewardsService interface {
	Rewards(ctx context.Context, owner common.Address, chain domain.ChainID) rewards.Summary
}

type transactionsService interface {
	Record(ctx context.Context, req transactions.Request) (domain.TransactionRecord, error)
	History(owner common.Address, chain domain.ChainID, marketKey string) []domain.TransactionRecord
}

type notificationFeed interface {
	List() []events.Notification
	Subscribe() chan events.Event
	Unsubscribe(ch chan events.Event)
	Remove(id string)
}

// Services groups the backends the API reads from.
type Services struct {
	Positions     positionsService
	Markets       marketsService
	Rewards       rewardsService
	Transactions  transactionsService
	Notifications notificationFeed
}

// Server exposes the API for a default wallet and chain. Both can be
// overridden per request with the wallet and chainId query parameters.
type Server struct {
	l        *zap.Logger
	addr     string
	wallet   common.Address
	chain    domain.ChainID
	svc      Services
	gatherer prometheus.Gatherer
	markets  markets.Query
}

// Option customizes a Server.
type Option func(*Server)

// WithGatherer exposes the registry at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMarketDefaults sets the listing used when no filters are given.
func WithMarketDefaults(q markets.Query) Option {
	return func(s *Server) {
		s.markets = q
	}
}

// NewServer creates a new web server instance.
func NewServer(l *zap.Logger, addr string, wallet common.Address, chain domain.ChainID, svc Services, opts ...Option) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	s := &Server{
		l:       l,
		addr:    addr,
		wallet:  wallet,
		chain:   chain,
		svc:     svc,
		markets: markets.DefaultQuery(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/chains", s.handleChains)
		api.Get("/positions", s.handlePositions)
		api.Get("/markets", s.handleMarkets)
		api.Get("/rewards", s.handleRewards)
		api.Get("/history", s.handleHistory)
		api.Post("/transactions", s.handleRecord)
		api.Get("/notifications", s.handleNotifications)
		api.Delete("/notifications/{id}", s.handleDismiss)
		api.Get("/notifications/stream", s.handleNotificationStream)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("web server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
