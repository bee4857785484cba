package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/services/markets"
	"github.com/vadiminshakov/lendscope/internal/services/positions"
	"github.com/vadiminshakov/lendscope/internal/services/transactions"
)

var errNoWallet = errors.New("wallet is required")

type scope struct {
	owner common.Address
	chain domain.ChainConfig
}

// scopeFrom resolves wallet and chain from the query, falling back to the
// server defaults. Unknown chains resolve to Ethereum.
func (s *Server) scopeFrom(r *http.Request, needWallet bool) (scope, error) {
	sc := scope{owner: s.wallet, chain: domain.GetChainConfig(s.chain)}

	if raw := strings.TrimSpace(r.URL.Query().Get("chainId")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return sc, errors.Errorf("invalid chainId %q", raw)
		}
		sc.chain = domain.GetChainConfig(domain.ChainID(id))
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("wallet")); raw != "" {
		if !common.IsHexAddress(raw) {
			return sc, errors.Errorf("invalid wallet %q", raw)
		}
		sc.owner = common.HexToAddress(raw)
	}

	if needWallet && sc.owner == (common.Address{}) {
		return sc, errNoWallet
	}
	return sc, nil
}

func (s *Server) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, requestTimeout)
}

func (s *Server) handleChains(w http.ResponseWriter, _ *http.Request) {
	chains := make([]domain.ChainConfig, 0, len(domain.SupportedChains()))
	for _, id := range domain.SupportedChains() {
		chains = append(chains, domain.GetChainConfig(id))
	}
	writeJSON(w, http.StatusOK, chains)
}

type positionsResponse struct {
	Wallet  string          `json:"wallet"`
	ChainID domain.ChainID  `json:"chainId"`
	Rows    []positions.Row `json:"positions"`
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scopeFrom(r, true)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if s.svc.Positions == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("positions not available"))
		return
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()

	list, err := s.svc.Positions.Positions(ctx, sc.owner, sc.chain.ID)
	if err != nil {
		s.l.Warn("positions request failed", zap.Error(err))
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, positionsResponse{
		Wallet:  sc.owner.Hex(),
		ChainID: sc.chain.ID,
		Rows:    positions.ToRows(list, sc.chain),
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scopeFrom(r, false)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	q, err := s.marketQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if s.svc.Markets == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("markets not available"))
		return
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()

	list, err := s.svc.Markets.List(ctx, sc.chain.ID, q)
	if err != nil {
		s.l.Warn("markets request failed", zap.Error(err))
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, markets.ToRows(list, sc.chain))
}

func (s *Server) marketQuery(r *http.Request) (markets.Query, error) {
	q := s.markets
	params := r.URL.Query()

	q.Search = strings.TrimSpace(params.Get("search"))

	if raw := params.Get("minSupply"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			return q, errors.Errorf("invalid minSupply %q", raw)
		}
		q.MinSupplyUsdMillions = v
	}

	if raw := params.Get("sort"); raw != "" {
		field, err := markets.ParseSortField(raw)
		if err != nil {
			return q, err
		}
		q.Sort = field
	}

	switch order := strings.ToLower(params.Get("order")); order {
	case "":
	case "asc":
		q.Ascending = true
	case "desc":
		q.Ascending = false
	default:
		return q, errors.Errorf("invalid order %q", order)
	}

	if raw := params.Get("includeIdle"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, errors.Errorf("invalid includeIdle %q", raw)
		}
		q.IncludeIdle = v
	}

	return q, nil
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scopeFrom(r, true)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if s.svc.Rewards == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("rewards not available"))
		return
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()

	writeJSON(w, http.StatusOK, s.svc.Rewards.Rewards(ctx, sc.owner, sc.chain.ID))
}

// historyEntry is the API form of a locally recorded transaction.
type historyEntry struct {
	Type          string `json:"type"`
	MarketKey     string `json:"marketKey"`
	TokenSymbol   string `json:"tokenSymbol"`
	TokenDecimals int    `json:"tokenDecimals"`
	Amount        string `json:"amount"`
	Display       string `json:"display"`
	Timestamp     int64  `json:"timestamp"`
	TxHash        string `json:"txHash,omitempty"`
	TxURL         string `json:"txUrl,omitempty"`
}

func toHistoryEntry(rec domain.TransactionRecord, chain domain.ChainConfig) historyEntry {
	e := historyEntry{
		Type:          string(rec.Kind),
		MarketKey:     rec.MarketKey,
		TokenSymbol:   rec.TokenSymbol,
		TokenDecimals: rec.TokenDecimals,
		Amount:        rec.Assets().String(),
		Display:       domain.FormatAmount(rec.Assets(), rec.TokenDecimals, positions.DisplayDecimals),
		Timestamp:     rec.Timestamp,
	}
	if rec.TxHash != nil {
		e.TxHash = rec.TxHash.Hex()
		e.TxURL = chain.TxURL(*rec.TxHash)
	}
	return e
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scopeFrom(r, true)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if s.svc.Transactions == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("history not available"))
		return
	}

	records := s.svc.Transactions.History(sc.owner, sc.chain.ID, strings.TrimSpace(r.URL.Query().Get("market")))
	out := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, toHistoryEntry(rec, sc.chain))
	}
	writeJSON(w, http.StatusOK, out)
}

type recordRequest struct {
	Type      string `json:"type"`
	MarketKey string `json:"marketKey"`
	Amount    string `json:"amount"`
	TxHash    string `json:"txHash"`
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scopeFrom(r, true)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if s.svc.Transactions == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("recording not available"))
		return
	}

	var body recordRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}

	kind, ok := domain.ParseTxKind(body.Type)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, errors.Errorf("unknown transaction type %q", body.Type))
		return
	}
	if strings.TrimSpace(body.MarketKey) == "" {
		writeJSONError(w, http.StatusBadRequest, errors.New("marketKey is required"))
		return
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()

	rec, err := s.svc.Transactions.Record(ctx, transactions.Request{
		Owner:     sc.owner,
		Chain:     sc.chain.ID,
		Kind:      kind,
		MarketKey: strings.TrimSpace(body.MarketKey),
		Amount:    body.Amount,
		TxHash:    body.TxHash,
	})
	if err != nil {
		writeJSONError(w, recordStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toHistoryEntry(rec, sc.chain))
}

func recordStatus(err error) int {
	switch {
	case errors.Is(err, transactions.ErrInvalidAmount),
		errors.Is(err, transactions.ErrZeroAmount),
		errors.Is(err, transactions.ErrInvalidHash):
		return http.StatusBadRequest
	case errors.Is(err, transactions.ErrUnknownMarket):
		return http.StatusNotFound
	case errors.Is(err, transactions.ErrReverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	if s.svc.Notifications == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Notifications.List())
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if s.svc.Notifications != nil {
		s.svc.Notifications.Remove(chi.URLParam(r, "id"))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	if s.svc.Notifications == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("notifications not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.svc.Notifications.Subscribe()
	defer s.svc.Notifications.Unsubscribe(sub)

	if err := writeEvent(w, "snapshot", s.svc.Notifications.List()); err != nil {
		s.l.Warn("notification stream initial write", zap.Error(err))
		return
	}
	flusher.Flush()

	// send a comment heartbeat so proxies keep the connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := writeEvent(w, string(ev.Action), ev.Notification); err != nil {
				s.l.Warn("notification stream write", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
