// Package api exposes the engine over HTTP: order management, manual
// trades, read views over the stored series, and a websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/quantfold/papertrade/internal/ledger"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/order"
	"github.com/quantfold/papertrade/internal/report"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// Server is the HTTP front of the engine.
type Server struct {
	logger    *logger.Logger
	store     *repository.Store
	engine    *order.Engine
	guard     *ledger.Guard
	costs     ledger.CostModel
	reporter  *report.Reporter
	hub       *Hub
	accountID string

	httpServer *http.Server
}

// NewServer wires the HTTP server. Start with ListenAndServe; stop with
// Shutdown.
func NewServer(
	log *logger.Logger,
	store *repository.Store,
	engine *order.Engine,
	guard *ledger.Guard,
	costs ledger.CostModel,
	reporter *report.Reporter,
	hub *Hub,
	accountID string,
	port int,
) *Server {
	s := &Server{
		logger:    log,
		store:     store,
		engine:    engine,
		guard:     guard,
		costs:     costs,
		reporter:  reporter,
		hub:       hub,
		accountID: accountID,
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/orders", s.handleOrders).Methods(http.MethodPost)
	router.HandleFunc("/api/trade", s.handleTrade).Methods(http.MethodPost)
	router.HandleFunc("/api/account", s.handleAccount).Methods(http.MethodGet)
	router.HandleFunc("/api/positions", s.handlePositions).Methods(http.MethodGet)
	router.HandleFunc("/api/signals", s.handleSignals).Methods(http.MethodGet)
	router.HandleFunc("/api/pressure/{symbol}", s.handlePressure).Methods(http.MethodGet)
	router.HandleFunc("/api/performance", s.handlePerformance).Methods(http.MethodGet)
	router.HandleFunc("/ws", hub.HandleWS).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// ListenAndServe blocks serving HTTP until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// orderRequest is the envelope for POST /api/orders.
type orderRequest struct {
	Mode    string                    `json:"mode"`
	OrderID string                    `json:"order_id,omitempty"`
	Create  *types.CreateOrderRequest `json:"order,omitempty"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	switch req.Mode {
	case "create":
		if req.Create == nil {
			s.writeError(w, errors.New(errors.ErrCodeMissingParameter, "order payload is required for create"))

			return
		}

		created, err := s.engine.Create(r.Context(), *req.Create)
		if err != nil {
			s.writeError(w, err)

			return
		}

		s.hub.Publish(Event{Type: "order_created", Symbol: created.Symbol, Payload: created})
		s.writeJSON(w, http.StatusCreated, created)

	case "check":
		// Idempotent: re-running a check pass only advances orders whose
		// conditions hold.
		result, err := s.engine.CheckAll(r.Context())
		if err != nil {
			s.writeError(w, err)

			return
		}

		s.writeJSON(w, http.StatusOK, result)

	case "cancel":
		if req.OrderID == "" {
			s.writeError(w, errors.New(errors.ErrCodeMissingParameter, "order_id is required for cancel"))

			return
		}

		if err := s.engine.Cancel(req.OrderID); err != nil {
			s.writeError(w, err)

			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "order_id": req.OrderID})

	default:
		s.writeError(w, errors.Newf(errors.ErrCodeInvalidParameter, "unknown mode %q", req.Mode))
	}
}

// tradeRequest is the body of POST /api/trade.
type tradeRequest struct {
	Action   types.OrderSide `json:"action"`
	Symbol   string          `json:"symbol"`
	Quantity float64         `json:"quantity"`
}

type tradeResponse struct {
	Message     string  `json:"message"`
	CashBalance float64 `json:"cash_balance"`
	Fee         float64 `json:"fee"`
	Slippage    float64 `json:"slippage"`
	Total       float64 `json:"total"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	if req.Symbol == "" {
		s.writeError(w, errors.New(errors.ErrCodeMissingParameter, "symbol is required"))

		return
	}

	quoteOpt, err := s.store.LatestQuote(req.Symbol)
	if err != nil {
		s.writeError(w, err)

		return
	}

	quote, err := quoteOpt.Take()
	if err != nil {
		s.writeError(w, errors.Newf(errors.ErrCodeQuoteUnavailable, "no quote stored for %s", req.Symbol))

		return
	}

	var result ledger.TradeResult

	switch req.Action {
	case types.OrderSideBuy:
		result, err = s.guard.ExecuteBuy(s.accountID, req.Symbol, req.Quantity, quote.LastPrice, s.costs)
	case types.OrderSideSell:
		result, err = s.guard.ExecuteSell(s.accountID, req.Symbol, req.Quantity, quote.LastPrice, s.costs)
	default:
		err = errors.Newf(errors.ErrCodeInvalidParameter, "unknown action %q", req.Action)
	}

	if err != nil {
		s.writeError(w, err)

		return
	}

	s.hub.Publish(Event{Type: "trade_executed", Symbol: req.Symbol, Payload: result})

	s.writeJSON(w, http.StatusOK, tradeResponse{
		Message:     fmt.Sprintf("%s %s executed at %.2f", req.Action, req.Symbol, quote.LastPrice),
		CashBalance: result.Account.CashBalance,
		Fee:         result.Fee,
		Slippage:    result.Slippage,
		Total:       result.Total,
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.guard.Repair(s.accountID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListPositions(s.accountID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if positions == nil {
		positions = []types.Position{}
	}

	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.store.ListRecentSignals(time.Now().Add(-24*time.Hour), 100)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if signals == nil {
		signals = []types.Signal{}
	}

	s.writeJSON(w, http.StatusOK, signals)
}

func (s *Server) handlePressure(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	recordOpt, err := s.store.LatestPressure(symbol)
	if err != nil {
		s.writeError(w, err)

		return
	}

	record, err := recordOpt.Take()
	if err != nil {
		s.writeError(w, errors.Newf(errors.ErrCodeDataNotFound, "no pressure data for %s", symbol))

		return
	}

	response := map[string]any{"pressure": record}

	if spOpt, spErr := s.store.LatestSemanticPressure(symbol); spErr == nil && spOpt.IsSome() {
		response["semantic"] = spOpt.Unwrap()
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)

	perf, err := s.reporter.Generate(r.Context(), s.accountID, since)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, perf)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

// writeError maps the error taxonomy onto HTTP statuses: rejections are
// client errors, missing data is 404, advisor throttling is 429, everything
// unexpected is a generic 500 without internal detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.IsRejection(err):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.HasCode(err, errors.ErrCodeInvalidParameter),
		errors.HasCode(err, errors.ErrCodeMissingParameter):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.HasCode(err, errors.ErrCodeDataNotFound),
		errors.HasCode(err, errors.ErrCodeOrderNotFound),
		errors.HasCode(err, errors.ErrCodeAccountNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.IsRateLimited(err):
		status = http.StatusTooManyRequests
		message = err.Error()
	case errors.HasCode(err, errors.ErrCodeQuoteUnavailable):
		status = http.StatusServiceUnavailable
		message = err.Error()
	case errors.HasCode(err, errors.ErrCodeOrderTerminal),
		errors.HasCode(err, errors.ErrCodeConflict):
		status = http.StatusConflict
		message = err.Error()
	default:
		s.logger.Error("Unhandled error at handler boundary", zap.Error(err))
	}

	s.writeJSON(w, status, map[string]string{"error": message})
}
