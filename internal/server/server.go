package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"dca-trader/internal/core"
	"dca-trader/internal/trader"
)

// Executor is what the trade handler needs from the trader.
type Executor interface {
	Execute(ctx context.Context, req core.OrderRequest) (trader.Result, error)
}

type Server struct {
	executor Executor
}

func New(executor Executor) *Server {
	return &Server{executor: executor}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/trade", s.handleTrade).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return r
}

// tradeRequest is the invocation payload, field for field what a scheduler
// sends to trigger one order.
type tradeRequest struct {
	MarketName     string `json:"market_name"`
	OrderSide      string `json:"order_side"`
	Amount         string `json:"amount"`
	AmountCurrency string `json:"amount_currency"`
}

type errorResponse struct {
	Error  string         `json:"error"`
	Result *trader.Result `json:"result,omitempty"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	orderReq, errMsg := parseTradeRequest(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errMsg})
		return
	}

	result, err := s.executor.Execute(r.Context(), orderReq)
	if err != nil {
		// Failure responses still carry the last known order state so the
		// caller can reconcile manually; nothing is retried or cancelled.
		log.Printf("level=ERROR event=trade_failed market=%q err=%q", orderReq.Market, err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Result: &result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseTradeRequest(req tradeRequest) (core.OrderRequest, string) {
	if req.MarketName == "" {
		return core.OrderRequest{}, "market_name is required"
	}
	side, ok := core.ParseSide(req.OrderSide)
	if !ok {
		return core.OrderRequest{}, "order_side must be buy or sell"
	}
	if req.Amount == "" {
		return core.OrderRequest{}, "amount is required"
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return core.OrderRequest{}, "amount must be a decimal string"
	}
	if amount.Sign() <= 0 {
		return core.OrderRequest{}, "amount must be > 0"
	}
	if req.AmountCurrency == "" {
		return core.OrderRequest{}, "amount_currency is required"
	}
	return core.OrderRequest{
		Market:         req.MarketName,
		Side:           side,
		Amount:         amount,
		AmountCurrency: req.AmountCurrency,
	}, ""
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=ERROR event=response_encode_failed err=%q", err.Error())
	}
}
