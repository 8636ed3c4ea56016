package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type Side string

type OrderStatus string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

const (
	OrderPending  OrderStatus = "pending"
	OrderOpen     OrderStatus = "open"
	OrderActive   OrderStatus = "active"
	OrderDone     OrderStatus = "done"
	OrderRejected OrderStatus = "rejected"
)

// ParseSide accepts buy/sell in any case; the exchange only accepts lowercase.
func ParseSide(v string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "buy":
		return Buy, true
	case "sell":
		return Sell, true
	}
	return "", false
}

// InFlight reports whether the order is still working on the exchange and
// needs another poll before its outcome is known. Any other status is
// treated as terminal.
func (s OrderStatus) InFlight() bool {
	switch s {
	case OrderPending, OrderOpen, OrderActive:
		return true
	}
	return false
}

// TradingPair is the exchange's listing metadata for one market. It is
// fetched fresh per invocation and never cached across invocations.
type TradingPair struct {
	ID             string
	BaseCurrency   string
	QuoteCurrency  string
	BaseIncrement  decimal.Decimal
	QuoteIncrement decimal.Decimal
}

// OrderRequest carries the caller's intent: trade Amount, denominated in
// AmountCurrency, on Market. AmountCurrency must equal the pair's base or
// quote currency; that invariant is enforced before anything is submitted.
type OrderRequest struct {
	Market         string
	Side           Side
	Amount         decimal.Decimal
	AmountCurrency string
}

// Order mirrors the exchange's view of a submitted order. Raw keeps the
// exchange payload verbatim for the diagnostics body.
type Order struct {
	ID            string
	Status        OrderStatus
	ExecutedValue decimal.Decimal
	FilledSize    decimal.Decimal
	Settled       bool
	Raw           json.RawMessage
}
