package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"dca-trader/internal/core"
)

// MarketOrderSpec describes one market order. Exactly one of Funds (quote
// currency to spend or receive) and Size (base currency quantity) is set.
type MarketOrderSpec struct {
	ProductID string
	Side      core.Side
	Funds     decimal.Decimal
	Size      decimal.Decimal
	ClientOID string
}

type Exchange interface {
	Name() string
	ListProducts(ctx context.Context) ([]core.TradingPair, error)
	PlaceMarketOrder(ctx context.Context, spec MarketOrderSpec) (core.Order, error)
	GetOrder(ctx context.Context, orderID string) (core.Order, error)
}
