package market

import (
	"context"
	"fmt"

	"dca-trader/internal/core"
	"dca-trader/internal/exchange"
)

// Resolution binds a trading pair to the caller's amount denomination.
// QuoteDenominated decides whether the order is submitted as funds (quote
// currency) or size (base currency).
type Resolution struct {
	Pair             core.TradingPair
	QuoteDenominated bool
}

// Resolve fetches the product list and matches marketID exactly. The first
// exact match wins; a second exact match means the product list itself is
// malformed and resolution fails before any money can move.
func Resolve(ctx context.Context, ex exchange.Exchange, marketID, amountCurrency string) (Resolution, error) {
	pairs, err := ex.ListProducts(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("list products: %w", err)
	}

	var matched *core.TradingPair
	for i := range pairs {
		if pairs[i].ID != marketID {
			continue
		}
		if matched != nil {
			return Resolution{}, fmt.Errorf("%w: %s listed more than once", core.ErrAmbiguousMarket, marketID)
		}
		matched = &pairs[i]
	}
	if matched == nil {
		return Resolution{}, fmt.Errorf("%w: %s", core.ErrInvalidMarket, marketID)
	}

	switch amountCurrency {
	case matched.QuoteCurrency:
		return Resolution{Pair: *matched, QuoteDenominated: true}, nil
	case matched.BaseCurrency:
		return Resolution{Pair: *matched, QuoteDenominated: false}, nil
	}
	return Resolution{}, fmt.Errorf("%w: %s not in %s", core.ErrCurrencyMismatch, amountCurrency, marketID)
}
