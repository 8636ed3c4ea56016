package coinbase

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"dca-trader/internal/core"
)

type apiErrorResponse struct {
	Message string `json:"message"`
}

type placeOrderRequest struct {
	Type      string `json:"type"`
	Side      string `json:"side"`
	ProductID string `json:"product_id"`
	Funds     string `json:"funds,omitempty"`
	Size      string `json:"size,omitempty"`
	ClientOID string `json:"client_oid,omitempty"`
}

type productResponse struct {
	ID             string `json:"id"`
	BaseCurrency   string `json:"base_currency"`
	QuoteCurrency  string `json:"quote_currency"`
	BaseIncrement  string `json:"base_increment"`
	QuoteIncrement string `json:"quote_increment"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	ExecutedValue string `json:"executed_value"`
	FilledSize    string `json:"filled_size"`
	Settled       bool   `json:"settled"`
}

func parseProduct(src productResponse) (core.TradingPair, error) {
	baseInc, err := decimal.NewFromString(src.BaseIncrement)
	if err != nil {
		return core.TradingPair{}, fmt.Errorf("base_increment %q: %w", src.BaseIncrement, err)
	}
	quoteInc, err := decimal.NewFromString(src.QuoteIncrement)
	if err != nil {
		return core.TradingPair{}, fmt.Errorf("quote_increment %q: %w", src.QuoteIncrement, err)
	}
	return core.TradingPair{
		ID:             src.ID,
		BaseCurrency:   src.BaseCurrency,
		QuoteCurrency:  src.QuoteCurrency,
		BaseIncrement:  baseInc,
		QuoteIncrement: quoteInc,
	}, nil
}

func parseOrder(body []byte) (core.Order, error) {
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Order{}, err
	}
	if resp.ID == "" {
		return core.Order{}, fmt.Errorf("order response missing id: %s", string(body))
	}
	order := core.Order{
		ID:      resp.ID,
		Status:  core.OrderStatus(resp.Status),
		Settled: resp.Settled,
		Raw:     json.RawMessage(body),
	}
	// executed_value/filled_size are absent until the order starts filling.
	if resp.ExecutedValue != "" {
		v, err := decimal.NewFromString(resp.ExecutedValue)
		if err != nil {
			return core.Order{}, fmt.Errorf("executed_value %q: %w", resp.ExecutedValue, err)
		}
		order.ExecutedValue = v
	}
	if resp.FilledSize != "" {
		v, err := decimal.NewFromString(resp.FilledSize)
		if err != nil {
			return core.Order{}, fmt.Errorf("filled_size %q: %w", resp.FilledSize, err)
		}
		order.FilledSize = v
	}
	return order, nil
}
