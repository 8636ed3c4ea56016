package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dca-trader/internal/alert"
	"dca-trader/internal/core"
	"dca-trader/internal/exchange"
	"dca-trader/internal/market"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultConfirmTimeout = 300 * time.Second
)

// Trader runs one market order end to end: resolve the pair, quantize and
// submit, then poll until the order leaves pending/open or the wait budget
// runs out. One invocation is fully sequential and holds no state of its
// own; the exchange owns the order.
type Trader struct {
	Exchange       exchange.Exchange
	Alerts         alert.Alerter
	Clock          Clock
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	// MaxFunds caps quote-denominated orders as a fat-finger guard. Zero
	// disables the cap.
	MaxFunds decimal.Decimal
	// Updates optionally delivers order ids from a fill feed; a matching id
	// wakes the confirmation loop early. Polling remains the source of truth.
	Updates <-chan string
}

// Result summarizes one invocation. It is reported to the caller even on
// failure so the last known order state is available for reconciliation.
type Result struct {
	Market         string           `json:"market_name"`
	Side           core.Side        `json:"order_side"`
	Amount         decimal.Decimal  `json:"amount"`
	AmountCurrency string           `json:"amount_currency"`
	Status         core.OrderStatus `json:"status,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	QuoteCurrency  string           `json:"quote_currency,omitempty"`
	WaitedSec      int64            `json:"waited_sec"`
	Order          json.RawMessage  `json:"order,omitempty"`
}

// Execute places and confirms one market order. The returned error is nil
// only on normal terminal completion; a rejected order that was read back
// cleanly counts as normal completion, per policy.
func (t *Trader) Execute(ctx context.Context, req core.OrderRequest) (Result, error) {
	result := Result{
		Market:         req.Market,
		Side:           req.Side,
		Amount:         req.Amount,
		AmountCurrency: req.AmountCurrency,
	}
	if req.Amount.Sign() <= 0 {
		return result, fmt.Errorf("amount must be > 0, got %s", req.Amount)
	}

	res, err := market.Resolve(ctx, t.Exchange, req.Market, req.AmountCurrency)
	if err != nil {
		return result, err
	}
	result.QuoteCurrency = res.Pair.QuoteCurrency

	increment := res.Pair.BaseIncrement
	if res.QuoteDenominated {
		increment = res.Pair.QuoteIncrement
	}
	amount := core.Quantize(req.Amount, increment)
	if amount.Sign() <= 0 {
		return result, fmt.Errorf("%w: %s %s quantizes to zero at increment %s",
			core.ErrAmountTooSmall, req.Amount, req.AmountCurrency, increment)
	}
	if res.QuoteDenominated && t.MaxFunds.Sign() > 0 && amount.Cmp(t.MaxFunds) > 0 {
		return result, fmt.Errorf("%w: %s %s over cap %s",
			core.ErrFundsCapExceeded, amount, req.AmountCurrency, t.MaxFunds)
	}

	spec := exchange.MarketOrderSpec{
		ProductID: res.Pair.ID,
		Side:      req.Side,
		ClientOID: uuid.NewString(),
	}
	if res.QuoteDenominated {
		spec.Funds = amount
	} else {
		spec.Size = amount
	}

	log.Printf("level=INFO event=order_submitting market=%q side=%q amount=%s currency=%q client_oid=%q",
		req.Market, req.Side, amount, req.AmountCurrency, spec.ClientOID)
	order, err := t.Exchange.PlaceMarketOrder(ctx, spec)
	if err != nil {
		log.Printf("level=ERROR event=order_submission_failed market=%q err=%q", req.Market, err.Error())
		return result, err
	}
	result.Status = order.Status
	result.Order = order.Raw
	log.Printf("level=INFO event=order_submitted order_id=%q status=%q", order.ID, order.Status)

	if order.Status == core.OrderRejected {
		// Soft failure: the order exists and is reported below like any
		// other terminal state. Not retried.
		log.Printf("level=WARN event=order_rejected market=%q order_id=%q", req.Market, order.ID)
	}

	order, waited, err := t.await(ctx, order)
	result.Status = order.Status
	result.Order = order.Raw
	result.WaitedSec = int64(waited / time.Second)
	if err != nil {
		return result, err
	}

	price, err := core.RealizedPrice(order.ExecutedValue, order.FilledSize, res.Pair.QuoteIncrement)
	if err != nil {
		if !errors.Is(err, core.ErrNoFill) {
			return result, err
		}
		log.Printf("level=WARN event=order_no_fill order_id=%q status=%q", order.ID, order.Status)
	} else {
		result.Price = &price
	}

	subject := t.subject(result)
	log.Printf("level=INFO event=order_settled order_id=%q status=%q waited_sec=%d subject=%q",
		order.ID, order.Status, result.WaitedSec, subject)
	t.notify(ctx, subject)
	return result, nil
}

// await drives the confirmation state machine. The number of polls is
// unbounded but the accumulated sleep time is capped by the confirm
// timeout, and every iteration sleeps (or consumes a feed wake-up) before
// re-fetching, so the loop never spins.
func (t *Trader) await(ctx context.Context, order core.Order) (core.Order, time.Duration, error) {
	pollInterval := t.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	confirmTimeout := t.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	clock := t.Clock
	if clock == nil {
		clock = realClock{}
	}

	var totalWait time.Duration
	for order.Status.InFlight() {
		if totalWait > confirmTimeout {
			log.Printf("level=ERROR event=confirm_timeout order_id=%q status=%q waited_sec=%d",
				order.ID, order.Status, int64(totalWait/time.Second))
			return order, totalWait, core.ErrConfirmTimeout
		}
		log.Printf("level=INFO event=order_in_flight order_id=%q status=%q waited_sec=%d",
			order.ID, order.Status, int64(totalWait/time.Second))

		slept, err := t.sleepOrWake(ctx, clock, pollInterval, order.ID)
		if err != nil {
			return order, totalWait, err
		}
		totalWait += slept

		fetched, err := t.Exchange.GetOrder(ctx, order.ID)
		if err != nil {
			if errors.Is(err, core.ErrOrderNotFound) {
				// Most likely cancelled out-of-band, e.g. in the web UI.
				log.Printf("level=ERROR event=order_vanished order_id=%q", order.ID)
			}
			return order, totalWait, err
		}
		order = fetched
	}
	return order, totalWait, nil
}

// sleepOrWake blocks for one poll interval, or returns early when the fill
// feed reports activity on this order. Only real sleeps count against the
// wait budget.
func (t *Trader) sleepOrWake(ctx context.Context, clock Clock, pollInterval time.Duration, orderID string) (time.Duration, error) {
	timer := clock.After(pollInterval)
	updates := t.Updates
	for {
		select {
		case <-timer:
			return pollInterval, nil
		case id, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if id == orderID {
				log.Printf("level=INFO event=feed_wake order_id=%q", orderID)
				return 0, nil
			}
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (t *Trader) subject(r Result) string {
	price := "n/a"
	if r.Price != nil {
		price = r.Price.String()
	}
	return fmt.Sprintf("%s %s order of %s %s %s @ %s %s",
		r.Market, r.Side, r.Amount, r.AmountCurrency, r.Status, price, r.QuoteCurrency)
}

func (t *Trader) notify(ctx context.Context, msg string) {
	if t.Alerts == nil {
		return
	}
	if err := t.Alerts.Notify(ctx, msg); err != nil {
		log.Printf("level=ERROR event=alert_notify_failed err=%q", err.Error())
	}
}
