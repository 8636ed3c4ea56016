package trader

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dca-trader/internal/core"
	"dca-trader/internal/exchange"
)

// fakeClock fires sleeps immediately and records how much sleep time the
// confirmation loop asked for.
type fakeClock struct {
	slept time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.slept += d
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// blockClock never fires; used to prove feed wake-ups bypass the sleep.
type blockClock struct{}

func (blockClock) After(d time.Duration) <-chan time.Time { return make(chan time.Time) }

type getResult struct {
	order core.Order
	err   error
}

type fakeExchange struct {
	pairs      []core.TradingPair
	submitted  core.Order
	placeErr   error
	placed     []exchange.MarketOrderSpec
	getResults []getResult
	gets       int
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) ListProducts(ctx context.Context) ([]core.TradingPair, error) {
	return f.pairs, nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, spec exchange.MarketOrderSpec) (core.Order, error) {
	f.placed = append(f.placed, spec)
	if f.placeErr != nil {
		return core.Order{}, f.placeErr
	}
	return f.submitted, nil
}

func (f *fakeExchange) GetOrder(ctx context.Context, orderID string) (core.Order, error) {
	i := f.gets
	if i >= len(f.getResults) {
		i = len(f.getResults) - 1
	}
	f.gets++
	res := f.getResults[i]
	return res.order, res.err
}

func btcUSD() core.TradingPair {
	return core.TradingPair{
		ID:             "BTC-USD",
		BaseCurrency:   "BTC",
		QuoteCurrency:  "USD",
		BaseIncrement:  decimal.RequireFromString("0.00000001"),
		QuoteIncrement: decimal.RequireFromString("0.01"),
	}
}

func orderAt(status core.OrderStatus, executedValue, filledSize string) core.Order {
	o := core.Order{ID: "abc", Status: status}
	if executedValue != "" {
		o.ExecutedValue = decimal.RequireFromString(executedValue)
	}
	if filledSize != "" {
		o.FilledSize = decimal.RequireFromString(filledSize)
	}
	o.Raw = json.RawMessage(`{"id":"abc","status":"` + string(status) + `"}`)
	return o
}

func buyRequest(amount, currency string) core.OrderRequest {
	return core.OrderRequest{
		Market:         "BTC-USD",
		Side:           core.Buy,
		Amount:         decimal.RequireFromString(amount),
		AmountCurrency: currency,
	}
}

func TestExecuteEndToEnd(t *testing.T) {
	ex := &fakeExchange{
		pairs:     []core.TradingPair{btcUSD()},
		submitted: orderAt(core.OrderPending, "", ""),
		getResults: []getResult{
			{order: orderAt(core.OrderDone, "99.50", "0.002")},
		},
	}
	clock := &fakeClock{}
	tr := &Trader{Exchange: ex, Clock: clock}

	result, err := tr.Execute(context.Background(), buyRequest("100", "USD"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != core.OrderDone {
		t.Fatalf("Status = %s, want done", result.Status)
	}
	if result.Price == nil || !result.Price.Equal(decimal.RequireFromString("49750.00")) {
		t.Fatalf("Price = %v, want 49750.00", result.Price)
	}
	if result.QuoteCurrency != "USD" {
		t.Fatalf("QuoteCurrency = %s, want USD", result.QuoteCurrency)
	}
	if clock.slept != 5*time.Second {
		t.Fatalf("slept = %s, want 5s", clock.slept)
	}
	if len(ex.placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(ex.placed))
	}
	spec := ex.placed[0]
	if !spec.Funds.Equal(decimal.RequireFromString("100")) || spec.Size.Sign() != 0 {
		t.Fatalf("funds/size = %s/%s, want 100/0", spec.Funds, spec.Size)
	}
	if spec.Side != core.Buy || spec.ProductID != "BTC-USD" {
		t.Fatalf("spec = %+v", spec)
	}
	if spec.ClientOID == "" {
		t.Fatalf("client oid should be set")
	}
}

func TestExecuteWaitsThroughPendingAndOpen(t *testing.T) {
	ex := &fakeExchange{
		pairs:     []core.TradingPair{btcUSD()},
		submitted: orderAt(core.OrderPending, "", ""),
		getResults: []getResult{
			{order: orderAt(core.OrderOpen, "", "")},
			{order: orderAt(core.OrderDone, "50.00", "0.001")},
		},
	}
	clock := &fakeClock{}
	tr := &Trader{Exchange: ex, Clock: clock}

	result, err := tr.Execute(context.Background(), buyRequest("50", "USD"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != core.OrderDone {
		t.Fatalf("Status = %s, want done", result.Status)
	}
	if clock.slept != 10*time.Second {
		t.Fatalf("slept = %s, want 10s (two polls)", clock.slept)
	}
	if result.WaitedSec != 10 {
		t.Fatalf("WaitedSec = %d, want 10", result.WaitedSec)
	}
}

func TestExecuteTimesOutWithinBudget(t *testing.T) {
	ex := &fakeExchange{
		pairs:     []core.TradingPair{btcUSD()},
		submitted: orderAt(core.OrderPending, "", ""),
		getResults: []getResult{
			{order: orderAt(core.OrderPending, "", "")},
		},
	}
	clock := &fakeClock{}
	tr := &Trader{Exchange: ex, Clock: clock}

	result, err := tr.Execute(context.Background(), buyRequest("100", "USD"))
	if !errors.Is(err, core.ErrConfirmTimeout) {
		t.Fatalf("Execute() error = %v, want %v", err, core.ErrConfirmTimeout)
	}
	// The budget check runs before each sleep, so the loop overshoots the
	// 300s threshold by at most one 5s interval.
	if clock.slept <= 300*time.Second || clock.slept > 305*time.Second {
		t.Fatalf("slept = %s, want (300s, 305s]", clock.slept)
	}
	if result.Status != core.OrderPending {
		t.Fatalf("Status = %s, want last known pending", result.Status)
	}
}

func TestExecuteOrderVanished(t *testing.T) {
	ex := &fakeExchange{
		pairs:     []core.TradingPair{btcUSD()},
		submitted: orderAt(core.OrderPending, "", ""),
		getResults: []getResult{
			{err: core.ErrOrderNotFound},
		},
	}
	tr := &Trader{Exchange: ex, Clock: &fakeClock{}}

	result, err := tr.Execute(context.Background(), buyRequest("100", "USD"))
	if !errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("Execute() error = %v, want %v", err, core.ErrOrderNotFound)
	}
	if result.Status != core.OrderPending {
		t.Fatalf("Status = %s, want last known pending", result.Status)
	}
}

func TestExecuteRejectedOrderIsNormalCompletion(t *testing.T) {
	ex := &fakeExchange{
		pairs:      []core.TradingPair{btcUSD()},
		submitted:  orderAt(core.OrderRejected, "0", "0"),
		getResults: []getResult{{order: orderAt(core.OrderRejected, "0", "0")}},
	}
	clock := &fakeClock{}
	tr := &Trader{Exchange: ex, Clock: clock}

	result, err := tr.Execute(context.Background(), buyRequest("100", "USD"))
	if err != nil {
		t.Fatalf("Execute() error = %v, rejected read-back should be normal completion", err)
	}
	if result.Status != core.OrderRejected {
		t.Fatalf("Status = %s, want rejected", result.Status)
	}
	if result.Price != nil {
		t.Fatalf("Price = %v, want nil for zero fill", result.Price)
	}
	if clock.slept != 0 {
		t.Fatalf("slept = %s, rejected is terminal and needs no polling", clock.slept)
	}
}

func TestExecuteQuantizesFundsDown(t *testing.T) {
	ex := &fakeExchange{
		pairs:      []core.TradingPair{btcUSD()},
		submitted:  orderAt(core.OrderDone, "100.12", "0.002"),
		getResults: []getResult{{order: orderAt(core.OrderDone, "100.12", "0.002")}},
	}
	tr := &Trader{Exchange: ex, Clock: &fakeClock{}}

	if _, err := tr.Execute(context.Background(), buyRequest("100.129", "USD")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !ex.placed[0].Funds.Equal(decimal.RequireFromString("100.12")) {
		t.Fatalf("Funds = %s, want 100.12", ex.placed[0].Funds)
	}
}

func TestExecuteBaseDenominatedUsesSize(t *testing.T) {
	ex := &fakeExchange{
		pairs:      []core.TradingPair{btcUSD()},
		submitted:  orderAt(core.OrderDone, "50.00", "0.001"),
		getResults: []getResult{{order: orderAt(core.OrderDone, "50.00", "0.001")}},
	}
	tr := &Trader{Exchange: ex, Clock: &fakeClock{}}

	req := core.OrderRequest{
		Market:         "BTC-USD",
		Side:           core.Sell,
		Amount:         decimal.RequireFromString("0.001"),
		AmountCurrency: "BTC",
	}
	if _, err := tr.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	spec := ex.placed[0]
	if !spec.Size.Equal(decimal.RequireFromString("0.001")) || spec.Funds.Sign() != 0 {
		t.Fatalf("funds/size = %s/%s, want 0/0.001", spec.Funds, spec.Size)
	}
	if spec.Side != core.Sell {
		t.Fatalf("Side = %s, want sell", spec.Side)
	}
}

func TestExecuteAmountQuantizesToZero(t *testing.T) {
	ex := &fakeExchange{pairs: []core.TradingPair{btcUSD()}}
	tr := &Trader{Exchange: ex, Clock: &fakeClock{}}

	_, err := tr.Execute(context.Background(), buyRequest("0.001", "USD"))
	if !errors.Is(err, core.ErrAmountTooSmall) {
		t.Fatalf("Execute() error = %v, want %v", err, core.ErrAmountTooSmall)
	}
	if len(ex.placed) != 0 {
		t.Fatalf("no order should be placed, got %d", len(ex.placed))
	}
}

func TestExecuteFundsCap(t *testing.T) {
	ex := &fakeExchange{pairs: []core.TradingPair{btcUSD()}}
	tr := &Trader{
		Exchange: ex,
		Clock:    &fakeClock{},
		MaxFunds: decimal.RequireFromString("50"),
	}

	_, err := tr.Execute(context.Background(), buyRequest("100", "USD"))
	if !errors.Is(err, core.ErrFundsCapExceeded) {
		t.Fatalf("Execute() error = %v, want %v", err, core.ErrFundsCapExceeded)
	}
	if len(ex.placed) != 0 {
		t.Fatalf("no order should be placed, got %d", len(ex.placed))
	}
}

func TestExecuteSubmissionRejected(t *testing.T) {
	ex := &fakeExchange{
		pairs:    []core.TradingPair{btcUSD()},
		placeErr: errors.Join(core.ErrSubmissionRejected, errors.New("Insufficient funds")),
	}
	tr := &Trader{Exchange: ex, Clock: &fakeClock{}}

	_, err := tr.Execute(context.Background(), buyRequest("100", "USD"))
	if !errors.Is(err, core.ErrSubmissionRejected) {
		t.Fatalf("Execute() error = %v, want %v", err, core.ErrSubmissionRejected)
	}
}

func TestExecuteFeedWakeSkipsSleep(t *testing.T) {
	updates := make(chan string, 2)
	updates <- "someone-else"
	updates <- "abc"
	ex := &fakeExchange{
		pairs:      []core.TradingPair{btcUSD()},
		submitted:  orderAt(core.OrderPending, "", ""),
		getResults: []getResult{{order: orderAt(core.OrderDone, "99.50", "0.002")}},
	}
	tr := &Trader{Exchange: ex, Clock: blockClock{}, Updates: updates}

	result, err := tr.Execute(context.Background(), buyRequest("100", "USD"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != core.OrderDone {
		t.Fatalf("Status = %s, want done", result.Status)
	}
	if result.WaitedSec != 0 {
		t.Fatalf("WaitedSec = %d, want 0 (feed wake, no sleep)", result.WaitedSec)
	}
}

func TestExecuteContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := &fakeExchange{
		pairs:      []core.TradingPair{btcUSD()},
		submitted:  orderAt(core.OrderPending, "", ""),
		getResults: []getResult{{order: orderAt(core.OrderPending, "", "")}},
	}
	tr := &Trader{Exchange: ex, Clock: blockClock{}}

	_, err := tr.Execute(ctx, buyRequest("100", "USD"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
}
