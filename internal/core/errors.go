package core

import "errors"

var (
	// ErrInvalidMarket indicates no trading pair matches the requested market id.
	ErrInvalidMarket = errors.New("invalid market")
	// ErrAmbiguousMarket indicates the product list contains the market id more than once.
	ErrAmbiguousMarket = errors.New("ambiguous market")
	// ErrCurrencyMismatch indicates the amount currency is neither the pair's base nor quote.
	ErrCurrencyMismatch = errors.New("amount currency not in market")
	// ErrAmountTooSmall indicates the amount quantized to zero for the pair's increment.
	ErrAmountTooSmall = errors.New("amount below increment")
	// ErrFundsCapExceeded indicates the quantized amount is over the configured max_funds cap.
	ErrFundsCapExceeded = errors.New("amount exceeds funds cap")
	// ErrSubmissionRejected indicates the exchange returned an error instead of an order.
	ErrSubmissionRejected = errors.New("submission rejected")
	// ErrOrderRejected indicates the exchange accepted the request but rejected the order.
	ErrOrderRejected = errors.New("order rejected")
	// ErrOrderNotFound indicates the order no longer exists on the exchange.
	ErrOrderNotFound = errors.New("order not found")
	// ErrConfirmTimeout indicates the order stayed in flight past the wait budget.
	ErrConfirmTimeout = errors.New("order confirmation timed out")
	// ErrNoFill indicates a terminal order with zero filled size, so no price exists.
	ErrNoFill = errors.New("order has no fill")
)
