package alert

import "context"

// Alerter pushes a human-readable message about a trade outcome to an
// external channel. Delivery is best effort; a failed alert never fails
// the trade.
type Alerter interface {
	Notify(ctx context.Context, msg string) error
}
