package trader

import "time"

// Clock abstracts the poll-interval sleep so tests can drive the
// confirmation loop without real delays.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
