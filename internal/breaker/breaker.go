// Package breaker implements the per-campaign circuit breaker over the
// consecutive_transient_errors counter carried on the queue entry.
package breaker

type Breaker struct {
	threshold int
}

func New(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = 10
	}
	return &Breaker{threshold: threshold}
}

// Next folds one outcome into the counter and reports whether the breaker
// tripped. A transient outcome increments; any other outcome decrements
// toward zero instead of hard-resetting, so one lucky send cannot wipe out
// the history of a degrading transport. On trip the counter restarts at
// zero: a fresh start after the pause.
func (b *Breaker) Next(current int, transient bool) (count int, tripped bool) {
	if !transient {
		if current > 0 {
			current--
		}
		return current, false
	}

	current++
	if current >= b.threshold {
		return 0, true
	}
	return current, false
}
