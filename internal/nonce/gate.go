// Package nonce serializes signed venue requests behind a monotonic token
// gate. Venues that sign requests with a nonce reject anything they observe
// out of order or repeated, so every signed request for one credential pair
// must hold the gate for its full round trip. Releasing after the nonce is
// stamped but before the venue has seen it would let a later nonce overtake
// an earlier one on the wire.
package nonce

import (
	"context"
	"time"
)

// Gate issues strictly increasing tokens under mutual exclusion. One Gate
// guards one credential pair; it is constructed by the process owner and
// passed as a dependency into whatever issues signed requests, never held as
// an implicit global.
type Gate struct {
	sem  chan struct{}
	last int64
	now  func() int64
}

// NewGate creates an open Gate. Tokens start from the current unix-milli
// clock so a restarted process never reissues a nonce the venue has seen.
func NewGate() *Gate {
	g := &Gate{
		sem: make(chan struct{}, 1),
		now: func() int64 { return time.Now().UnixMilli() },
	}
	g.sem <- struct{}{}
	return g
}

// Acquire blocks cooperatively until any previously issued token has been
// released, then returns a token strictly greater than every token issued
// before it. The caller must call Release exactly once, after the signed
// request completes.
func (g *Gate) Acquire(ctx context.Context) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-g.sem:
	}

	token := g.now()
	if token <= g.last {
		token = g.last + 1
	}
	g.last = token
	return token, nil
}

// Release admits the next waiter.
func (g *Gate) Release() {
	select {
	case g.sem <- struct{}{}:
	default:
		panic("nonce: release without acquire")
	}
}
