package domain

import (
	"context"
	"time"
)

// LockManager provides mutual exclusion keyed by name. Implementations may be
// process-local or distributed; the engine uses one to guarantee a single
// in-flight execution per pair.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub messaging for telemetry consumers (for example
// detected opportunities in monitor mode).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
