package engine

import (
	"context"
	"sync"
	"time"

	"github.com/easyarb/arbbot/internal/domain"
)

// LocalGuard is a process-local domain.LockManager. It is the default
// execution guard when no distributed lock manager is configured; the TTL is
// ignored because a crashed process releases its mutexes with it.
type LocalGuard struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalGuard creates an empty LocalGuard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{locks: make(map[string]*sync.Mutex)}
}

// Acquire takes the named lock without blocking. It returns
// domain.ErrLockHeld when another holder has it.
func (g *LocalGuard) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	g.mu.Lock()
	lk, ok := g.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		g.locks[key] = lk
	}
	g.mu.Unlock()

	if !lk.TryLock() {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() { once.Do(lk.Unlock) }, nil
}

var _ domain.LockManager = (*LocalGuard)(nil)
