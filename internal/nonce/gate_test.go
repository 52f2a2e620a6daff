package nonce

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokensStrictlyIncrease(t *testing.T) {
	g := NewGate()
	ctx := context.Background()

	var prev int64
	for i := 0; i < 100; i++ {
		tok, err := g.Acquire(ctx)
		require.NoError(t, err)
		require.Greater(t, tok, prev)
		prev = tok
		g.Release()
	}
}

func TestTokensMonotonicUnderFrozenClock(t *testing.T) {
	g := NewGate()
	g.now = func() int64 { return 42 } // clock that never advances
	ctx := context.Background()

	tok1, err := g.Acquire(ctx)
	require.NoError(t, err)
	g.Release()
	tok2, err := g.Acquire(ctx)
	require.NoError(t, err)
	g.Release()

	require.Equal(t, int64(42), tok1)
	require.Equal(t, int64(43), tok2)
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	g := NewGate()
	ctx := context.Background()

	_, err := g.Acquire(ctx)
	require.NoError(t, err)

	acquired := make(chan int64)
	go func() {
		tok, err := g.Acquire(ctx)
		require.NoError(t, err)
		acquired <- tok
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must block while the gate is held")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
	g.Release()
}

func TestAcquireHonoursContext(t *testing.T) {
	g := NewGate()
	_, err := g.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = g.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	g.Release()
}

func TestConcurrentAcquirersGetDistinctTokens(t *testing.T) {
	g := NewGate()
	ctx := context.Background()

	const n = 50
	tokens := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := g.Acquire(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			tokens <- tok
			g.Release()
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[int64]bool, n)
	for tok := range tokens {
		require.False(t, seen[tok], "token %d issued twice", tok)
		seen[tok] = true
	}
	require.Len(t, seen, n)
}
