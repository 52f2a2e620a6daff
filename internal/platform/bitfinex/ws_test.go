package bitfinex

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/easyarb/arbbot/internal/domain"
)

func newTestFeed() *Feed {
	return NewFeed(domain.PairUSDTBTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseIgnoresControlFrames(t *testing.T) {
	f := newTestFeed()

	for _, raw := range []string{
		`{"event":"info","version":2}`,
		`{"event":"subscribed","channel":"book","chanId":17,"symbol":"tBTCUSD"}`,
		`[17,"hb"]`,
	} {
		_, ok, err := f.parse([]byte(raw))
		require.NoError(t, err, raw)
		require.False(t, ok, raw)
	}
}

func TestParseErrorFrame(t *testing.T) {
	f := newTestFeed()

	_, _, err := f.parse([]byte(`{"event":"error","msg":"symbol: invalid","code":10300}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "symbol: invalid")
}

func TestParseSnapshotSplitsSides(t *testing.T) {
	f := newTestFeed()

	ev, ok, err := f.parse([]byte(`[17,[[41000,2,1.5],[40999,1,0.25],[41001,1,-2],[41002,3,-0.7]]]`))
	require.NoError(t, err)
	require.True(t, ok)

	require.True(t, ev.Snapshot)
	require.Equal(t, VenueName, ev.Venue)
	require.Equal(t, domain.PairUSDTBTC, ev.Pair)

	require.Len(t, ev.Bids, 2)
	require.True(t, ev.Bids[0].Price.Equal(decimal.RequireFromString("41000")))
	require.True(t, ev.Bids[0].Size.Equal(decimal.RequireFromString("1.5")))

	require.Len(t, ev.Asks, 2)
	// Ask sizes come back positive regardless of the wire sign.
	require.True(t, ev.Asks[0].Size.Equal(decimal.RequireFromString("2")))
	require.True(t, ev.Asks[1].Size.Equal(decimal.RequireFromString("0.7")))
}

func TestParseSingleUpdate(t *testing.T) {
	f := newTestFeed()

	ev, ok, err := f.parse([]byte(`[17,[41002,3,-0.7]]`))
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, ev.Snapshot)
	require.Empty(t, ev.Bids)
	require.Len(t, ev.Asks, 1)
	require.True(t, ev.Asks[0].Size.Equal(decimal.RequireFromString("0.7")))
}

func TestParseZeroCountBecomesRemoval(t *testing.T) {
	f := newTestFeed()

	ev, ok, err := f.parse([]byte(`[17,[41000,0,1]]`))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, ev.Bids, 1)
	require.True(t, ev.Bids[0].Size.IsZero())
	require.True(t, ev.Bids[0].Price.Equal(decimal.RequireFromString("41000")))
}

func TestParseOrdersRemovalsAfterUpdates(t *testing.T) {
	f := newTestFeed()

	// Removal appears before the update on the wire; the event must carry
	// the update first so the removal is never lost to re-application.
	ev, ok, err := f.parse([]byte(`[17,[[41000,0,1],[40990,2,3]]]`))
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, ev.Bids, 2)
	require.False(t, ev.Bids[0].Size.IsZero())
	require.True(t, ev.Bids[1].Size.IsZero())
}
