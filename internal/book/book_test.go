package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/easyarb/arbbot/internal/domain"
)

func lvl(price, size string) domain.PriceLevel {
	return domain.PriceLevel{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

func TestApplyDeltasUpsertAndSnapshotOrder(t *testing.T) {
	b := New("BITF", domain.PairUSDTBTC)

	b.ApplyDeltas(domain.SideAsk, []domain.PriceLevel{
		lvl("101", "2"), lvl("100", "1"), lvl("102", "3"),
	})
	b.ApplyDeltas(domain.SideBid, []domain.PriceLevel{
		lvl("98", "1"), lvl("99", "2"), lvl("97", "3"),
	})

	asks := b.Snapshot(domain.SideAsk)
	require.Len(t, asks, 3)
	for i := 1; i < len(asks); i++ {
		require.True(t, asks[i].Price.GreaterThan(asks[i-1].Price), "asks must be ascending")
	}
	require.Equal(t, "100", asks[0].Price.String())

	bids := b.Snapshot(domain.SideBid)
	require.Len(t, bids, 3)
	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i].Price.LessThan(bids[i-1].Price), "bids must be descending")
	}
	require.Equal(t, "99", bids[0].Price.String())
}

func TestZeroSizeRemovesLevel(t *testing.T) {
	b := New("BITF", domain.PairUSDTBTC)

	b.ApplyDeltas(domain.SideAsk, []domain.PriceLevel{lvl("100", "1"), lvl("101", "2")})
	b.ApplyDeltas(domain.SideAsk, []domain.PriceLevel{lvl("100", "0")})

	asks := b.Snapshot(domain.SideAsk)
	require.Len(t, asks, 1)
	require.Equal(t, "101", asks[0].Price.String())

	// Removing an absent price is a no-op, not an error.
	b.ApplyDeltas(domain.SideAsk, []domain.PriceLevel{lvl("250", "0")})
	require.Equal(t, 1, b.Depth(domain.SideAsk))
}

func TestEveryStoredSizeIsPositive(t *testing.T) {
	b := New("BTRX", domain.PairUSDTBTC)

	deltas := []domain.PriceLevel{
		lvl("100", "1"), lvl("100", "0"), lvl("101", "2"),
		lvl("102", "5"), lvl("102", "0"), lvl("103", "0.5"),
	}
	b.ApplyDeltas(domain.SideBid, deltas)

	for _, l := range b.Snapshot(domain.SideBid) {
		require.True(t, l.Size.IsPositive(), "size at %s must be > 0", l.Price)
	}
	require.Equal(t, 2, b.Depth(domain.SideBid))
}

func TestLastDeltaWinsWithinBatch(t *testing.T) {
	b := New("BITF", domain.PairUSDTBTC)

	b.ApplyDeltas(domain.SideAsk, []domain.PriceLevel{
		lvl("100", "1"), lvl("100", "7"),
	})

	asks := b.Snapshot(domain.SideAsk)
	require.Len(t, asks, 1)
	require.Equal(t, "7", asks[0].Size.String())
}

func TestEmptySideYieldsEmptySnapshot(t *testing.T) {
	b := New("BITF", domain.PairUSDTBTC)

	require.Empty(t, b.Snapshot(domain.SideAsk))
	require.Empty(t, b.Snapshot(domain.SideBid))
	require.True(t, b.Best(domain.SideAsk).IsZero())
}

func TestSnapshotIsDefensiveCopy(t *testing.T) {
	b := New("BITF", domain.PairUSDTBTC)
	b.ApplyDeltas(domain.SideAsk, []domain.PriceLevel{lvl("100", "1")})

	snap := b.Snapshot(domain.SideAsk)
	snap[0].Size = decimal.RequireFromString("99")

	again := b.Snapshot(domain.SideAsk)
	require.Equal(t, "1", again[0].Size.String())
}

func TestEquivalentPriceRepresentationsCollapse(t *testing.T) {
	b := New("BTRX", domain.PairUSDTBTC)

	// 100 and 100.0 are the same price level.
	b.ApplyDeltas(domain.SideAsk, []domain.PriceLevel{lvl("100", "1")})
	b.ApplyDeltas(domain.SideAsk, []domain.PriceLevel{lvl("100.0", "3")})

	require.Equal(t, 1, b.Depth(domain.SideAsk))
	require.Equal(t, "3", b.Snapshot(domain.SideAsk)[0].Size.String())
}
