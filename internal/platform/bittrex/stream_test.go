package bittrex

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/easyarb/arbbot/internal/domain"
)

func newTestStream() *Stream {
	return NewStream(domain.PairUSDTBTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStreamParseIgnoresOtherMethods(t *testing.T) {
	s := newTestStream()
	require.Empty(t, s.parse([]byte(`{"M":"updateSummaryState","A":[]}`)))
	require.Empty(t, s.parse([]byte(`not json`)))
}

func TestStreamParseIgnoresOtherMarkets(t *testing.T) {
	s := newTestStream()
	events := s.parse([]byte(`{"M":"updateExchangeState","A":[{"MarketName":"USDT-ETH","Buys":[{"Type":0,"Rate":200,"Quantity":1}],"Sells":[]}]}`))
	require.Empty(t, events)
}

func TestStreamParseConvertsSides(t *testing.T) {
	s := newTestStream()
	events := s.parse([]byte(`{"M":"updateExchangeState","A":[{"MarketName":"USDT-BTC","Buys":[{"Type":0,"Rate":40999.5,"Quantity":1.25}],"Sells":[{"Type":2,"Rate":41001,"Quantity":0.5}]}]}`))
	require.Len(t, events, 1)

	ev := events[0]
	require.Equal(t, VenueName, ev.Venue)
	require.Equal(t, domain.PairUSDTBTC, ev.Pair)
	require.Len(t, ev.Bids, 1)
	require.True(t, ev.Bids[0].Price.Equal(decimal.RequireFromString("40999.5")))
	require.True(t, ev.Bids[0].Size.Equal(decimal.RequireFromString("1.25")))
	require.Len(t, ev.Asks, 1)
	require.True(t, ev.Asks[0].Size.Equal(decimal.RequireFromString("0.5")))
}

func TestStreamParseRemovalsComeLast(t *testing.T) {
	s := newTestStream()
	// Removal first on the wire, by Type as well as by zero quantity.
	events := s.parse([]byte(`{"M":"updateExchangeState","A":[{"MarketName":"USDT-BTC","Buys":[{"Type":1,"Rate":40000,"Quantity":1},{"Type":0,"Rate":40500,"Quantity":2},{"Type":2,"Rate":40400,"Quantity":0}],"Sells":[]}]}`))
	require.Len(t, events, 1)

	bids := events[0].Bids
	require.Len(t, bids, 3)
	require.False(t, bids[0].Size.IsZero())
	require.True(t, bids[1].Size.IsZero())
	require.True(t, bids[2].Size.IsZero())
}

func TestStreamFirstEventIsSnapshot(t *testing.T) {
	s := newTestStream()
	frame := []byte(`{"M":"updateExchangeState","A":[{"MarketName":"USDT-BTC","Buys":[{"Type":0,"Rate":40000,"Quantity":1}],"Sells":[]}]}`)

	first := s.parse(frame)
	require.Len(t, first, 1)
	require.True(t, first[0].Snapshot)

	second := s.parse(frame)
	require.Len(t, second, 1)
	require.False(t, second[0].Snapshot)
}
