package bittrex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
)

const (
	defaultStreamURL = "wss://socket.bittrex.com/signalr"

	streamWriteWait        = 10 * time.Second
	streamPongWait         = 60 * time.Second
	streamPingPeriod       = (streamPongWait * 9) / 10
	streamReconnectDelay   = 2 * time.Second
	streamMaxReconnectWait = 60 * time.Second
	streamHandshakeTimeout = 15 * time.Second
)

// exchangeState is one market's worth of level updates in an
// updateExchangeState message.
type exchangeState struct {
	MarketName string        `json:"MarketName"`
	Nonce      int64         `json:"Nounce"`
	Buys       []streamLevel `json:"Buys"`
	Sells      []streamLevel `json:"Sells"`
}

// streamLevel is a single level update. Type 1 and quantity zero both mean
// the level is gone.
type streamLevel struct {
	Type     int             `json:"Type"`
	Rate     decimal.Decimal `json:"Rate"`
	Quantity decimal.Decimal `json:"Quantity"`
}

const levelRemove = 1

// streamMessage is the outer frame of the exchange-state stream.
type streamMessage struct {
	M string          `json:"M"`
	A []exchangeState `json:"A"`
}

// Stream consumes the exchange-state feed for one market and emits level
// deltas. Reconnects with exponential backoff; the first message after a
// subscribe carries the full book and is surfaced as a snapshot.
type Stream struct {
	streamURL string
	pair      domain.Pair
	events    chan domain.BookEvent
	logger    *slog.Logger

	sawSnapshot bool
}

// NewStream creates a Stream for the given pair.
func NewStream(pair domain.Pair, logger *slog.Logger) *Stream {
	return &Stream{
		streamURL: defaultStreamURL,
		pair:      pair,
		events:    make(chan domain.BookEvent, 64),
		logger:    logger.With(slog.String("component", "bittrex_stream")),
	}
}

// SetStreamURL overrides the stream endpoint, for tests.
func (s *Stream) SetStreamURL(u string) { s.streamURL = u }

// Events returns the channel book events are delivered on. It is closed when
// Run returns.
func (s *Stream) Events() <-chan domain.BookEvent { return s.events }

// Run maintains the connection until ctx is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.events)

	delay := streamReconnectDelay
	for {
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > streamMaxReconnectWait {
			delay = streamMaxReconnectWait
		}
	}
}

func (s *Stream) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: streamHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.streamURL, nil)
	if err != nil {
		return fmt.Errorf("bittrex: connect: %w", err)
	}
	defer conn.Close()

	sub := map[string]any{
		"M": "SubscribeToExchangeDeltas",
		"A": []string{MarketName(s.pair)},
	}
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("bittrex: subscribe: %w", err)
	}
	s.sawSnapshot = false

	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("bittrex: read: %w", err)
		}
		for _, ev := range s.parse(raw) {
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// parse extracts book events addressed to this stream's market. Messages for
// other markets and unrelated methods are dropped.
func (s *Stream) parse(raw []byte) []domain.BookEvent {
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Debug("dropping unparseable message", slog.String("error", err.Error()))
		return nil
	}
	if msg.M != "updateExchangeState" {
		return nil
	}

	market := MarketName(s.pair)
	var out []domain.BookEvent
	for _, state := range msg.A {
		if state.MarketName != market {
			s.logger.Debug("dropping update for unsubscribed market",
				slog.String("market", state.MarketName))
			continue
		}
		ev := domain.BookEvent{
			Venue:    VenueName,
			Pair:     s.pair,
			Bids:     convertLevels(state.Buys),
			Asks:     convertLevels(state.Sells),
			Received: time.Now(),
		}
		if !s.sawSnapshot {
			ev.Snapshot = true
			s.sawSnapshot = true
		}
		out = append(out, ev)
	}
	return out
}

// convertLevels maps stream levels onto deltas, updates first, removals
// last.
func convertLevels(levels []streamLevel) []domain.PriceLevel {
	var updates, removals []domain.PriceLevel
	for _, lv := range levels {
		if lv.Type == levelRemove || lv.Quantity.IsZero() {
			removals = append(removals, domain.PriceLevel{Price: lv.Rate, Size: decimal.Zero})
			continue
		}
		updates = append(updates, domain.PriceLevel{Price: lv.Rate, Size: lv.Quantity})
	}
	return append(updates, removals...)
}
