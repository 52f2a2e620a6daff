package bitfinex

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
	defaultWSURL = "wss://api-pub.bitfinex.com/ws/2"

	wsWriteWait        = 10 * time.Second
	wsPongWait         = 60 * time.Second
	wsPingPeriod       = (wsPongWait * 9) / 10
	wsReconnectDelay   = 2 * time.Second
	wsMaxReconnectWait = 60 * time.Second
	wsHandshakeTimeout = 15 * time.Second
)

// Feed streams the public book channel for one pair and emits decomposed
// level deltas. It reconnects with exponential backoff; after each reconnect
// the venue replays a full snapshot, which is surfaced as a Snapshot event so
// the consumer can reset its book.
type Feed struct {
	wsURL  string
	pair   domain.Pair
	events chan domain.BookEvent
	logger *slog.Logger
}

// NewFeed creates a Feed for the given pair.
func NewFeed(pair domain.Pair, logger *slog.Logger) *Feed {
	return &Feed{
		wsURL:  defaultWSURL,
		pair:   pair,
		events: make(chan domain.BookEvent, 64),
		logger: logger.With(slog.String("component", "bitfinex_feed")),
	}
}

// SetWSURL overrides the stream endpoint, for tests.
func (f *Feed) SetWSURL(u string) { f.wsURL = u }

// Events returns the channel book events are delivered on. It is closed when
// Run returns.
func (f *Feed) Events() <-chan domain.BookEvent { return f.events }

// Run maintains the connection until ctx is cancelled, reconnecting with
// exponential backoff on any stream error.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.events)

	delay := wsReconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > wsMaxReconnectWait {
			delay = wsMaxReconnectWait
		}
	}
}

func (f *Feed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bitfinex: connect: %w", err)
	}
	defer conn.Close()

	symbol, ok := pairSymbols[f.pair]
	if !ok {
		return fmt.Errorf("bitfinex: unknown pair %s", f.pair)
	}
	sub := map[string]any{
		"event":   "subscribe",
		"channel": "book",
		"symbol":  "t" + symbol,
		"prec":    "P0",
		"freq":    "F0",
		"len":     "25",
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("bitfinex: subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	// Close the connection when ctx ends so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("bitfinex: read: %w", err)
		}
		ev, ok, err := f.parse(raw)
		if err != nil {
			f.logger.Debug("dropping unparseable message", slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		select {
		case f.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parse turns one raw frame into a book event. The second return is false
// for non-data frames (subscription acks, info events, heartbeats).
func (f *Feed) parse(raw []byte) (domain.BookEvent, bool, error) {
	if len(raw) == 0 || raw[0] != '[' {
		// Event object: subscribed ack, info, error. Only errors matter.
		var env struct {
			Event string `json:"event"`
			Msg   string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return domain.BookEvent{}, false, err
		}
		if env.Event == "error" {
			return domain.BookEvent{}, false, fmt.Errorf("stream error: %s", env.Msg)
		}
		return domain.BookEvent{}, false, nil
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return domain.BookEvent{}, false, err
	}
	if len(frame) < 2 {
		return domain.BookEvent{}, false, nil
	}

	payload := frame[1]
	if len(payload) > 0 && payload[0] == '"' {
		// Heartbeat.
		return domain.BookEvent{}, false, nil
	}

	var levels [][3]json.Number
	snapshot := false
	var single [3]json.Number
	if err := json.Unmarshal(payload, &single); err == nil {
		levels = [][3]json.Number{single}
	} else if err := json.Unmarshal(payload, &levels); err == nil {
		snapshot = true
	} else {
		return domain.BookEvent{}, false, err
	}

	ev := domain.BookEvent{
		Venue:    VenueName,
		Pair:     f.pair,
		Snapshot: snapshot,
		Received: time.Now(),
	}
	var bidRemovals, askRemovals []domain.PriceLevel
	for _, lv := range levels {
		price, err := decimal.NewFromString(lv[0].String())
		if err != nil {
			return domain.BookEvent{}, false, err
		}
		count, err := lv[1].Int64()
		if err != nil {
			return domain.BookEvent{}, false, err
		}
		amount, err := decimal.NewFromString(lv[2].String())
		if err != nil {
			return domain.BookEvent{}, false, err
		}

		// Amount sign selects the side; a zero count removes the level.
		isBid := amount.IsPositive()
		level := domain.PriceLevel{Price: price, Size: amount.Abs()}
		if count == 0 {
			level.Size = decimal.Zero
			if isBid {
				bidRemovals = append(bidRemovals, level)
			} else {
				askRemovals = append(askRemovals, level)
			}
			continue
		}
		if isBid {
			ev.Bids = append(ev.Bids, level)
		} else {
			ev.Asks = append(ev.Asks, level)
		}
	}
	// Removals go after updates from the same frame.
	ev.Bids = append(ev.Bids, bidRemovals...)
	ev.Asks = append(ev.Asks, askRemovals...)

	return ev, true, nil
}
