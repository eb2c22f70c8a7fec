// Package feed streams candles from an exchange websocket into the engine's
// candle model. The core never blocks on it; the API layer drains the
// channel and maintains the live history.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"smc-engine/internal/market"
)

// Source delivers closed candles for one symbol/interval pair.
type Source interface {
	Candles() <-chan market.Candle
	Run(ctx context.Context) error
}

// Stream is a gorilla/websocket kline subscriber with reconnect.
type Stream struct {
	baseURL  string
	symbol   string
	interval string
	out      chan market.Candle
	logger   zerolog.Logger
}

// NewStream creates a stream for one symbol and interval. baseURL is the
// exchange websocket endpoint, e.g. wss://stream.binance.com:9443/ws.
func NewStream(baseURL, symbol, interval string, logger zerolog.Logger) *Stream {
	return &Stream{
		baseURL:  baseURL,
		symbol:   symbol,
		interval: interval,
		out:      make(chan market.Candle, 64),
		logger: logger.With().
			Str("component", "feed").
			Str("symbol", symbol).
			Str("interval", interval).
			Logger(),
	}
}

// Candles implements Source.
func (s *Stream) Candles() <-chan market.Candle {
	return s.out
}

// klineEvent is the exchange kline payload shape.
type klineEvent struct {
	Kline struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

// Run connects and pumps closed candles until the context is canceled,
// reconnecting with a fixed backoff on any read failure.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.out)

	url := fmt.Sprintf("%s/%s@kline_%s", s.baseURL, strings.ToLower(s.symbol), s.interval)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.pump(ctx, url); err != nil {
			s.logger.Warn().Err(err).Msg("Stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *Stream) pump(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}
	defer conn.Close()

	s.logger.Info().Msg("Stream connected")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		var ev klineEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Debug().Err(err).Msg("Skipping unparsable message")
			continue
		}
		if !ev.Kline.Closed {
			continue
		}

		candle, err := ev.toCandle()
		if err != nil {
			s.logger.Debug().Err(err).Msg("Skipping malformed kline")
			continue
		}

		select {
		case s.out <- candle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (ev klineEvent) toCandle() (market.Candle, error) {
	parse := func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

	o, err := parse(ev.Kline.Open)
	if err != nil {
		return market.Candle{}, fmt.Errorf("bad open: %w", err)
	}
	h, err := parse(ev.Kline.High)
	if err != nil {
		return market.Candle{}, fmt.Errorf("bad high: %w", err)
	}
	l, err := parse(ev.Kline.Low)
	if err != nil {
		return market.Candle{}, fmt.Errorf("bad low: %w", err)
	}
	c, err := parse(ev.Kline.Close)
	if err != nil {
		return market.Candle{}, fmt.Errorf("bad close: %w", err)
	}
	v, err := parse(ev.Kline.Volume)
	if err != nil {
		return market.Candle{}, fmt.Errorf("bad volume: %w", err)
	}

	return market.Candle{
		OpenTime: ev.Kline.OpenTime,
		Open:     o,
		High:     h,
		Low:      l,
		Close:    c,
		Volume:   v,
	}, nil
}
