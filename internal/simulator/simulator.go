package simulator

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"smc-engine/internal/market"
	"smc-engine/internal/weights"
)

// Breakeven fires at 1.5R favorable excursion; the trail follows the close
// at half an ATR(14).
const (
	breakevenRMultiple = 1.5
	trailATRFraction   = 0.5
	atrPeriod          = 14
)

// Sink receives closed-trade outcomes. Implementations live outside the
// core (persistence, webhooks).
type Sink interface {
	RecordOutcome(ctx context.Context, o weights.Outcome) error
}

// Simulator owns the trade collection and advances it bar by bar. Trades
// are mutated atomically per bar; no two bars are processed concurrently
// for the same trade.
type Simulator struct {
	mu     sync.Mutex
	trades []Trade
	sink   Sink
	logger zerolog.Logger
}

// New creates a simulator. The sink may be nil.
func New(sink Sink, logger zerolog.Logger) *Simulator {
	return &Simulator{
		sink:   sink,
		logger: logger.With().Str("component", "simulator").Logger(),
	}
}

// Add registers a trade with the simulator.
func (s *Simulator) Add(t Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
}

// Trades returns a snapshot of the trade collection.
func (s *Simulator) Trades() []Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

// CancelTrade cancels a planned trade by ID. Returns false when the trade is
// missing or not cancelable.
func (s *Simulator) CancelTrade(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.trades {
		if t.ID == id && t.Status == StatusPlanned {
			s.trades[i] = Cancel(t)
			return true
		}
	}
	return false
}

// Clear drops all trades. The only way a trade record is destroyed.
func (s *Simulator) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = nil
}

// OnBar advances every trade against the latest candle. ATR(14) comes from
// the supplied history.
func (s *Simulator) OnBar(ctx context.Context, candles []market.Candle) {
	if len(candles) == 0 {
		return
	}
	bar := candles[len(candles)-1]
	atr := market.CalculateATR(candles, atrPeriod)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.trades {
		next := AdvanceTrade(t, bar, atr)
		if next.Status == StatusClosed && t.Status != StatusClosed {
			s.logger.Info().
				Str("trade_id", next.ID).
				Str("setup", next.Setup).
				Str("result", string(next.Result)).
				Float64("pnl", next.PnL).
				Msg("Trade closed")
			if s.sink != nil {
				if err := s.sink.RecordOutcome(ctx, weights.Outcome{
					Setup:     next.Setup,
					Session:   next.Session,
					Bias:      next.Bias,
					Result:    string(next.Result),
					RMultiple: next.RMultiple(),
				}); err != nil {
					s.logger.Warn().Err(err).Str("trade_id", next.ID).Msg("Failed to record trade outcome")
				}
			}
		}
		s.trades[i] = next
	}
}

// AdvanceTrade applies one bar to one trade and returns the successor value.
// Pure: no shared state, safe to test in isolation.
func AdvanceTrade(t Trade, bar market.Candle, atr float64) Trade {
	switch t.Status {
	case StatusPlanned:
		if bar.Brackets(t.Entry) {
			return Fill(t, bar)
		}
		return t
	case StatusActive:
		// Resolution happens on bars after the entry bar.
		if bar.OpenTime <= t.EntryBar {
			return t
		}
		if t.Manual && t.PartialFraction <= 0 {
			return resolveSimple(t, bar)
		}
		return resolve(t, bar, atr)
	default:
		// closed and canceled are terminal
		return t
	}
}

// resolve runs the full per-bar resolution: partial exit, breakeven trigger,
// trailing, then closure.
func resolve(t Trade, bar market.Candle, atr float64) Trade {
	if t.PartialFraction > 0 && !t.PartialHit && touches(t.Direction, bar, t.PartialTarget) {
		t = TakePartial(t)
	}

	if !t.BreakevenTriggered && t.PartialFraction <= 0 && t.Risk > 0 {
		excursion := bar.High - t.Entry
		if t.Direction == DirectionSell {
			excursion = t.Entry - bar.Low
		}
		if excursion >= breakevenRMultiple*t.Risk {
			t = TriggerBreakeven(t)
		}
	}

	t = resolveSimple(t, bar)

	// Trail from this bar's close; the tightened stop applies from the
	// next bar.
	if t.Status == StatusActive && t.BreakevenTriggered && atr > 0 {
		t = Trail(t, bar.Close, trailATRFraction*atr)
	}

	return t
}

// resolveSimple is the two-outcome close test against stop and target, with
// the same-bar tie broken by the bar open's distance to each boundary.
func resolveSimple(t Trade, bar market.Candle) Trade {
	stopHit := t.Stop > 0 && crosses(t.Direction, bar, t.Stop, true)
	targetHit := t.Target > 0 && crosses(t.Direction, bar, t.Target, false)

	switch {
	case stopHit && targetHit:
		if math.Abs(bar.Open-t.Stop) <= math.Abs(bar.Open-t.Target) {
			return Close(t, t.Stop, ResultLoss, bar.OpenTime)
		}
		return Close(t, t.Target, ResultWin, bar.OpenTime)
	case stopHit:
		return Close(t, t.Stop, ResultLoss, bar.OpenTime)
	case targetHit:
		return Close(t, t.Target, ResultWin, bar.OpenTime)
	default:
		return t
	}
}

// touches reports whether the bar reached a favorable level for the
// direction.
func touches(dir TradeDirection, bar market.Candle, level float64) bool {
	if level <= 0 {
		return false
	}
	if dir == DirectionBuy {
		return bar.High >= level
	}
	return bar.Low <= level
}

// crosses reports whether the bar range crossed a boundary. Adverse
// boundaries (stops) sit on the losing side of the direction.
func crosses(dir TradeDirection, bar market.Candle, level float64, adverse bool) bool {
	if dir == DirectionBuy {
		if adverse {
			return bar.Low <= level
		}
		return bar.High >= level
	}
	if adverse {
		return bar.High >= level
	}
	return bar.Low <= level
}
