package simulator

import (
	"time"

	"github.com/google/uuid"

	"smc-engine/internal/market"
)

// TradeStatus is the lifecycle state of a trade. Closed and canceled are
// terminal.
type TradeStatus string

const (
	StatusPlanned  TradeStatus = "planned"
	StatusActive   TradeStatus = "active"
	StatusClosed   TradeStatus = "closed"
	StatusCanceled TradeStatus = "canceled"
)

// TradeDirection is the side of a trade.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "buy"
	DirectionSell TradeDirection = "sell"
)

// TradeResult is the outcome of a closed trade.
type TradeResult string

const (
	ResultWin  TradeResult = "win"
	ResultLoss TradeResult = "loss"
)

// Trade is an immutable trade value. Transitions return new values; the
// simulator owns sequencing and never mutates a trade concurrently.
type Trade struct {
	ID        string         `json:"id"`
	Setup     string         `json:"setup,omitempty"`
	Session   string         `json:"session,omitempty"`
	Bias      string         `json:"bias,omitempty"`
	Manual    bool           `json:"manual"`
	Status    TradeStatus    `json:"status"`
	Direction TradeDirection `json:"direction"`

	Entry        float64 `json:"entry"`
	Stop         float64 `json:"stop"`
	Target       float64 `json:"target"`
	Risk         float64 `json:"risk"`
	PositionSize float64 `json:"position_size"`

	PartialTarget   float64 `json:"partial_target,omitempty"`
	PartialFraction float64 `json:"partial_fraction,omitempty"`
	PartialHit      bool    `json:"partial_hit"`
	PartialRealized float64 `json:"partial_realized"`

	BreakevenTriggered bool `json:"breakeven_triggered"`

	Result   TradeResult `json:"result,omitempty"`
	PnL      float64     `json:"pnl"`
	EntryBar int64       `json:"entry_bar,omitempty"`
	ExitTime int64       `json:"exit_time,omitempty"`
}

// NewTrade builds a planned trade. Risk is derived from entry and stop when
// a stop is supplied.
func NewTrade(direction TradeDirection, entry, stop, target, positionSize float64) Trade {
	t := Trade{
		ID:           uuid.NewString(),
		Status:       StatusPlanned,
		Direction:    direction,
		Entry:        entry,
		Stop:         stop,
		Target:       target,
		PositionSize: positionSize,
	}
	if stop > 0 {
		if direction == DirectionBuy {
			t.Risk = entry - stop
		} else {
			t.Risk = stop - entry
		}
	}
	return t
}

// Fill transitions a planned trade to active. Illegal from any other state.
func Fill(t Trade, bar market.Candle) Trade {
	if t.Status != StatusPlanned {
		return t
	}
	t.Status = StatusActive
	t.EntryBar = bar.OpenTime
	return t
}

// Cancel transitions a planned trade to canceled. Terminal.
func Cancel(t Trade) Trade {
	if t.Status != StatusPlanned {
		return t
	}
	t.Status = StatusCanceled
	return t
}

// TakePartial realizes the configured fraction at the partial level and
// moves the stop to breakeven. Does not close the trade.
func TakePartial(t Trade) Trade {
	if t.Status != StatusActive || t.PartialHit || t.PartialFraction <= 0 {
		return t
	}

	move := t.PartialTarget - t.Entry
	if t.Direction == DirectionSell {
		move = t.Entry - t.PartialTarget
	}
	t.PartialRealized = t.PartialFraction * move * t.PositionSize
	t.PartialHit = true
	t.Stop = t.Entry
	t.BreakevenTriggered = true
	return t
}

// TriggerBreakeven moves the stop to entry once favorable excursion has
// reached the threshold.
func TriggerBreakeven(t Trade) Trade {
	if t.Status != StatusActive || t.BreakevenTriggered {
		return t
	}
	t.Stop = t.Entry
	t.BreakevenTriggered = true
	return t
}

// Trail tightens the stop behind the close by the given distance. The stop
// only ever moves in the trade's favor.
func Trail(t Trade, close, distance float64) Trade {
	if t.Status != StatusActive || !t.BreakevenTriggered || distance <= 0 {
		return t
	}
	if t.Direction == DirectionBuy {
		if candidate := close - distance; candidate > t.Stop {
			t.Stop = candidate
		}
	} else {
		if candidate := close + distance; candidate < t.Stop {
			t.Stop = candidate
		}
	}
	return t
}

// Close settles an active trade at exitPrice. Final PnL is the realized
// partial plus the remaining fraction's move.
func Close(t Trade, exitPrice float64, result TradeResult, exitTime int64) Trade {
	if t.Status != StatusActive {
		return t
	}

	move := exitPrice - t.Entry
	if t.Direction == DirectionSell {
		move = t.Entry - exitPrice
	}

	remaining := 1.0
	if t.PartialHit {
		remaining = 1 - t.PartialFraction
	}

	t.Status = StatusClosed
	t.Result = result
	t.PnL = t.PartialRealized + move*remaining*t.PositionSize
	t.ExitTime = exitTime
	return t
}

// RMultiple expresses the closed PnL as a multiple of the initial risk.
func (t Trade) RMultiple() float64 {
	if t.Risk <= 0 || t.PositionSize <= 0 {
		return 0
	}
	return t.PnL / (t.Risk * t.PositionSize)
}

// Age is a convenience for display layers.
func (t Trade) Age(now time.Time) time.Duration {
	if t.EntryBar == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, t.EntryBar*int64(time.Millisecond)))
}
