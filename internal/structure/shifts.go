package structure

import (
	"math"

	"smc-engine/internal/market"
)

// ShiftLabel marks a structure break as continuation or reversal.
type ShiftLabel string

const (
	ShiftBOS   ShiftLabel = "BOS"
	ShiftCHoCH ShiftLabel = "CHoCH"
)

// ShiftDirection is the direction of the break itself.
type ShiftDirection string

const (
	ShiftBullish ShiftDirection = "bullish"
	ShiftBearish ShiftDirection = "bearish"
)

// StructureShift records a confirmed break of a tracked swing level.
type StructureShift struct {
	Time      int64          `json:"time"`
	Price     float64        `json:"price"`
	Direction ShiftDirection `json:"direction"`
	Label     ShiftLabel     `json:"label"`
}

// ShiftOptions tunes structure-shift detection.
type ShiftOptions struct {
	// MinSwingDistance is the minimum fractional distance between a candidate
	// swing level and the last broken level of the same side.
	MinSwingDistance float64
	// MinSpacingBars is the minimum number of bars between accepted shifts.
	MinSpacingBars int
	// MinBreakPct is the percentage-of-level floor for the wick buffer.
	MinBreakPct float64
}

// DefaultShiftOptions returns the tuning used by the engine.
func DefaultShiftOptions() ShiftOptions {
	return ShiftOptions{
		MinSwingDistance: 0.0008,
		MinSpacingBars:   3,
		MinBreakPct:      0.0003,
	}
}

const maxShifts = 30

// DetectStructureShifts walks candles left to right against time-sorted swing
// lists, tracking the most recent unbroken swing high and low. A bar breaks a
// level when its wick clears the level by a buffer (the larger of a
// percentage-of-level floor and an ATR displacement floor) and its close also
// clears a smaller displacement threshold. The first accepted break is always
// labeled BOS; a break flipping the running trend state is CHoCH; a break
// continuing the current state does not fire. Output keeps the most recent 30
// shifts.
func DetectStructureShifts(candles []market.Candle, swings []Swing, atrHint float64, opts ShiftOptions) []StructureShift {
	if len(candles) == 0 || len(swings) == 0 {
		return nil
	}

	var highs, lows []Swing
	for _, s := range swings {
		if s.Type == SwingHigh {
			highs = append(highs, s)
		} else {
			lows = append(lows, s)
		}
	}

	var shifts []StructureShift
	var state ShiftDirection // "" until the first accepted break
	lastShiftBar := -1 << 30
	lastBrokenHigh := math.NaN()
	lastBrokenLow := math.NaN()
	hi, lo := 0, 0

	closeBuffer := atrHint * 0.1

	for i := 0; i < len(candles); i++ {
		bar := candles[i]

		// Bullish break of the tracked swing high.
		for hi < len(highs) && highs[hi].Index < i {
			level := highs[hi].Price
			if !math.IsNaN(lastBrokenHigh) && math.Abs(level-lastBrokenHigh) < level*opts.MinSwingDistance {
				hi++
				continue
			}
			buffer := math.Max(level*opts.MinBreakPct, atrHint*0.25)
			if bar.High > level+buffer && bar.Close > level+closeBuffer {
				if i-lastShiftBar >= opts.MinSpacingBars {
					if shift, ok := acceptShift(&state, ShiftBullish, bar.OpenTime, level); ok {
						shifts = append(shifts, shift)
						lastShiftBar = i
					}
				}
				lastBrokenHigh = level
				hi++
				continue
			}
			break
		}

		// Bearish break of the tracked swing low.
		for lo < len(lows) && lows[lo].Index < i {
			level := lows[lo].Price
			if !math.IsNaN(lastBrokenLow) && math.Abs(level-lastBrokenLow) < level*opts.MinSwingDistance {
				lo++
				continue
			}
			buffer := math.Max(level*opts.MinBreakPct, atrHint*0.25)
			if bar.Low < level-buffer && bar.Close < level-closeBuffer {
				if i-lastShiftBar >= opts.MinSpacingBars {
					if shift, ok := acceptShift(&state, ShiftBearish, bar.OpenTime, level); ok {
						shifts = append(shifts, shift)
						lastShiftBar = i
					}
				}
				lastBrokenLow = level
				lo++
				continue
			}
			break
		}
	}

	if len(shifts) > maxShifts {
		shifts = shifts[len(shifts)-maxShifts:]
	}
	return shifts
}

// acceptShift applies the running-state labeling rule. A break continuing the
// current state is swallowed; the state must differ for a shift to fire.
func acceptShift(state *ShiftDirection, dir ShiftDirection, t int64, price float64) (StructureShift, bool) {
	if *state == "" {
		*state = dir
		return StructureShift{Time: t, Price: price, Direction: dir, Label: ShiftBOS}, true
	}
	if *state == dir {
		return StructureShift{}, false
	}
	*state = dir
	return StructureShift{Time: t, Price: price, Direction: dir, Label: ShiftCHoCH}, true
}
