package structure

import (
	"testing"

	"smc-engine/internal/market"
)

const hourMs = int64(60 * 60 * 1000)

var day1 = int64(1704067200000) // 2024-01-01 00:00 UTC

func hourCandle(day int64, hour int, o, h, l, c float64) market.Candle {
	return market.Candle{
		OpenTime: day + int64(hour)*hourMs,
		Open:     o,
		High:     h,
		Low:      l,
		Close:    c,
	}
}

// TestComputeBiasShortInput tests the short-input guard
func TestComputeBiasShortInput(t *testing.T) {
	var candles []market.Candle
	for i := 0; i < 4; i++ {
		candles = append(candles, hourCandle(day1, i, 100, 101, 99, 100))
		bias := ComputeBias(candles)
		if bias.Label != BiasNeutral {
			t.Errorf("Bias with %d candles = %s, want Neutral", len(candles), bias.Label)
		}
		if bias.Reason != "Not enough data to compute bias" {
			t.Errorf("Reason = %q", bias.Reason)
		}
	}
}

// TestComputeBiasDailyRule tests the day-over-day comparison
func TestComputeBiasDailyRule(t *testing.T) {
	day2 := day1 + 24*hourMs

	// Prior day: flat around 100, high 102, low 98, close 100.
	prior := []market.Candle{
		hourCandle(day1, 0, 100, 101, 99, 100),
		hourCandle(day1, 1, 100, 102, 99, 101),
		hourCandle(day1, 2, 101, 102, 98, 100),
	}

	// Bullish: green day closing above prior close with prior high swept.
	bullDay := append(append([]market.Candle{}, prior...),
		hourCandle(day2, 0, 100, 101, 99, 101),
		hourCandle(day2, 1, 101, 103, 100, 102.5),
	)
	if bias := ComputeBias(bullDay); bias.Label != BiasBullish {
		t.Errorf("Bias = %s (%s), want Bullish", bias.Label, bias.Reason)
	}

	// Bearish: red day closing below prior close with prior low swept.
	bearDay := append(append([]market.Candle{}, prior...),
		hourCandle(day2, 0, 100, 101, 99, 99.5),
		hourCandle(day2, 1, 99.5, 100, 97, 97.5),
	)
	if bias := ComputeBias(bearDay); bias.Label != BiasBearish {
		t.Errorf("Bias = %s (%s), want Bearish", bias.Label, bias.Reason)
	}

	// Green day that never swept the prior high stays off the daily rule
	// and, lacking 40 bars, resolves neutral.
	noSweep := append(append([]market.Candle{}, prior...),
		hourCandle(day2, 0, 100, 101, 99, 101),
		hourCandle(day2, 1, 101, 101.5, 100, 101.2),
	)
	if bias := ComputeBias(noSweep); bias.Label != BiasNeutral {
		t.Errorf("Bias = %s (%s), want Neutral without a prior-high sweep", bias.Label, bias.Reason)
	}
}

// TestComputeBiasSMAFallback tests the crossover fallback on a single day
func TestComputeBiasSMAFallback(t *testing.T) {
	// 60 bars within one calendar day is impossible with hour candles, so
	// use minute spacing to keep everything in a single day grouping.
	minuteMs := int64(60 * 1000)

	var rising []market.Candle
	for i := 0; i < 60; i++ {
		p := 100 + float64(i)*0.5
		rising = append(rising, market.Candle{
			OpenTime: day1 + int64(i)*minuteMs,
			Open:     p, High: p + 0.2, Low: p - 0.2, Close: p,
		})
	}
	if bias := ComputeBias(rising); bias.Label != BiasBullish {
		t.Errorf("Rising series bias = %s (%s), want Bullish", bias.Label, bias.Reason)
	}

	var falling []market.Candle
	for i := 0; i < 60; i++ {
		p := 200 - float64(i)*0.5
		falling = append(falling, market.Candle{
			OpenTime: day1 + int64(i)*minuteMs,
			Open:     p, High: p + 0.2, Low: p - 0.2, Close: p,
		})
	}
	if bias := ComputeBias(falling); bias.Label != BiasBearish {
		t.Errorf("Falling series bias = %s (%s), want Bearish", bias.Label, bias.Reason)
	}
}

// TestDetectSwings tests pivot detection over the full window
func TestDetectSwings(t *testing.T) {
	flat := func(i int) market.Candle { return hourCandle(day1, i, 100, 101, 99, 100) }

	candles := []market.Candle{
		flat(0), flat(1),
		hourCandle(day1, 2, 100, 105, 98.5, 101), // swing high and swing low
		flat(3), flat(4),
	}

	swings := DetectSwings(candles, 2)
	if len(swings) != 2 {
		t.Fatalf("Expected 2 swings, got %d", len(swings))
	}
	if swings[0].Type != SwingHigh || swings[0].Index != 2 || swings[0].Price != 105 {
		t.Errorf("Swing high wrong: %+v", swings[0])
	}
	if swings[1].Type != SwingLow || swings[1].Index != 2 || swings[1].Price != 98.5 {
		t.Errorf("Swing low wrong: %+v", swings[1])
	}

	// Bars without a full window on both sides never qualify.
	edge := []market.Candle{
		hourCandle(day1, 0, 100, 110, 90, 100),
		flat(1), flat(2), flat(3), flat(4),
	}
	for _, s := range DetectSwings(edge, 2) {
		if s.Index < 2 || s.Index > 2 {
			t.Errorf("Swing outside complete-window region: %+v", s)
		}
	}

	if DetectSwings(candles, 0) != nil {
		t.Error("Non-positive lookback should yield nil")
	}
	if DetectSwings(candles[:3], 2) != nil {
		t.Error("Too-short input should yield nil")
	}
}

// TestDetectStructureShifts tests BOS-first labeling and the CHoCH flip
func TestDetectStructureShifts(t *testing.T) {
	inside := func(i int) market.Candle { return hourCandle(day1, i, 95, 96, 94, 95) }

	candles := make([]market.Candle, 12)
	for i := range candles {
		candles[i] = inside(i)
	}
	// Bar 6 breaks above the swing high at 100; bar 10 breaks below the
	// swing low at 90. ATR hint 1 puts the wick buffer at 0.25.
	candles[6] = hourCandle(day1, 6, 95, 101, 95, 100.6)
	candles[10] = hourCandle(day1, 10, 95, 95, 89, 89.2)

	swings := []Swing{
		{Index: 2, Time: candles[2].OpenTime, Price: 100, Type: SwingHigh},
		{Index: 3, Time: candles[3].OpenTime, Price: 90, Type: SwingLow},
	}

	shifts := DetectStructureShifts(candles, swings, 1, DefaultShiftOptions())
	if len(shifts) != 2 {
		t.Fatalf("Expected 2 shifts, got %d: %+v", len(shifts), shifts)
	}

	if shifts[0].Label != ShiftBOS || shifts[0].Direction != ShiftBullish {
		t.Errorf("First shift should be bullish BOS, got %+v", shifts[0])
	}
	if shifts[1].Label != ShiftCHoCH || shifts[1].Direction != ShiftBearish {
		t.Errorf("Opposing break should be CHoCH, got %+v", shifts[1])
	}
}

// TestDetectStructureShiftsContinuationSwallowed tests that a same-direction
// break after the state is set does not fire again
func TestDetectStructureShiftsContinuationSwallowed(t *testing.T) {
	inside := func(i int) market.Candle { return hourCandle(day1, i, 95, 96, 94, 95) }

	candles := make([]market.Candle, 14)
	for i := range candles {
		candles[i] = inside(i)
	}
	// Bar 6 breaks the swing high at 100, bar 12 the later high at 104.
	candles[6] = hourCandle(day1, 6, 95, 101, 95, 100.6)
	candles[12] = hourCandle(day1, 12, 101, 106, 101, 105.6)

	swings := []Swing{
		{Index: 2, Time: candles[2].OpenTime, Price: 100, Type: SwingHigh},
		{Index: 8, Time: candles[8].OpenTime, Price: 104, Type: SwingHigh},
	}

	shifts := DetectStructureShifts(candles, swings, 1, DefaultShiftOptions())
	if len(shifts) != 1 {
		t.Fatalf("Continuation break should be swallowed, got %d shifts", len(shifts))
	}
	if shifts[0].Label != ShiftBOS {
		t.Errorf("Only shift should be the initial BOS, got %+v", shifts[0])
	}
}

// TestDetectStructureShiftsWickOnly tests that a wick without close
// displacement does not break the level
func TestDetectStructureShiftsWickOnly(t *testing.T) {
	inside := func(i int) market.Candle { return hourCandle(day1, i, 95, 96, 94, 95) }

	candles := make([]market.Candle, 10)
	for i := range candles {
		candles[i] = inside(i)
	}
	// Wick clears the buffer but the close does not.
	candles[6] = hourCandle(day1, 6, 95, 101, 95, 99.5)

	swings := []Swing{{Index: 2, Time: candles[2].OpenTime, Price: 100, Type: SwingHigh}}

	if shifts := DetectStructureShifts(candles, swings, 1, DefaultShiftOptions()); len(shifts) != 0 {
		t.Errorf("Wick-only penetration should not shift structure, got %+v", shifts)
	}
}
