package market

import (
	"math"
	"testing"
)

const hourMs = int64(60 * 60 * 1000)

// TestCandleHelpers tests the basic candle predicates
func TestCandleHelpers(t *testing.T) {
	bull := Candle{Open: 100, High: 105, Low: 99, Close: 104}
	bear := Candle{Open: 104, High: 105, Low: 99, Close: 100}
	flat := Candle{Open: 100, High: 105, Low: 99, Close: 100}

	if !bull.IsBullish() || bull.IsBearish() {
		t.Error("Green candle should be bullish only")
	}
	if !bear.IsBearish() || bear.IsBullish() {
		t.Error("Red candle should be bearish only")
	}
	if flat.IsBullish() || flat.IsBearish() {
		t.Error("Flat candle should be neither bullish nor bearish")
	}

	if bull.Range() != 6 {
		t.Errorf("Range = %v, want 6", bull.Range())
	}
	if bull.Body() != 4 || bear.Body() != 4 {
		t.Error("Body should be the absolute open-close distance")
	}

	if !bull.Brackets(99) || !bull.Brackets(105) || !bull.Brackets(102) {
		t.Error("Brackets should include the boundaries")
	}
	if bull.Brackets(98.9) || bull.Brackets(105.1) {
		t.Error("Brackets should exclude prices outside the range")
	}
}

// TestGroupByDay tests calendar-day grouping with preserved order
func TestGroupByDay(t *testing.T) {
	day1 := int64(1704067200000) // 2024-01-01 00:00 UTC
	day2 := day1 + 24*hourMs

	candles := []Candle{
		{OpenTime: day1},
		{OpenTime: day1 + hourMs},
		{OpenTime: day2},
	}

	order, days := GroupByDay(candles)
	if len(order) != 2 {
		t.Fatalf("Expected 2 days, got %d", len(order))
	}
	if order[0] != "2024-01-01" || order[1] != "2024-01-02" {
		t.Errorf("Day order wrong: %v", order)
	}
	if len(days["2024-01-01"]) != 2 || len(days["2024-01-02"]) != 1 {
		t.Error("Candles assigned to wrong days")
	}
}

// TestResample tests epoch-aligned bucket aggregation
func TestResample(t *testing.T) {
	minuteMs := int64(60 * 1000)
	base := int64(1704067200000) // aligned to a 15m boundary

	var candles []Candle
	for i := 0; i < 20; i++ {
		candles = append(candles, Candle{
			OpenTime: base + int64(i)*5*minuteMs,
			Open:     100 + float64(i),
			High:     101 + float64(i),
			Low:      99 + float64(i),
			Close:    100.5 + float64(i),
			Volume:   1,
		})
	}

	out := Resample(candles, 15)
	// 20 five-minute bars cover 100 minutes: 6 full buckets plus a partial.
	if len(out) != 7 {
		t.Fatalf("Expected 7 buckets, got %d", len(out))
	}

	first := out[0]
	if first.OpenTime != base {
		t.Errorf("First bucket open time = %d, want %d", first.OpenTime, base)
	}
	if first.Open != 100 {
		t.Errorf("Bucket should take the first member's open, got %v", first.Open)
	}
	if first.Close != 102.5 {
		t.Errorf("Bucket should take the last member's close, got %v", first.Close)
	}
	if first.High != 103 || first.Low != 99 {
		t.Errorf("Bucket extremes wrong: high=%v low=%v", first.High, first.Low)
	}
	if first.Volume != 3 {
		t.Errorf("Bucket volume should sum members, got %v", first.Volume)
	}

	if Resample(nil, 15) != nil {
		t.Error("Empty input should yield nil")
	}
	if Resample(candles, 0) != nil {
		t.Error("Non-positive interval should yield nil")
	}
}

// TestSessionFor tests the session table lookup and the fallback classifier
func TestSessionFor(t *testing.T) {
	zones := DefaultSessions()

	cases := []struct {
		hour    int
		session string
		kill    bool
	}{
		{0, SessionAsia, false},
		{3, SessionAsia, false},
		{7, SessionAsia, false}, // Asia listed first wins the overlap
		{8, SessionLondon, true},
		{11, SessionLondon, false},
		{12, SessionLondon, false},
		{16, SessionNewYork, false},
		{14, SessionLondon, false},
		{20, SessionNewYork, false},
		{22, SessionOffHours, false},
	}
	for _, c := range cases {
		session, kill := SessionFor(zones, c.hour)
		if session != c.session || kill != c.kill {
			t.Errorf("SessionFor(%d) = (%s, %v), want (%s, %v)", c.hour, session, kill, c.session, c.kill)
		}
	}

	// Empty table falls back to the coarse classifier.
	if s, _ := SessionFor(nil, 3); s != SessionAsia {
		t.Errorf("Fallback for hour 3 = %s, want Asia", s)
	}
	if s, _ := SessionFor(nil, 9); s != SessionLondon {
		t.Errorf("Fallback for hour 9 = %s, want London", s)
	}
	if s, _ := SessionFor(nil, 15); s != SessionNewYork {
		t.Errorf("Fallback for hour 15 = %s, want NewYork", s)
	}
	if s, _ := SessionFor(nil, 23); s != SessionOffHours {
		t.Errorf("Fallback for hour 23 = %s, want OffHours", s)
	}
}

// TestHourInWindowMidnightWrap tests windows spanning midnight
func TestHourInWindowMidnightWrap(t *testing.T) {
	zones := []SessionZone{{Label: "Overnight", StartHour: 22, EndHour: 2, KillStartHour: -1, KillEndHour: -1}}

	if s, _ := SessionFor(zones, 23); s != "Overnight" {
		t.Error("Hour 23 should fall inside a 22-2 window")
	}
	if s, _ := SessionFor(zones, 1); s != "Overnight" {
		t.Error("Hour 1 should fall inside a 22-2 window")
	}
	if s, _ := SessionFor(zones, 12); s == "Overnight" {
		t.Error("Hour 12 should fall outside a 22-2 window")
	}
}

// TestCalculateSMA tests the simple moving average
func TestCalculateSMA(t *testing.T) {
	candles := []Candle{{Close: 1}, {Close: 2}, {Close: 3}, {Close: 4}}

	if sma := CalculateSMA(candles, 2); sma != 3.5 {
		t.Errorf("SMA(2) = %v, want 3.5", sma)
	}
	if sma := CalculateSMA(candles, 4); sma != 2.5 {
		t.Errorf("SMA(4) = %v, want 2.5", sma)
	}
	if CalculateSMA(candles, 5) != 0 {
		t.Error("SMA with insufficient data should be 0")
	}
	if CalculateSMA(candles, 0) != 0 {
		t.Error("SMA with period 0 should be 0")
	}
}

// TestCalculateATR tests the average true range including the gap case
func TestCalculateATR(t *testing.T) {
	candles := []Candle{
		{High: 102, Low: 98, Close: 100},
		{High: 103, Low: 99, Close: 101},
		{High: 104, Low: 100, Close: 102},
	}

	// TRs over the last 2 bars are both 4 (no gaps).
	if atr := CalculateATR(candles, 2); atr != 4 {
		t.Errorf("ATR(2) = %v, want 4", atr)
	}
	if CalculateATR(candles, 3) != 0 {
		t.Error("ATR needs period+1 candles, should return 0")
	}

	// A gap up makes the true range reach back to the prior close.
	gapped := []Candle{
		{High: 102, Low: 98, Close: 100},
		{High: 110, Low: 108, Close: 109},
	}
	if atr := CalculateATR(gapped, 1); atr != 10 {
		t.Errorf("ATR with gap = %v, want 10 (high minus prior close)", atr)
	}
}

// TestCalculateEMA tests the SMA-seeded exponential average
func TestCalculateEMA(t *testing.T) {
	var candles []Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, Candle{Close: 100})
	}
	if ema := CalculateEMA(candles, 5); math.Abs(ema-100) > 1e-9 {
		t.Errorf("EMA over constant closes = %v, want 100", ema)
	}

	rising := []Candle{{Close: 1}, {Close: 2}, {Close: 3}, {Close: 4}, {Close: 5}, {Close: 6}}
	ema := CalculateEMA(rising, 3)
	sma := CalculateSMA(rising, 3)
	if ema <= 0 || ema >= 6 {
		t.Errorf("EMA out of range: %v", ema)
	}
	// EMA weights recent closes; on a rising series it should trail the
	// trailing SMA only slightly.
	if math.Abs(ema-sma) > 2 {
		t.Errorf("EMA %v too far from SMA %v", ema, sma)
	}
}

// TestHighestLowest tests slice extremes
func TestHighestLowest(t *testing.T) {
	candles := []Candle{
		{High: 10, Low: 5},
		{High: 12, Low: 4},
		{High: 11, Low: 6},
	}
	if HighestHigh(candles) != 12 {
		t.Error("HighestHigh should be 12")
	}
	if LowestLow(candles) != 4 {
		t.Error("LowestLow should be 4")
	}
	if HighestHigh(nil) != 0 || LowestLow(nil) != 0 {
		t.Error("Empty slices should yield 0")
	}
}
