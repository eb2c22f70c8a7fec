package market

import "time"

// Candle represents a single OHLCV bar. Times are epoch milliseconds UTC.
type Candle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Time returns the candle open time as a UTC time.Time.
func (c Candle) Time() time.Time {
	return time.Unix(0, c.OpenTime*int64(time.Millisecond)).UTC()
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Range returns the full high-low extent of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open-close distance.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Brackets reports whether price falls inside the candle's low-high range.
func (c Candle) Brackets(price float64) bool {
	return c.Low <= price && price <= c.High
}

// DayKey returns a yyyy-mm-dd key for calendar-day grouping in UTC.
func (c Candle) DayKey() string {
	return c.Time().Format("2006-01-02")
}

// GroupByDay splits candles into per-calendar-day slices, preserving order.
// Keys are returned in first-seen order so callers can walk days sequentially.
func GroupByDay(candles []Candle) ([]string, map[string][]Candle) {
	days := make(map[string][]Candle)
	var order []string
	for _, c := range candles {
		key := c.DayKey()
		if _, ok := days[key]; !ok {
			order = append(order, key)
		}
		days[key] = append(days[key], c)
	}
	return order, days
}

// HighestHigh returns the maximum high over the slice, or 0 for an empty slice.
func HighestHigh(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	max := candles[0].High
	for _, c := range candles[1:] {
		if c.High > max {
			max = c.High
		}
	}
	return max
}

// LowestLow returns the minimum low over the slice, or 0 for an empty slice.
func LowestLow(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	min := candles[0].Low
	for _, c := range candles[1:] {
		if c.Low < min {
			min = c.Low
		}
	}
	return min
}
