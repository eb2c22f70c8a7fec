package zones

import "smc-engine/internal/market"

// PremiumDiscountRange is a dealing range with its midpoint equilibrium.
// Price above equilibrium is premium, below is discount.
type PremiumDiscountRange struct {
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Equilibrium float64 `json:"equilibrium"`
}

// InPremium reports whether price sits above equilibrium.
func (r PremiumDiscountRange) InPremium(price float64) bool {
	return r.High > r.Low && price > r.Equilibrium
}

// InDiscount reports whether price sits below equilibrium.
func (r PremiumDiscountRange) InDiscount(price float64) bool {
	return r.High > r.Low && price < r.Equilibrium
}

// ComputePremiumDiscountRange builds the dealing range over the supplied
// window. The caller controls the window: full history, or a trailing slice
// anchored to the latest swing pair.
func ComputePremiumDiscountRange(candles []market.Candle) PremiumDiscountRange {
	if len(candles) == 0 {
		return PremiumDiscountRange{}
	}
	high := market.HighestHigh(candles)
	low := market.LowestLow(candles)
	return PremiumDiscountRange{
		High:        high,
		Low:         low,
		Equilibrium: (high + low) / 2,
	}
}

// HTFLevels carries higher-timeframe reference levels: the prior completed
// calendar day's and ISO week's extremes plus the current week and month
// opening prices. A zero value means the level could not be derived from the
// supplied history.
type HTFLevels struct {
	PrevDayHigh  float64 `json:"prevDayHigh"`
	PrevDayLow   float64 `json:"prevDayLow"`
	PrevWeekHigh float64 `json:"prevWeekHigh"`
	PrevWeekLow  float64 `json:"prevWeekLow"`
	WeekOpen     float64 `json:"weekOpen"`
	MonthOpen    float64 `json:"monthOpen"`
}

// ComputeHTFLevels derives higher-timeframe levels from candle history.
func ComputeHTFLevels(candles []market.Candle) HTFLevels {
	var levels HTFLevels
	if len(candles) == 0 {
		return levels
	}

	last := candles[len(candles)-1].Time()
	curDay := last.Format("2006-01-02")
	curYear, curWeek := last.ISOWeek()
	curMonth := last.Format("2006-01")

	var prevDayKey string
	var prevDayCandles []market.Candle
	var prevWeekCandles []market.Candle

	for _, c := range candles {
		t := c.Time()

		if key := t.Format("2006-01-02"); key != curDay {
			if key != prevDayKey {
				prevDayKey = key
				prevDayCandles = prevDayCandles[:0]
			}
			prevDayCandles = append(prevDayCandles, c)
		}

		if y, w := t.ISOWeek(); y != curYear || w != curWeek {
			prevWeekCandles = append(prevWeekCandles, c)
		} else if levels.WeekOpen == 0 {
			levels.WeekOpen = c.Open
		}

		if t.Format("2006-01") == curMonth && levels.MonthOpen == 0 {
			levels.MonthOpen = c.Open
		}
	}

	if len(prevDayCandles) > 0 {
		levels.PrevDayHigh = market.HighestHigh(prevDayCandles)
		levels.PrevDayLow = market.LowestLow(prevDayCandles)
	}
	if len(prevWeekCandles) > 0 {
		// Only the immediately prior completed week matters; trim older weeks.
		py, pw := prevWeekCandles[len(prevWeekCandles)-1].Time().ISOWeek()
		var lastWeek []market.Candle
		for _, c := range prevWeekCandles {
			if y, w := c.Time().ISOWeek(); y == py && w == pw {
				lastWeek = append(lastWeek, c)
			}
		}
		levels.PrevWeekHigh = market.HighestHigh(lastWeek)
		levels.PrevWeekLow = market.LowestLow(lastWeek)
	}

	return levels
}

// NearLevel reports whether price sits within tolerance (fractional) of the
// level. Zero levels never match.
func NearLevel(price, level, tolerance float64) bool {
	if level == 0 {
		return false
	}
	diff := price - level
	if diff < 0 {
		diff = -diff
	}
	return diff <= level*tolerance
}
