package zones

import "smc-engine/internal/market"

// GapType represents the direction of a Fair Value Gap.
type GapType string

const (
	BullishGap GapType = "bullish"
	BearishGap GapType = "bearish"
)

// Gap is a three-candle imbalance. Top carries the first candle's boundary
// and Bottom the third candle's, so for a bullish gap Top sits below Bottom.
type Gap struct {
	StartTime int64   `json:"startTime"`
	EndTime   int64   `json:"endTime"`
	Top       float64 `json:"top"`
	Bottom    float64 `json:"bottom"`
	Type      GapType `json:"type"`
	EndIndex  int     `json:"-"`
}

// ZoneLow returns the lower boundary of the gap zone.
func (g Gap) ZoneLow() float64 {
	if g.Top < g.Bottom {
		return g.Top
	}
	return g.Bottom
}

// ZoneHigh returns the upper boundary of the gap zone.
func (g Gap) ZoneHigh() float64 {
	if g.Top > g.Bottom {
		return g.Top
	}
	return g.Bottom
}

// DetectFVGs scans every consecutive candle triple (a, b, c) for an
// imbalance. Bullish: a.High < c.Low with the middle candle holding above
// a.High and below c.High. Bearish is the mirror. One gap per qualifying
// triple, unbounded count.
func DetectFVGs(candles []market.Candle) []Gap {
	if len(candles) < 3 {
		return nil
	}

	var gaps []Gap
	for i := 0; i+2 < len(candles); i++ {
		a, b, c := candles[i], candles[i+1], candles[i+2]

		if a.High < c.Low && b.Low > a.High && b.High < c.High {
			gaps = append(gaps, Gap{
				StartTime: a.OpenTime,
				EndTime:   c.OpenTime,
				Top:       a.High,
				Bottom:    c.Low,
				Type:      BullishGap,
				EndIndex:  i + 2,
			})
		}

		if a.Low > c.High && b.High < a.Low && b.Low > c.Low {
			gaps = append(gaps, Gap{
				StartTime: a.OpenTime,
				EndTime:   c.OpenTime,
				Top:       a.Low,
				Bottom:    c.High,
				Type:      BearishGap,
				EndIndex:  i + 2,
			})
		}
	}

	return gaps
}

// UnfilledGaps returns gaps no later candle has traded into. A gap counts as
// filled once any bar past the triple overlaps its zone.
func UnfilledGaps(gaps []Gap, candles []market.Candle) []Gap {
	var out []Gap
	for _, g := range gaps {
		filled := false
		for i := g.EndIndex + 1; i < len(candles); i++ {
			if candles[i].Low <= g.ZoneHigh() && candles[i].High >= g.ZoneLow() {
				filled = true
				break
			}
		}
		if !filled {
			out = append(out, g)
		}
	}
	return out
}
