package zones

import (
	"math"
	"sort"

	"smc-engine/internal/market"
)

// SweepType marks the equal-level kind that was taken out.
type SweepType string

const (
	SweepEQH SweepType = "eqh"
	SweepEQL SweepType = "eql"
)

// SweepDirection is the direction price traded through the level.
type SweepDirection string

const (
	SweepUp   SweepDirection = "up"
	SweepDown SweepDirection = "down"
)

// LiquiditySweep records a penetration through a cluster of equal highs or
// lows, presumed stop-hunt.
type LiquiditySweep struct {
	Time      int64          `json:"time"`
	Price     float64        `json:"price"`
	Type      SweepType      `json:"type"`
	Direction SweepDirection `json:"direction"`
	Index     int            `json:"-"`
}

const maxSweeps = 20

type equalLevel struct {
	price   float64
	lastIdx int
	members int
	kind    SweepType
}

// DetectLiquiditySweeps clusters consecutive bars whose highs (or lows) sit
// within tolerancePct of each other into equal-level candidates, then finds
// the first later bar that trades through each clustered level. A sweep is
// recorded only when at least minSpacingBars separate it from the cluster and
// the level sits a minimum distance from the previously recorded sweep of the
// same kind. Returns the most recent 20.
func DetectLiquiditySweeps(candles []market.Candle, tolerancePct float64, minSpacingBars int) []LiquiditySweep {
	if tolerancePct <= 0 {
		tolerancePct = 0.0005
	}
	if minSpacingBars <= 0 {
		minSpacingBars = 3
	}
	if len(candles) < 3 {
		return nil
	}

	levels := clusterEqualLevels(candles, tolerancePct)

	var sweeps []LiquiditySweep
	lastSweepPrice := map[SweepType]float64{}

	for _, lvl := range levels {
		for i := lvl.lastIdx + 1; i < len(candles); i++ {
			c := candles[i]

			through := (lvl.kind == SweepEQH && c.High > lvl.price) ||
				(lvl.kind == SweepEQL && c.Low < lvl.price)
			if !through {
				continue
			}
			if i-lvl.lastIdx < minSpacingBars {
				break
			}
			if prev, ok := lastSweepPrice[lvl.kind]; ok {
				if math.Abs(lvl.price-prev) < lvl.price*tolerancePct*2 {
					break
				}
			}

			dir := SweepUp
			if lvl.kind == SweepEQL {
				dir = SweepDown
			}
			sweeps = append(sweeps, LiquiditySweep{
				Time:      c.OpenTime,
				Price:     lvl.price,
				Type:      lvl.kind,
				Direction: dir,
				Index:     i,
			})
			lastSweepPrice[lvl.kind] = lvl.price
			break
		}
	}

	sort.Slice(sweeps, func(i, j int) bool { return sweeps[i].Index < sweeps[j].Index })
	if len(sweeps) > maxSweeps {
		sweeps = sweeps[len(sweeps)-maxSweeps:]
	}
	return sweeps
}

// clusterEqualLevels groups runs of consecutive bars whose highs (lows) stay
// within tolerance into equal-high (equal-low) candidates. A cluster needs at
// least two members.
func clusterEqualLevels(candles []market.Candle, tolerancePct float64) []equalLevel {
	var levels []equalLevel

	cluster := func(kind SweepType, price func(market.Candle) float64) {
		start := 0
		for start < len(candles)-1 {
			anchor := price(candles[start])
			end := start
			for end+1 < len(candles) && math.Abs(price(candles[end+1])-anchor) <= anchor*tolerancePct {
				end++
			}
			if end > start {
				levels = append(levels, equalLevel{
					price:   anchor,
					lastIdx: end,
					members: end - start + 1,
					kind:    kind,
				})
			}
			start = end + 1
		}
	}

	cluster(SweepEQH, func(c market.Candle) float64 { return c.High })
	cluster(SweepEQL, func(c market.Candle) float64 { return c.Low })

	return levels
}
