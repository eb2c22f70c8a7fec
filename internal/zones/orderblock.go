package zones

import (
	"math"

	"smc-engine/internal/market"
)

// OrderBlockType marks the zone as demand (bullish) or supply (bearish).
type OrderBlockType string

const (
	BullishOB OrderBlockType = "bullish"
	BearishOB OrderBlockType = "bearish"
)

// OrderBlock is the last opposite-colored candle preceding a break of the
// recent range, spanning that candle through the breakout bar.
type OrderBlock struct {
	StartTime int64          `json:"startTime"`
	EndTime   int64          `json:"endTime"`
	High      float64        `json:"high"`
	Low       float64        `json:"low"`
	Type      OrderBlockType `json:"type"`
	EndIndex  int            `json:"-"`
}

// obDedupTolerance is the fractional price tolerance for treating two blocks
// of the same type and start time as duplicates.
const obDedupTolerance = 0.0005

// DetectOrderBlocks finds order blocks using a breakout of the window-bar
// prior high/low. A bearish candle followed by a bar breaking above the prior
// range yields a bullish block (demand); a bullish candle followed by a bar
// breaking below yields a bearish block. Near-identical zones are
// de-duplicated by (type, start time, high, low).
func DetectOrderBlocks(candles []market.Candle, window int) []OrderBlock {
	if window <= 0 {
		window = 5
	}
	if len(candles) < window+2 {
		return nil
	}

	var blocks []OrderBlock
	for i := window; i+1 < len(candles); i++ {
		cur := candles[i]
		next := candles[i+1]

		priorHigh := market.HighestHigh(candles[i-window : i])
		priorLow := market.LowestLow(candles[i-window : i])

		if cur.IsBearish() && next.High > priorHigh {
			appendOrderBlock(&blocks, OrderBlock{
				StartTime: cur.OpenTime,
				EndTime:   next.OpenTime,
				High:      cur.High,
				Low:       cur.Low,
				Type:      BullishOB,
				EndIndex:  i + 1,
			})
		}
		if cur.IsBullish() && next.Low < priorLow {
			appendOrderBlock(&blocks, OrderBlock{
				StartTime: cur.OpenTime,
				EndTime:   next.OpenTime,
				High:      cur.High,
				Low:       cur.Low,
				Type:      BearishOB,
				EndIndex:  i + 1,
			})
		}
	}

	return blocks
}

func appendOrderBlock(blocks *[]OrderBlock, ob OrderBlock) {
	for _, existing := range *blocks {
		if existing.Type != ob.Type || existing.StartTime != ob.StartTime {
			continue
		}
		tol := math.Max(existing.High, 1e-12) * obDedupTolerance
		if math.Abs(existing.High-ob.High) <= tol && math.Abs(existing.Low-ob.Low) <= tol {
			return
		}
	}
	*blocks = append(*blocks, ob)
}
