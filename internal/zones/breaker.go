package zones

import "smc-engine/internal/market"

// BreakerGrade classifies a breaker by the displacement of the invalidating
// candle.
type BreakerGrade string

const (
	BreakerWeak   BreakerGrade = "weak"
	BreakerMedium BreakerGrade = "medium"
	BreakerStrong BreakerGrade = "strong"
)

// BreakerBlock is an order block invalidated by a later close beyond its
// boundary, inverted in directional bias.
type BreakerBlock struct {
	StartTime int64          `json:"startTime"`
	EndTime   int64          `json:"endTime"`
	High      float64        `json:"high"`
	Low       float64        `json:"low"`
	Type      OrderBlockType `json:"type"`
	Grade     BreakerGrade   `json:"grade"`
}

const maxBreakers = 10

// DetectBreakerBlocks finds, for each order block, the first later candle
// whose close violates the block's opposite boundary and emits a breaker of
// the opposite type. Grade comes from displacement: distance violated over
// the violating candle's range (>1 strong, >0.5 medium, else weak). Returns
// the most recent 10.
func DetectBreakerBlocks(blocks []OrderBlock, candles []market.Candle) []BreakerBlock {
	var breakers []BreakerBlock

	for _, ob := range blocks {
		for i := ob.EndIndex + 1; i < len(candles); i++ {
			c := candles[i]

			if ob.Type == BullishOB && c.Close < ob.Low {
				breakers = append(breakers, BreakerBlock{
					StartTime: ob.StartTime,
					EndTime:   c.OpenTime,
					High:      ob.High,
					Low:       ob.Low,
					Type:      BearishOB,
					Grade:     gradeDisplacement(ob.Low-c.Close, c.Range()),
				})
				break
			}
			if ob.Type == BearishOB && c.Close > ob.High {
				breakers = append(breakers, BreakerBlock{
					StartTime: ob.StartTime,
					EndTime:   c.OpenTime,
					High:      ob.High,
					Low:       ob.Low,
					Type:      BullishOB,
					Grade:     gradeDisplacement(c.Close-ob.High, c.Range()),
				})
				break
			}
		}
	}

	if len(breakers) > maxBreakers {
		breakers = breakers[len(breakers)-maxBreakers:]
	}
	return breakers
}

func gradeDisplacement(violated, candleRange float64) BreakerGrade {
	if candleRange <= 0 {
		return BreakerWeak
	}
	ratio := violated / candleRange
	switch {
	case ratio > 1:
		return BreakerStrong
	case ratio > 0.5:
		return BreakerMedium
	default:
		return BreakerWeak
	}
}
