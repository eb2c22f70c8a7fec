package structure

import (
	"fmt"

	"smc-engine/internal/market"
)

// BiasLabel classifies the directional read of the market.
type BiasLabel string

const (
	BiasBullish BiasLabel = "Bullish"
	BiasBearish BiasLabel = "Bearish"
	BiasNeutral BiasLabel = "Neutral"
)

// Bias is a stateless directional read recomputed from scratch each call.
type Bias struct {
	Label  BiasLabel `json:"label"`
	Reason string    `json:"reason"`
}

// smaHysteresis is the band around the slow SMA inside which the crossover
// fallback stays neutral (0.05%).
const smaHysteresis = 0.0005

// ComputeBias derives the daily bias by comparing the latest (possibly
// partial) calendar day against the prior completed day. Bullish requires a
// green day closing above the prior close with the prior high swept; bearish
// is the mirror. When the daily comparison is ambiguous and at least 40 bars
// exist, a 40 vs 160 bar SMA crossover decides before falling back to
// neutral. Never panics on short input.
func ComputeBias(candles []market.Candle) Bias {
	if len(candles) < 5 {
		return Bias{Label: BiasNeutral, Reason: "Not enough data to compute bias"}
	}

	order, days := market.GroupByDay(candles)

	if len(order) >= 2 {
		today := days[order[len(order)-1]]
		prior := days[order[len(order)-2]]

		dayOpen := today[0].Open
		dayClose := today[len(today)-1].Close
		dayHigh := market.HighestHigh(today)
		dayLow := market.LowestLow(today)

		priorHigh := market.HighestHigh(prior)
		priorLow := market.LowestLow(prior)
		priorClose := prior[len(prior)-1].Close

		if dayClose > dayOpen && dayClose > priorClose && dayHigh >= priorHigh {
			return Bias{
				Label:  BiasBullish,
				Reason: fmt.Sprintf("Green day closing above prior close %.4f with prior high %.4f swept", priorClose, priorHigh),
			}
		}
		if dayClose < dayOpen && dayClose < priorClose && dayLow <= priorLow {
			return Bias{
				Label:  BiasBearish,
				Reason: fmt.Sprintf("Red day closing below prior close %.4f with prior low %.4f swept", priorClose, priorLow),
			}
		}
	}

	if len(candles) >= 40 {
		slowPeriod := 160
		if len(candles) < slowPeriod {
			slowPeriod = len(candles)
		}
		fast := market.CalculateSMA(candles, 40)
		slow := market.CalculateSMA(candles, slowPeriod)

		if slow > 0 {
			if fast > slow*(1+smaHysteresis) {
				return Bias{Label: BiasBullish, Reason: "Fast SMA above slow SMA"}
			}
			if fast < slow*(1-smaHysteresis) {
				return Bias{Label: BiasBearish, Reason: "Fast SMA below slow SMA"}
			}
		}
	}

	return Bias{Label: BiasNeutral, Reason: "No decisive daily structure or SMA separation"}
}
