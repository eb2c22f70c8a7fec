package structure

import "smc-engine/internal/market"

// SwingType distinguishes pivot highs from pivot lows.
type SwingType string

const (
	SwingHigh SwingType = "high"
	SwingLow  SwingType = "low"
)

// Swing is a pivot point valid relative to the lookback window that
// produced it.
type Swing struct {
	Index int       `json:"index"`
	Time  int64     `json:"time"`
	Price float64   `json:"price"`
	Type  SwingType `json:"type"`
}

// DetectSwings scans for pivot highs and lows. A bar is a swing high when
// its high equals the maximum over the full ±lookback window, and a swing
// low when its low equals the window minimum; both can fire on the same bar.
// Bars without a complete window on both sides never qualify. Results are in
// index order. Stateless and restartable.
func DetectSwings(candles []market.Candle, lookback int) []Swing {
	if lookback <= 0 || len(candles) < 2*lookback+1 {
		return nil
	}

	var swings []Swing
	for i := lookback; i < len(candles)-lookback; i++ {
		isHigh := true
		isLow := true
		for j := i - lookback; j <= i+lookback; j++ {
			if candles[j].High > candles[i].High {
				isHigh = false
			}
			if candles[j].Low < candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			swings = append(swings, Swing{Index: i, Time: candles[i].OpenTime, Price: candles[i].High, Type: SwingHigh})
		}
		if isLow {
			swings = append(swings, Swing{Index: i, Time: candles[i].OpenTime, Price: candles[i].Low, Type: SwingLow})
		}
	}

	return swings
}
