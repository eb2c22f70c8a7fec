package market

import "math"

// CalculateSMA calculates the Simple Moving Average of closes over the last period bars.
func CalculateSMA(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}

	return sum / float64(period)
}

// CalculateEMA calculates the Exponential Moving Average of closes, seeded
// with an SMA over the first period bars.
func CalculateEMA(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sma := CalculateSMA(candles[:period], period)
	multiplier := 2.0 / float64(period+1)

	ema := sma
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close * multiplier) + (ema * (1 - multiplier))
	}

	return ema
}

// CalculateATR calculates the Average True Range over the last period bars.
// Returns 0 when fewer than period+1 candles are available.
func CalculateATR(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	var trSum float64
	for i := len(candles) - period; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trSum += tr
	}

	return trSum / float64(period)
}
