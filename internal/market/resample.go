package market

// Resample aggregates candles onto a fixed grid of intervalMinutes, aligned
// to epoch. Each bucket takes the first open, last close, max high, min low
// and summed volume of its members. Input order is preserved; a partial
// trailing bucket is emitted as-is.
func Resample(candles []Candle, intervalMinutes int) []Candle {
	if intervalMinutes <= 0 || len(candles) == 0 {
		return nil
	}

	intervalMs := int64(intervalMinutes) * 60 * 1000
	var out []Candle

	for _, c := range candles {
		bucket := c.OpenTime - (c.OpenTime % intervalMs)

		if len(out) > 0 && out[len(out)-1].OpenTime == bucket {
			last := &out[len(out)-1]
			if c.High > last.High {
				last.High = c.High
			}
			if c.Low < last.Low {
				last.Low = c.Low
			}
			last.Close = c.Close
			last.Volume += c.Volume
			continue
		}

		out = append(out, Candle{
			OpenTime: bucket,
			Open:     c.Open,
			High:     c.High,
			Low:      c.Low,
			Close:    c.Close,
			Volume:   c.Volume,
		})
	}

	return out
}
