package engine

import (
	"smc-engine/internal/market"
	"smc-engine/internal/structure"
	"smc-engine/internal/zones"
)

// The Model 2022 sub-detector works on a fixed 15-minute grid regardless of
// the input resolution, and looks for the narrow sweep, CHoCH and gap-entry
// sequence. It composes the same primitives as the main pass.
const (
	model2022Interval  = 15
	model2022SweepLook = 10
	model2022EntryBars = 6
)

// model2022Events resamples the history to 15 minutes, runs the sequence
// detector there, and maps each candidate back to the first original bar at
// or after its 15-minute bar. Candidates still go through the shared
// admission pipeline.
func model2022Events(candles []market.Candle) map[int][]*candidate {
	out := make(map[int][]*candidate)

	resampled := market.Resample(candles, model2022Interval)
	if len(resampled) < 2*swingLookback+2 {
		return out
	}

	swings := structure.DetectSwings(resampled, swingLookback)
	atr := market.CalculateATR(resampled, atrPeriod)
	shifts := structure.DetectStructureShifts(resampled, swings, atr, structure.DefaultShiftOptions())
	sweeps := zones.DetectLiquiditySweeps(resampled, 0.0005, 3)
	gaps := zones.DetectFVGs(resampled)

	timeIdx := make(map[int64]int, len(resampled))
	for i, c := range resampled {
		timeIdx[c.OpenTime] = i
	}

	for _, sh := range shifts {
		if sh.Label != structure.ShiftCHoCH {
			continue
		}
		j, ok := timeIdx[sh.Time]
		if !ok {
			continue
		}

		dir := DirectionBuy
		wantSweep := zones.SweepDown
		gapType := zones.BullishGap
		if sh.Direction == structure.ShiftBearish {
			dir = DirectionSell
			wantSweep = zones.SweepUp
			gapType = zones.BearishGap
		}

		sweep := sweepBefore(sweeps, wantSweep, j, model2022SweepLook)
		if sweep == nil {
			continue
		}

		// Entry: the first 15m bar after the CHoCH tapping a still-unfilled
		// gap of the shift's direction.
		for k := j + 1; k <= j+model2022EntryBars && k < len(resampled); k++ {
			g := tappedGap(gaps, resampled, gapType, k)
			if g == nil {
				continue
			}

			cand := &candidate{
				setup:     SetupModel2022,
				direction: dir,
				basis:     "Model 2022: 15m sweep, CHoCH and gap entry",
			}
			if dir == DirectionBuy {
				cand.stop = g.ZoneLow() - 0.1*atr
			} else {
				cand.stop = g.ZoneHigh() + 0.1*atr
			}

			if orig := originalIndexAtOrAfter(candles, resampled[k].OpenTime); orig >= 0 {
				out[orig] = append(out[orig], cand)
			}
			break
		}
	}

	return out
}

// sweepBefore finds a sweep of the wanted direction within lookback 15m bars
// before index j.
func sweepBefore(sweeps []zones.LiquiditySweep, want zones.SweepDirection, j, lookback int) *zones.LiquiditySweep {
	for si := len(sweeps) - 1; si >= 0; si-- {
		sw := sweeps[si]
		if sw.Index > j || sw.Index < j-lookback {
			continue
		}
		if sw.Direction == want {
			return &sweeps[si]
		}
	}
	return nil
}

// tappedGap returns a gap of the given type formed before bar k, unfilled up
// to k, whose zone the bar k close sits inside.
func tappedGap(gaps []zones.Gap, candles []market.Candle, gapType zones.GapType, k int) *zones.Gap {
	price := candles[k].Close
	for gi := len(gaps) - 1; gi >= 0; gi-- {
		g := &gaps[gi]
		if g.Type != gapType || g.EndIndex >= k {
			continue
		}
		filled := false
		for i := g.EndIndex + 1; i < k; i++ {
			if candles[i].Low <= g.ZoneHigh() && candles[i].High >= g.ZoneLow() {
				filled = true
				break
			}
		}
		if filled {
			continue
		}
		if price >= g.ZoneLow() && price <= g.ZoneHigh() {
			return g
		}
	}
	return nil
}

// originalIndexAtOrAfter maps a 15-minute bucket time back to the first
// input bar at or after it, or -1 when history ends first.
func originalIndexAtOrAfter(candles []market.Candle, t int64) int {
	for i, c := range candles {
		if c.OpenTime >= t {
			return i
		}
	}
	return -1
}
