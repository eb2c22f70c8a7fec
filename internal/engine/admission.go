package engine

import (
	"math"

	"smc-engine/internal/market"
	"smc-engine/internal/weights"
	"smc-engine/internal/zones"
)

const (
	globalCooldownBars = 2
	setupCooldownBars  = 5
	maxDailySignals    = 12
	minTP1RewardRisk   = 1.25

	// Non-tier-one setups need at least this much ATR relative to price.
	minATRFracOfPrice = 0.0003

	// Inverse-volatility sizing baseline: ATR at 0.2% of price maps to 1.0.
	baselineRelVol = 0.002
)

// admit runs a candidate through the full admission pipeline. Steps apply in
// order; the first failure silently drops the candidate. Every rule and the
// Model2022 sub-detector funnel through this one function. On admission the
// scan state is updated and the finished signal returned.
func (e *Engine) admit(cand *candidate, c *barContext, w weights.SetupWeights) (Signal, bool) {
	st := c.st
	dir := cand.direction
	price := c.price

	// 1. Per-setup adaptive gate. A table can only disable a setup with a
	// meaningful losing sample; a thin sample never disables.
	sw := w.Get(string(cand.setup))
	if !sw.Allowed && sw.TotalTrades >= 5 && sw.WinRate < 45 {
		return Signal{}, false
	}

	// Risk geometry needed by several later steps.
	risk := price - cand.stop
	if dir == DirectionSell {
		risk = cand.stop - price
	}

	// 2. Path clearance: an unfilled opposing gap sitting between price and
	// the projected reward target blocks the signal.
	target := cand.tp1
	if target <= 0 {
		if dir == DirectionBuy {
			target = price + 2*risk
		} else {
			target = price - 2*risk
		}
	}
	if e.rewardPathBlocked(c, dir, price, target) {
		return Signal{}, false
	}

	// 3. Session-open filter, only when the caller asked for it.
	if e.cfg.EnableSessionOpenFilter && !sessionOpenSupports(st.SessionOpens, dir, price) {
		return Signal{}, false
	}

	// 4. Daily bias freeze after an intraday flip.
	if c.bar.OpenTime < st.BiasFreezeUntil {
		return Signal{}, false
	}

	// 5. Global cooldown across all setups.
	if c.i-st.LastSignalBar < globalCooldownBars {
		return Signal{}, false
	}

	// 6. At most one admitted signal per bar.
	if st.LastSignalBar == c.i {
		return Signal{}, false
	}

	// 7. Hard-disabled low-confluence setups.
	if hardDisabled[cand.setup] {
		return Signal{}, false
	}

	// 8. Per-setup cooldown.
	if last, ok := st.LastSetupBar[cand.setup]; ok && c.i-last < setupCooldownBars {
		return Signal{}, false
	}

	// 9. Risk validation.
	if !validNumber(price) || !validNumber(cand.stop) || risk <= 0 {
		return Signal{}, false
	}
	if dir == DirectionBuy && cand.stop >= price {
		return Signal{}, false
	}
	if dir == DirectionSell && cand.stop <= price {
		return Signal{}, false
	}
	if !tierOne[cand.setup] && c.atr < minATRFracOfPrice*price {
		return Signal{}, false
	}
	floor := math.Max(price*0.000004, math.Min(c.atr*0.02, price*0.0006))
	if risk < floor {
		return Signal{}, false
	}
	riskCap := c.atr * 4
	if lowConfluence[cand.setup] {
		riskCap = c.atr * 2
	}
	if risk > riskCap {
		return Signal{}, false
	}

	// 10. Target ladder synthesis.
	tp1, tp2, tp3, tp4 := synthesizeTargets(cand, dir, price, risk, c.atr)

	// 11. Context confluence.
	if !e.confluenceSatisfied(cand.setup, dir, c) {
		return Signal{}, false
	}

	// 12. Direction-flip guard. The earliest bar the cooldown lets through
	// still counts as a prompt reversal and needs either a higher priority
	// setup or full higher-timeframe support.
	if st.LastSignal != nil && st.LastSignal.Direction != dir && c.i-st.LastSignalBar <= globalCooldownBars {
		supported := c.biasSupports(dir) && htfZoneSupports(c.weeklyRange, dir, price)
		if priorityOf(cand.setup) <= priorityOf(st.LastSignal.Setup) && !supported {
			return Signal{}, false
		}
	}

	// 13. Daily and per-session caps.
	if st.DayCount[c.day] >= maxDailySignals {
		return Signal{}, false
	}
	sessionKey := c.day + "|" + c.session + "|" + string(cand.setup)
	if !tierOne[cand.setup] && st.DaySessionCount[sessionKey] >= 1 {
		return Signal{}, false
	}

	// 14. Final position sizing.
	size := volatilitySize(c.atr, price, tierOne[cand.setup])
	if sw.SizeMultiplier > 0 {
		size *= sw.SizeMultiplier
	}
	if e.cfg.SizeMultiplier > 0 {
		size *= e.cfg.SizeMultiplier
	}

	sig := Signal{
		Time:           c.bar.OpenTime,
		BarIndex:       c.i,
		Price:          price,
		Direction:      dir,
		Basis:          cand.basis,
		Setup:          cand.setup,
		Stop:           cand.stop,
		TP1:            tp1,
		TP2:            tp2,
		TP3:            tp3,
		TP4:            tp4,
		SizeMultiplier: size,
		Session:        c.session,
		Bias:           c.bias,
	}

	st.LastSignalBar = c.i
	st.LastSignal = &sig
	st.LastSetupBar[cand.setup] = c.i
	st.DayCount[c.day]++
	if !tierOne[cand.setup] {
		st.DaySessionCount[sessionKey]++
	}

	return sig, true
}

// rewardPathBlocked reports whether an unfilled opposing gap lies strictly
// between price and the projected target.
func (e *Engine) rewardPathBlocked(c *barContext, dir Direction, price, target float64) bool {
	opposing := zones.BearishGap
	if dir == DirectionSell {
		opposing = zones.BullishGap
	}

	for gi, g := range c.env.analysis.Gaps {
		if g.Type != opposing || g.EndIndex >= c.i {
			continue
		}
		if fill := c.env.gapFills[gi]; fill >= 0 && fill < c.i {
			continue
		}
		if dir == DirectionBuy && g.ZoneLow() > price && g.ZoneHigh() < target {
			return true
		}
		if dir == DirectionSell && g.ZoneHigh() < price && g.ZoneLow() > target {
			return true
		}
	}
	return false
}

// sessionOpenSupports checks price sits on the correct side of at least one
// tracked session-open level for the direction.
func sessionOpenSupports(opens map[string]float64, dir Direction, price float64) bool {
	for _, open := range opens {
		if dir == DirectionBuy && price > open {
			return true
		}
		if dir == DirectionSell && price < open {
			return true
		}
	}
	return false
}

// synthesizeTargets derives the TP ladder when the rule supplied none.
// Tier-one setups use fixed risk multiples; others use wider minimums, each
// floored by an ATR-scaled offset. A TP1 below the minimum reward/risk
// rescales the whole ladder.
func synthesizeTargets(cand *candidate, dir Direction, price, risk, atr float64) (float64, float64, float64, float64) {
	var o1, o2, o3, o4 float64

	if cand.tp1 > 0 {
		o1 = math.Abs(cand.tp1 - price)
		o2 = math.Abs(cand.tp2 - price)
		o3 = math.Abs(cand.tp3 - price)
		o4 = math.Abs(cand.tp4 - price)
	} else if tierOne[cand.setup] {
		o1, o2, o3, o4 = 1.5*risk, 3*risk, 4.5*risk, 6*risk
	} else {
		step := 0.5 * atr
		o1 = math.Max(2*risk, step)
		o2 = o1 + math.Max(risk, step)
		o3 = o2 + math.Max(1.5*risk, step)
		o4 = o3 + math.Max(1.5*risk, step)
	}

	if risk > 0 && o1 > 0 && o1/risk < minTP1RewardRisk {
		scale := minTP1RewardRisk * risk / o1
		o1 *= scale
		o2 *= scale
		o3 *= scale
		o4 *= scale
	}

	if dir == DirectionBuy {
		return price + o1, price + o2, price + o3, price + o4
	}
	return price - o1, price - o2, price - o3, price - o4
}

// confluenceSatisfied applies the tiered context requirements.
func (e *Engine) confluenceSatisfied(setup SetupKind, dir Direction, c *barContext) bool {
	inLondonNY := c.session == market.SessionLondon || c.session == market.SessionNewYork

	if tierOne[setup] {
		// A kill-zone entry without the stop-hunt that justifies it is
		// rejected.
		if c.inKill && inLondonNY && c.supportiveSweep(dir, 20) == nil {
			return false
		}
	} else {
		if !inLondonNY {
			return false
		}
		if !c.inKill && !c.biasSupports(dir) {
			return false
		}
		// A sweep, an Asia-range breakout, or a tracked higher-timeframe
		// level underfoot supplies the confluence.
		if c.supportiveSweep(dir, 20) == nil && !c.st.asiaBreakoutActive(c.i) && !c.nearTrackedLevel() {
			return false
		}
	}

	if lowConfluence[setup] && !c.biasSupports(dir) {
		return false
	}
	return true
}

// htfZoneSupports: buys belong in the weekly discount, sells in the weekly
// premium.
func htfZoneSupports(weekly zones.PremiumDiscountRange, dir Direction, price float64) bool {
	if dir == DirectionBuy {
		return weekly.InDiscount(price)
	}
	return weekly.InPremium(price)
}

// volatilitySize is the inverse-volatility position multiplier.
func volatilitySize(atr, price float64, tierOneSetup bool) float64 {
	size := 1.0
	if atr > 0 && price > 0 {
		size = clamp(baselineRelVol/(atr/price), 0.5, 2.5)
	}
	if tierOneSetup {
		size = clamp(size, 0.75, 1.5)
	}
	return size
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func validNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
