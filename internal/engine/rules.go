package engine

import (
	"smc-engine/internal/market"
	"smc-engine/internal/structure"
	"smc-engine/internal/zones"
)

// biasDirection maps the running bias to a trade direction, or "" when
// neutral.
func biasDirection(label structure.BiasLabel) Direction {
	switch label {
	case structure.BiasBullish:
		return DirectionBuy
	case structure.BiasBearish:
		return DirectionSell
	default:
		return ""
	}
}

// guardZoneTap: bias-aligned tap of a demand/supply zone (order block or
// unfilled gap) inside a session.
func guardZoneTap(c *barContext) *candidate {
	dir := biasDirection(c.bias)
	if dir == "" {
		return nil
	}

	if dir == DirectionBuy {
		if ob := c.orderBlockAt(c.price, zones.BullishOB); ob != nil {
			return &candidate{direction: dir, basis: "Bias-aligned tap of demand order block", stop: ob.Low - 0.1*c.atr}
		}
		if g := c.unfilledGapAt(c.price, zones.BullishGap); g != nil {
			return &candidate{direction: dir, basis: "Bias-aligned return into bullish fair value gap", stop: g.ZoneLow() - 0.1*c.atr}
		}
		return nil
	}

	if ob := c.orderBlockAt(c.price, zones.BearishOB); ob != nil {
		return &candidate{direction: dir, basis: "Bias-aligned tap of supply order block", stop: ob.High + 0.1*c.atr}
	}
	if g := c.unfilledGapAt(c.price, zones.BearishGap); g != nil {
		return &candidate{direction: dir, basis: "Bias-aligned return into bearish fair value gap", stop: g.ZoneHigh() + 0.1*c.atr}
	}
	return nil
}

// OTE band: 62% to 70.5% retracement of the swing leg.
const (
	oteLow  = 0.62
	oteHigh = 0.705
)

// guardOTERetracement: CHoCH plus a gap return inside the optimal trade
// entry band of the last swing leg.
func guardOTERetracement(c *barContext) *candidate {
	if sh := c.recentShift(structure.ShiftCHoCH, structure.ShiftBullish, 30); sh != nil {
		high := c.lastSwing(structure.SwingHigh)
		low := c.lastSwing(structure.SwingLow)
		if high != nil && low != nil && high.Price > low.Price {
			retr := (high.Price - c.price) / (high.Price - low.Price)
			if retr >= oteLow && retr <= oteHigh && c.unfilledGapAt(c.price, zones.BullishGap) != nil {
				return &candidate{
					direction: DirectionBuy,
					basis:     "Bullish CHoCH with gap return in OTE band",
					stop:      low.Price - 0.1*c.atr,
				}
			}
		}
	}

	if sh := c.recentShift(structure.ShiftCHoCH, structure.ShiftBearish, 30); sh != nil {
		high := c.lastSwing(structure.SwingHigh)
		low := c.lastSwing(structure.SwingLow)
		if high != nil && low != nil && high.Price > low.Price {
			retr := (c.price - low.Price) / (high.Price - low.Price)
			if retr >= oteLow && retr <= oteHigh && c.unfilledGapAt(c.price, zones.BearishGap) != nil {
				return &candidate{
					direction: DirectionSell,
					basis:     "Bearish CHoCH with gap return in OTE band",
					stop:      high.Price + 0.1*c.atr,
				}
			}
		}
	}

	return nil
}

// guardPDArraySweep: discount/premium array plus liquidity sweep plus a
// structure shift, inside a kill zone.
func guardPDArraySweep(c *barContext) *candidate {
	if !c.inKill {
		return nil
	}

	if c.localRange.InDiscount(c.price) {
		if sw := c.supportiveSweep(DirectionBuy, 15); sw != nil {
			if c.recentShiftDir(structure.ShiftBullish, 15) != nil {
				return &candidate{
					direction: DirectionBuy,
					basis:     "Discount array with low sweep and bullish shift in kill zone",
					stop:      sw.Price - 0.1*c.atr,
				}
			}
		}
	}

	if c.localRange.InPremium(c.price) {
		if sw := c.supportiveSweep(DirectionSell, 15); sw != nil {
			if c.recentShiftDir(structure.ShiftBearish, 15) != nil {
				return &candidate{
					direction: DirectionSell,
					basis:     "Premium array with high sweep and bearish shift in kill zone",
					stop:      sw.Price + 0.1*c.atr,
				}
			}
		}
	}

	return nil
}

// guardBreakerRetest: price retesting an invalidated order block from its
// new side.
func guardBreakerRetest(c *barContext) *candidate {
	if br := c.breakerAt(c.price, zones.BullishOB); br != nil {
		return &candidate{
			direction: DirectionBuy,
			basis:     "Retest of bullish breaker block (" + string(br.Grade) + ")",
			stop:      br.Low - 0.1*c.atr,
		}
	}
	if br := c.breakerAt(c.price, zones.BearishOB); br != nil {
		return &candidate{
			direction: DirectionSell,
			basis:     "Retest of bearish breaker block (" + string(br.Grade) + ")",
			stop:      br.High + 0.1*c.atr,
		}
	}
	return nil
}

// guardSweepCHoCH: a stop-hunt followed promptly by a change of character in
// the opposite direction.
func guardSweepCHoCH(c *barContext) *candidate {
	if sw := c.supportiveSweep(DirectionBuy, 10); sw != nil {
		if c.recentShift(structure.ShiftCHoCH, structure.ShiftBullish, 8) != nil {
			return &candidate{
				direction: DirectionBuy,
				basis:     "Low sweep followed by bullish CHoCH",
				stop:      sw.Price - 0.1*c.atr,
			}
		}
	}
	if sw := c.supportiveSweep(DirectionSell, 10); sw != nil {
		if c.recentShift(structure.ShiftCHoCH, structure.ShiftBearish, 8) != nil {
			return &candidate{
				direction: DirectionSell,
				basis:     "High sweep followed by bearish CHoCH",
				stop:      sw.Price + 0.1*c.atr,
			}
		}
	}
	return nil
}

// guardEMAPullback: trend continuation off the fast EMA.
func guardEMAPullback(c *barContext) *candidate {
	if c.emaFast == 0 || c.emaSlow == 0 {
		return nil
	}

	if c.emaFast > c.emaSlow && c.bar.Low <= c.emaFast && c.bar.Close > c.emaFast {
		stop := c.emaSlow
		if stop >= c.price {
			stop = c.bar.Low - 0.1*c.atr
		}
		return &candidate{direction: DirectionBuy, basis: "Pullback to fast EMA in uptrend", stop: stop}
	}

	if c.emaFast < c.emaSlow && c.bar.High >= c.emaFast && c.bar.Close < c.emaFast {
		stop := c.emaSlow
		if stop <= c.price {
			stop = c.bar.High + 0.1*c.atr
		}
		return &candidate{direction: DirectionSell, basis: "Pullback to fast EMA in downtrend", stop: stop}
	}

	return nil
}

// guardSilverBullet: the New York morning window, a sweep into liquidity and
// a gap entry.
func guardSilverBullet(c *barContext) *candidate {
	if c.hour < 14 || c.hour >= 16 {
		return nil
	}

	if c.supportiveSweep(DirectionBuy, 6) != nil {
		if g := c.unfilledGapAt(c.price, zones.BullishGap); g != nil {
			return &candidate{
				direction: DirectionBuy,
				basis:     "Silver Bullet: NY window low sweep into bullish gap",
				stop:      g.ZoneLow() - 0.1*c.atr,
			}
		}
	}
	if c.supportiveSweep(DirectionSell, 6) != nil {
		if g := c.unfilledGapAt(c.price, zones.BearishGap); g != nil {
			return &candidate{
				direction: DirectionSell,
				basis:     "Silver Bullet: NY window high sweep into bearish gap",
				stop:      g.ZoneHigh() + 0.1*c.atr,
			}
		}
	}

	return nil
}

// guardTurtleSoup: 20-bar false breakout.
func guardTurtleSoup(c *barContext) *candidate {
	high20, low20 := c.priorExtremes(20)
	if high20 == 0 {
		return nil
	}

	if c.bar.Low < low20 && c.bar.Close > low20 {
		return &candidate{
			direction: DirectionBuy,
			basis:     "Turtle Soup: failed 20-bar low breakout",
			stop:      c.bar.Low - 0.1*c.atr,
		}
	}
	if c.bar.High > high20 && c.bar.Close < high20 {
		return &candidate{
			direction: DirectionSell,
			basis:     "Turtle Soup: failed 20-bar high breakout",
			stop:      c.bar.High + 0.1*c.atr,
		}
	}
	return nil
}

// guardPowerOfThree: accumulation (Asia range), manipulation (sweep of one
// side), then expansion through the midpoint.
func guardPowerOfThree(c *barContext) *candidate {
	st := c.st
	if c.session == market.SessionAsia || st.AsiaDay != c.day || st.AsiaHigh <= st.AsiaLow {
		return nil
	}
	mid := (st.AsiaHigh + st.AsiaLow) / 2

	if st.AsiaSweptLow && c.bar.Close > mid {
		stop := st.AsiaLow
		if c.bar.Low < stop {
			stop = c.bar.Low
		}
		return &candidate{
			direction: DirectionBuy,
			basis:     "Power of Three: Asia low manipulation then expansion up",
			stop:      stop - 0.1*c.atr,
		}
	}
	if st.AsiaSweptHigh && c.bar.Close < mid {
		stop := st.AsiaHigh
		if c.bar.High > stop {
			stop = c.bar.High
		}
		return &candidate{
			direction: DirectionSell,
			basis:     "Power of Three: Asia high manipulation then expansion down",
			stop:      stop + 0.1*c.atr,
		}
	}
	return nil
}

// guardJudasSwing: the fake move at the New York open against the Asia
// range.
func guardJudasSwing(c *barContext) *candidate {
	st := c.st
	if c.hour != 12 && c.hour != 13 {
		return nil
	}
	if st.AsiaDay != c.day || st.AsiaHigh <= st.AsiaLow {
		return nil
	}

	if c.bar.High > st.AsiaHigh && c.bar.Close < st.AsiaHigh {
		return &candidate{
			direction: DirectionSell,
			basis:     "Judas swing above Asia high at NY open",
			stop:      c.bar.High + 0.1*c.atr,
		}
	}
	if c.bar.Low < st.AsiaLow && c.bar.Close > st.AsiaLow {
		return &candidate{
			direction: DirectionBuy,
			basis:     "Judas swing below Asia low at NY open",
			stop:      c.bar.Low - 0.1*c.atr,
		}
	}
	return nil
}

// guardInversionFVG: a filled gap acting as support or resistance from the
// other side.
func guardInversionFVG(c *barContext) *candidate {
	if c.bar.IsBullish() {
		if g := c.invertedGapAt(c.price, zones.BearishGap); g != nil {
			return &candidate{
				direction: DirectionBuy,
				basis:     "Inverted bearish gap holding as support",
				stop:      g.ZoneLow() - 0.1*c.atr,
			}
		}
	}
	if c.bar.IsBearish() {
		if g := c.invertedGapAt(c.price, zones.BullishGap); g != nil {
			return &candidate{
				direction: DirectionSell,
				basis:     "Inverted bullish gap holding as resistance",
				stop:      g.ZoneHigh() + 0.1*c.atr,
			}
		}
	}
	return nil
}

// guardMomentum: displacement candle closing beyond the prior bar's extreme.
func guardMomentum(c *barContext) *candidate {
	if c.atr <= 0 || c.bar.Body() < 1.2*c.atr {
		return nil
	}

	if c.bar.IsBullish() && c.bar.Close > c.prev.High {
		return &candidate{direction: DirectionBuy, basis: "Momentum displacement through prior high", stop: c.bar.Low}
	}
	if c.bar.IsBearish() && c.bar.Close < c.prev.Low {
		return &candidate{direction: DirectionSell, basis: "Momentum displacement through prior low", stop: c.bar.High}
	}
	return nil
}

// guardMeanReversion: stretched move away from equilibrium turning back.
func guardMeanReversion(c *barContext) *candidate {
	if c.atr <= 0 || c.localRange.High <= c.localRange.Low {
		return nil
	}

	if c.price < c.localRange.Equilibrium-1.5*c.atr && c.bar.IsBullish() {
		return &candidate{
			direction: DirectionBuy,
			basis:     "Mean reversion from stretched discount",
			stop:      c.bar.Low - 0.5*c.atr,
		}
	}
	if c.price > c.localRange.Equilibrium+1.5*c.atr && c.bar.IsBearish() {
		return &candidate{
			direction: DirectionSell,
			basis:     "Mean reversion from stretched premium",
			stop:      c.bar.High + 0.5*c.atr,
		}
	}
	return nil
}

// guardRangeBreakout: close beyond the trailing range extreme.
func guardRangeBreakout(c *barContext) *candidate {
	if c.atr <= 0 || c.localRange.High <= c.localRange.Low {
		return nil
	}

	if c.bar.Close > c.localRange.High && c.prev.Close <= c.localRange.High {
		return &candidate{direction: DirectionBuy, basis: "Breakout above trailing range high", stop: c.localRange.High - 0.5*c.atr}
	}
	if c.bar.Close < c.localRange.Low && c.prev.Close >= c.localRange.Low {
		return &candidate{direction: DirectionSell, basis: "Breakdown below trailing range low", stop: c.localRange.Low + 0.5*c.atr}
	}
	return nil
}

// guardEngulfingShift: full-body engulfing of the prior candle.
func guardEngulfingShift(c *barContext) *candidate {
	if c.prev.IsBearish() && c.bar.IsBullish() &&
		c.bar.Close > c.prev.Open && c.bar.Open < c.prev.Close {
		return &candidate{direction: DirectionBuy, basis: "Bullish engulfing shift", stop: c.bar.Low - 0.1*c.atr}
	}
	if c.prev.IsBullish() && c.bar.IsBearish() &&
		c.bar.Close < c.prev.Open && c.bar.Open > c.prev.Close {
		return &candidate{direction: DirectionSell, basis: "Bearish engulfing shift", stop: c.bar.High + 0.1*c.atr}
	}
	return nil
}

// guardPullback: bias- and momentum-aligned counter-colored bar holding the
// slow EMA.
func guardPullback(c *barContext) *candidate {
	dir := biasDirection(c.bias)
	if dir == "" || !c.momentumSupports(dir) {
		return nil
	}

	if dir == DirectionBuy && c.bar.IsBearish() && c.bar.Close > c.emaSlow {
		return &candidate{direction: dir, basis: "Trend pullback holding slow EMA", stop: c.emaSlow - 0.1*c.atr}
	}
	if dir == DirectionSell && c.bar.IsBullish() && c.bar.Close < c.emaSlow {
		return &candidate{direction: dir, basis: "Trend pullback holding slow EMA", stop: c.emaSlow + 0.1*c.atr}
	}
	return nil
}

// guardAsiaBreakout: continuation in the direction of a fresh Asia-range
// breakout.
func guardAsiaBreakout(c *barContext) *candidate {
	st := c.st
	if !st.asiaBreakoutActive(c.i) || st.AsiaHigh <= st.AsiaLow {
		return nil
	}
	mid := (st.AsiaHigh + st.AsiaLow) / 2

	if st.AsiaBreakoutDir == DirectionBuy && c.bar.Close > st.AsiaHigh {
		return &candidate{direction: DirectionBuy, basis: "Asia range breakout continuation up", stop: mid}
	}
	if st.AsiaBreakoutDir == DirectionSell && c.bar.Close < st.AsiaLow {
		return &candidate{direction: DirectionSell, basis: "Asia range breakout continuation down", stop: mid}
	}
	return nil
}

// guardEquilibriumFade: bias-directional entry at range equilibrium. On the
// hard-disabled list.
func guardEquilibriumFade(c *barContext) *candidate {
	dir := biasDirection(c.bias)
	if dir == "" || c.atr <= 0 {
		return nil
	}
	diff := c.price - c.localRange.Equilibrium
	if diff < 0 {
		diff = -diff
	}
	if diff > 0.2*c.atr {
		return nil
	}

	if dir == DirectionBuy {
		return &candidate{direction: dir, basis: "Equilibrium fade with bias", stop: c.price - c.atr}
	}
	return &candidate{direction: dir, basis: "Equilibrium fade with bias", stop: c.price + c.atr}
}

// guardSessionOpenFade: fade of a stretched move away from the session open.
// On the hard-disabled list.
func guardSessionOpenFade(c *barContext) *candidate {
	open, ok := c.st.SessionOpens[c.session]
	if !ok || c.atr <= 0 {
		return nil
	}

	if c.price > open+2*c.atr {
		return &candidate{direction: DirectionSell, basis: "Fade of stretch above session open", stop: c.bar.High + 0.1*c.atr}
	}
	if c.price < open-2*c.atr {
		return &candidate{direction: DirectionBuy, basis: "Fade of stretch below session open", stop: c.bar.Low - 0.1*c.atr}
	}
	return nil
}

// guardDojiReversal: indecision bar against the prior move. On the
// hard-disabled list.
func guardDojiReversal(c *barContext) *candidate {
	if c.atr <= 0 || c.bar.Range() < c.atr || c.bar.Body() > 0.1*c.bar.Range() {
		return nil
	}

	if c.prev.IsBearish() {
		return &candidate{direction: DirectionBuy, basis: "Doji after down move", stop: c.bar.Low - 0.1*c.atr}
	}
	if c.prev.IsBullish() {
		return &candidate{direction: DirectionSell, basis: "Doji after up move", stop: c.bar.High + 0.1*c.atr}
	}
	return nil
}

// guardVolumeSpikeFade: fade of a climactic volume bar. On the hard-disabled
// list.
func guardVolumeSpikeFade(c *barContext) *candidate {
	if c.i < 20 {
		return nil
	}
	var avg float64
	for j := c.i - 20; j < c.i; j++ {
		avg += c.env.candles[j].Volume
	}
	avg /= 20
	if avg <= 0 || c.bar.Volume < 2*avg {
		return nil
	}

	if c.bar.IsBullish() {
		return &candidate{direction: DirectionSell, basis: "Fade of climactic volume spike up", stop: c.bar.High + 0.1*c.atr}
	}
	if c.bar.IsBearish() {
		return &candidate{direction: DirectionBuy, basis: "Fade of climactic volume spike down", stop: c.bar.Low - 0.1*c.atr}
	}
	return nil
}
