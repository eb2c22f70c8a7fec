package engine

import (
	"smc-engine/internal/market"
	"smc-engine/internal/structure"
	"smc-engine/internal/zones"
)

const (
	swingLookback = 5
	atrPeriod     = 14
	emaFastPeriod = 34
	emaSlowPeriod = 89
	localRangeLen = 60
)

// Analysis bundles every detector output over a candle history. It is what
// the display and API layers consume directly.
type Analysis struct {
	Bias        structure.Bias             `json:"bias"`
	Swings      []structure.Swing          `json:"swings"`
	Shifts      []structure.StructureShift `json:"shifts"`
	Gaps        []zones.Gap                `json:"gaps"`
	OrderBlocks []zones.OrderBlock         `json:"orderBlocks"`
	Breakers    []zones.BreakerBlock       `json:"breakers"`
	Sweeps      []zones.LiquiditySweep     `json:"sweeps"`
	Range       zones.PremiumDiscountRange `json:"range"`
	HTF         zones.HTFLevels            `json:"htf"`
}

// Analyze runs every detector over the full history. Pure; never errors on
// short input; detectors degrade to empty results.
func Analyze(candles []market.Candle) Analysis {
	swings := structure.DetectSwings(candles, swingLookback)
	obs := zones.DetectOrderBlocks(candles, 5)
	atr := market.CalculateATR(candles, atrPeriod)

	return Analysis{
		Bias:        structure.ComputeBias(candles),
		Swings:      swings,
		Shifts:      structure.DetectStructureShifts(candles, swings, atr, structure.DefaultShiftOptions()),
		Gaps:        zones.DetectFVGs(candles),
		OrderBlocks: obs,
		Breakers:    zones.DetectBreakerBlocks(obs, candles),
		Sweeps:      zones.DetectLiquiditySweeps(candles, 0.0005, 3),
		Range:       zones.ComputePremiumDiscountRange(candles),
		HTF:         zones.ComputeHTFLevels(candles),
	}
}

// scanEnv holds everything precomputed once per engine pass: detector
// outputs, rolling series and time-to-index mappings.
type scanEnv struct {
	candles   []market.Candle
	analysis  Analysis
	atrs      []float64
	emaFast   []float64
	emaSlow   []float64
	gapFills  []int // first bar index filling each gap, -1 if never
	shiftBars []int // bar index of each structure shift
	timeIdx   map[int64]int
}

func newScanEnv(candles []market.Candle) *scanEnv {
	env := &scanEnv{
		candles:  candles,
		analysis: Analyze(candles),
		atrs:     atrSeries(candles, atrPeriod),
		emaFast:  emaSeries(candles, emaFastPeriod),
		emaSlow:  emaSeries(candles, emaSlowPeriod),
		timeIdx:  make(map[int64]int, len(candles)),
	}
	for i, c := range candles {
		env.timeIdx[c.OpenTime] = i
	}

	env.gapFills = make([]int, len(env.analysis.Gaps))
	for gi, g := range env.analysis.Gaps {
		env.gapFills[gi] = -1
		for i := g.EndIndex + 1; i < len(candles); i++ {
			if candles[i].Low <= g.ZoneHigh() && candles[i].High >= g.ZoneLow() {
				env.gapFills[gi] = i
				break
			}
		}
	}

	env.shiftBars = make([]int, len(env.analysis.Shifts))
	for si, sh := range env.analysis.Shifts {
		if idx, ok := env.timeIdx[sh.Time]; ok {
			env.shiftBars[si] = idx
		} else {
			env.shiftBars[si] = -1
		}
	}

	return env
}

// atrSeries computes the rolling ATR for every index; entries before the
// warmup window are zero.
func atrSeries(candles []market.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	for i := period; i < len(candles); i++ {
		out[i] = market.CalculateATR(candles[:i+1], period)
	}
	return out
}

// emaSeries computes the rolling EMA of closes for every index, seeded with
// an SMA over the first period bars.
func emaSeries(candles []market.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	if len(candles) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close * multiplier) + (ema * (1 - multiplier))
		out[i] = ema
	}
	return out
}

// barContext is the per-bar view every setup guard evaluates against.
type barContext struct {
	i       int
	bar     market.Candle
	prev    market.Candle
	price   float64
	hour    int
	day     string
	session string
	inKill  bool

	atr     float64
	emaFast float64
	emaSlow float64

	bias        structure.BiasLabel
	localRange  zones.PremiumDiscountRange
	weeklyRange zones.PremiumDiscountRange
	htf         zones.HTFLevels

	env *scanEnv
	st  *ScanState
}

func (c *barContext) biasSupports(dir Direction) bool {
	return (dir == DirectionBuy && c.bias == structure.BiasBullish) ||
		(dir == DirectionSell && c.bias == structure.BiasBearish)
}

// Price within this fraction of a level counts as sitting at it.
const levelProximityTolerance = 0.0005

// nearTrackedLevel reports whether price sits at one of the tracked
// higher-timeframe levels: the prior day or week extremes, or the local or
// weekly equilibrium. Unset levels never match.
func (c *barContext) nearTrackedLevel() bool {
	levels := []float64{
		c.htf.PrevDayHigh, c.htf.PrevDayLow,
		c.htf.PrevWeekHigh, c.htf.PrevWeekLow,
		c.localRange.Equilibrium, c.weeklyRange.Equilibrium,
	}
	for _, lvl := range levels {
		if zones.NearLevel(c.price, lvl, levelProximityTolerance) {
			return true
		}
	}
	return false
}

// momentumSupports reports EMA(34/89) alignment with the direction.
func (c *barContext) momentumSupports(dir Direction) bool {
	if c.emaFast == 0 || c.emaSlow == 0 {
		return false
	}
	if dir == DirectionBuy {
		return c.emaFast > c.emaSlow
	}
	return c.emaFast < c.emaSlow
}

// supportiveSweep finds a recent sweep on the side a trade in dir would
// exploit: a buy wants lows taken out first, a sell wants highs.
func (c *barContext) supportiveSweep(dir Direction, within int) *zones.LiquiditySweep {
	want := zones.SweepDown
	if dir == DirectionSell {
		want = zones.SweepUp
	}
	for si := len(c.env.analysis.Sweeps) - 1; si >= 0; si-- {
		sw := c.env.analysis.Sweeps[si]
		if sw.Index > c.i || sw.Index < c.i-within {
			continue
		}
		if sw.Direction == want {
			return &c.env.analysis.Sweeps[si]
		}
	}
	return nil
}

// recentShift finds the latest structure shift matching label and direction
// within the lookback, considering only shifts at or before this bar.
func (c *barContext) recentShift(label structure.ShiftLabel, dir structure.ShiftDirection, within int) *structure.StructureShift {
	for si := len(c.env.analysis.Shifts) - 1; si >= 0; si-- {
		bar := c.env.shiftBars[si]
		if bar < 0 || bar > c.i || bar < c.i-within {
			continue
		}
		sh := &c.env.analysis.Shifts[si]
		if sh.Label == label && sh.Direction == dir {
			return sh
		}
	}
	return nil
}

// recentShiftDir finds the latest shift in a direction regardless of label.
func (c *barContext) recentShiftDir(dir structure.ShiftDirection, within int) *structure.StructureShift {
	for si := len(c.env.analysis.Shifts) - 1; si >= 0; si-- {
		bar := c.env.shiftBars[si]
		if bar < 0 || bar > c.i || bar < c.i-within {
			continue
		}
		if sh := &c.env.analysis.Shifts[si]; sh.Direction == dir {
			return sh
		}
	}
	return nil
}

// lastSwing returns the most recent swing of a type before this bar.
func (c *barContext) lastSwing(t structure.SwingType) *structure.Swing {
	for si := len(c.env.analysis.Swings) - 1; si >= 0; si-- {
		s := &c.env.analysis.Swings[si]
		if s.Index < c.i && s.Type == t {
			return s
		}
	}
	return nil
}

// unfilledGapAt returns a gap of the given type containing price that is
// still unfilled as of this bar.
func (c *barContext) unfilledGapAt(price float64, gapType zones.GapType) *zones.Gap {
	for gi := len(c.env.analysis.Gaps) - 1; gi >= 0; gi-- {
		g := &c.env.analysis.Gaps[gi]
		if g.Type != gapType || g.EndIndex >= c.i {
			continue
		}
		if fill := c.env.gapFills[gi]; fill >= 0 && fill < c.i {
			continue
		}
		if price >= g.ZoneLow() && price <= g.ZoneHigh() {
			return g
		}
	}
	return nil
}

// invertedGapAt returns a gap of the given type that has been filled before
// this bar and whose zone contains price (the inversion retest).
func (c *barContext) invertedGapAt(price float64, gapType zones.GapType) *zones.Gap {
	for gi := len(c.env.analysis.Gaps) - 1; gi >= 0; gi-- {
		g := &c.env.analysis.Gaps[gi]
		if g.Type != gapType || g.EndIndex >= c.i {
			continue
		}
		fill := c.env.gapFills[gi]
		if fill < 0 || fill >= c.i {
			continue
		}
		if price >= g.ZoneLow() && price <= g.ZoneHigh() {
			return g
		}
	}
	return nil
}

// orderBlockAt returns an order block of the given type containing price,
// formed strictly before this bar.
func (c *barContext) orderBlockAt(price float64, obType zones.OrderBlockType) *zones.OrderBlock {
	for oi := len(c.env.analysis.OrderBlocks) - 1; oi >= 0; oi-- {
		ob := &c.env.analysis.OrderBlocks[oi]
		if ob.Type != obType || ob.EndIndex >= c.i {
			continue
		}
		if price >= ob.Low && price <= ob.High {
			return ob
		}
	}
	return nil
}

// breakerAt returns a breaker block of the given type containing price,
// invalidated strictly before this bar.
func (c *barContext) breakerAt(price float64, bType zones.OrderBlockType) *zones.BreakerBlock {
	for bi := len(c.env.analysis.Breakers) - 1; bi >= 0; bi-- {
		br := &c.env.analysis.Breakers[bi]
		if br.Type != bType {
			continue
		}
		if idx, ok := c.env.timeIdx[br.EndTime]; !ok || idx >= c.i {
			continue
		}
		if price >= br.Low && price <= br.High {
			return br
		}
	}
	return nil
}

// nearestSwingBelow returns the highest swing-low price under price, or 0.
func (c *barContext) nearestSwingBelow(price float64) float64 {
	best := 0.0
	for _, s := range c.env.analysis.Swings {
		if s.Index >= c.i || s.Type != structure.SwingLow {
			continue
		}
		if s.Price < price && s.Price > best {
			best = s.Price
		}
	}
	return best
}

// nearestSwingAbove returns the lowest swing-high price over price, or 0.
func (c *barContext) nearestSwingAbove(price float64) float64 {
	best := 0.0
	for _, s := range c.env.analysis.Swings {
		if s.Index >= c.i || s.Type != structure.SwingHigh {
			continue
		}
		if s.Price > price && (best == 0 || s.Price < best) {
			best = s.Price
		}
	}
	return best
}

// priorExtremes returns the high and low over the n bars before this one.
func (c *barContext) priorExtremes(n int) (float64, float64) {
	start := c.i - n
	if start < 0 {
		start = 0
	}
	window := c.env.candles[start:c.i]
	return market.HighestHigh(window), market.LowestLow(window)
}
