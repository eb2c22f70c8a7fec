package engine

import (
	"smc-engine/internal/market"
	"smc-engine/internal/structure"
)

// biasFreezeDuration is how long new admissions stay frozen after the
// running daily bias flips intraday.
const biasFreezeDuration = int64(3 * 60 * 60 * 1000)

// ScanState is the explicit per-pass state threaded through the bar loop.
// Re-running the engine on a superset of candles recomputes all of this from
// the start; the pass is a full recompute, not an incremental stream.
type ScanState struct {
	LastSignalBar   int
	LastSignal      *Signal
	LastSetupBar    map[SetupKind]int
	DayCount        map[string]int
	DaySessionCount map[string]int
	BiasFreezeUntil int64

	SessionOpens   map[string]float64
	sessionOpenDay string

	AsiaDay         string
	AsiaHigh        float64
	AsiaLow         float64
	AsiaSweptLow    bool
	AsiaSweptHigh   bool
	AsiaBreakoutDir Direction
	AsiaBreakoutBar int

	prevBias structure.BiasLabel
	days     dayTracker
}

func newScanState() *ScanState {
	return &ScanState{
		LastSignalBar:   -1 << 30,
		LastSetupBar:    make(map[SetupKind]int),
		DayCount:        make(map[string]int),
		DaySessionCount: make(map[string]int),
		SessionOpens:    make(map[string]float64),
		AsiaBreakoutBar: -1,
	}
}

// observe updates the running state for a bar before any rule fires:
// day-bias flip detection, session-open tracking and the Asia accumulation
// range with its breakout flags.
func (st *ScanState) observe(c *barContext) {
	st.days.update(c.bar)

	// Intraday bias flip freezes new admissions for three hours.
	label := st.days.label()
	if (st.prevBias == structure.BiasBullish && label == structure.BiasBearish) ||
		(st.prevBias == structure.BiasBearish && label == structure.BiasBullish) {
		st.BiasFreezeUntil = c.bar.OpenTime + biasFreezeDuration
	}
	if label != structure.BiasNeutral {
		st.prevBias = label
	}

	// Session opens reset each day; first bar of each session records it.
	if st.sessionOpenDay != c.day {
		st.sessionOpenDay = c.day
		st.SessionOpens = make(map[string]float64)
	}
	if _, ok := st.SessionOpens[c.session]; !ok {
		st.SessionOpens[c.session] = c.bar.Open
	}

	// Asia accumulation range.
	if c.session == market.SessionAsia {
		if st.AsiaDay != c.day {
			st.AsiaDay = c.day
			st.AsiaHigh = c.bar.High
			st.AsiaLow = c.bar.Low
			st.AsiaSweptLow = false
			st.AsiaSweptHigh = false
			st.AsiaBreakoutBar = -1
		} else {
			if c.bar.High > st.AsiaHigh {
				st.AsiaHigh = c.bar.High
			}
			if c.bar.Low < st.AsiaLow {
				st.AsiaLow = c.bar.Low
			}
		}
		return
	}

	// Outside Asia: watch the range for sweeps and breakouts.
	if st.AsiaDay != c.day || st.AsiaHigh == 0 {
		return
	}
	if c.bar.Low < st.AsiaLow {
		st.AsiaSweptLow = true
	}
	if c.bar.High > st.AsiaHigh {
		st.AsiaSweptHigh = true
	}
	if c.bar.Close > st.AsiaHigh {
		st.AsiaBreakoutDir = DirectionBuy
		st.AsiaBreakoutBar = c.i
	} else if c.bar.Close < st.AsiaLow {
		st.AsiaBreakoutDir = DirectionSell
		st.AsiaBreakoutBar = c.i
	}
}

// asiaBreakoutActive reports a breakout of the Asia range within the last
// few bars.
func (st *ScanState) asiaBreakoutActive(i int) bool {
	return st.AsiaBreakoutBar >= 0 && i-st.AsiaBreakoutBar <= 5
}

// dayTracker maintains running day aggregates so the per-bar daily bias can
// be derived without regrouping history on every bar.
type dayTracker struct {
	day        string
	open       float64
	high       float64
	low        float64
	close      float64
	priorHigh  float64
	priorLow   float64
	priorClose float64
	havePrior  bool
}

func (d *dayTracker) update(c market.Candle) {
	key := c.DayKey()
	if key != d.day {
		if d.day != "" {
			d.priorHigh = d.high
			d.priorLow = d.low
			d.priorClose = d.close
			d.havePrior = true
		}
		d.day = key
		d.open = c.Open
		d.high = c.High
		d.low = c.Low
	}
	if c.High > d.high {
		d.high = c.High
	}
	if c.Low < d.low {
		d.low = c.Low
	}
	d.close = c.Close
}

// label applies the daily comparison rule to the running aggregates.
func (d *dayTracker) label() structure.BiasLabel {
	if !d.havePrior {
		return structure.BiasNeutral
	}
	if d.close > d.open && d.close > d.priorClose && d.high >= d.priorHigh {
		return structure.BiasBullish
	}
	if d.close < d.open && d.close < d.priorClose && d.low <= d.priorLow {
		return structure.BiasBearish
	}
	return structure.BiasNeutral
}
