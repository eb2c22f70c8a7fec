package engine

import (
	"github.com/rs/zerolog"

	"smc-engine/internal/market"
	"smc-engine/internal/weights"
	"smc-engine/internal/zones"
)

// Config tunes an engine instance. Zero values give the built-in session
// table, a neutral size multiplier and no display truncation.
type Config struct {
	Sessions                []market.SessionZone
	EnableSessionOpenFilter bool
	SizeMultiplier          float64
	MaxSignals              int
}

// Engine produces admitted signals from candle history in a single strictly
// time-ordered forward pass. Re-running on a superset of candles is a full
// recompute: cooldown and cap state always rebuilds from the first bar.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates an engine.
func New(cfg Config, logger zerolog.Logger) *Engine {
	if len(cfg.Sessions) == 0 {
		cfg.Sessions = market.DefaultSessions()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Run executes the signal pass. The weights table is read once and never
// mutated. Output may be truncated to the configured maximum for display;
// the full pass always executes so internal state stays correct.
func (e *Engine) Run(candles []market.Candle, w weights.SetupWeights) []Signal {
	if len(candles) < 2 {
		return nil
	}

	env := newScanEnv(candles)
	st := newScanState()
	rules := ruleTable()
	subDetector := model2022Events(candles)

	var signals []Signal
	var htf zones.HTFLevels
	var weekly zones.PremiumDiscountRange
	htfDay := ""

	for i := 1; i < len(candles); i++ {
		bar := candles[i]
		t := bar.Time()
		day := bar.DayKey()

		// Higher-timeframe levels only change on a day boundary.
		if day != htfDay {
			htfDay = day
			htf = zones.ComputeHTFLevels(candles[:i+1])
			weekly = zones.PremiumDiscountRange{
				High:        htf.PrevWeekHigh,
				Low:         htf.PrevWeekLow,
				Equilibrium: (htf.PrevWeekHigh + htf.PrevWeekLow) / 2,
			}
		}

		session, kill := market.SessionFor(e.cfg.Sessions, t.Hour())

		start := i - localRangeLen
		if start < 0 {
			start = 0
		}

		c := &barContext{
			i:           i,
			bar:         bar,
			prev:        candles[i-1],
			price:       bar.Close,
			hour:        t.Hour(),
			day:         day,
			session:     session,
			inKill:      kill,
			atr:         env.atrs[i],
			emaFast:     env.emaFast[i],
			emaSlow:     env.emaSlow[i],
			localRange:  zones.ComputePremiumDiscountRange(candles[start:i]),
			weeklyRange: weekly,
			htf:         htf,
			env:         env,
			st:          st,
		}

		st.observe(c)
		c.bias = st.days.label()

		admitted := false

		// The 15-minute sub-detector submits first; it shares the same
		// admission choke point as every table rule.
		for _, cand := range subDetector[i] {
			if sig, ok := e.admit(cand, c, w); ok {
				signals = append(signals, sig)
				admitted = true
				break
			}
		}

		if !admitted {
			for _, rule := range rules {
				cand := rule.guard(c)
				if cand == nil {
					continue
				}
				cand.setup = rule.kind
				if sig, ok := e.admit(cand, c, w); ok {
					signals = append(signals, sig)
					break
				}
			}
		}
	}

	e.logger.Debug().
		Int("bars", len(candles)).
		Int("signals", len(signals)).
		Msg("Signal pass complete")

	// Display truncation is a post-processing slice, never an early exit.
	if e.cfg.MaxSignals > 0 && len(signals) > e.cfg.MaxSignals {
		signals = signals[len(signals)-e.cfg.MaxSignals:]
	}
	return signals
}
