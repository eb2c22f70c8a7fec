package weights

import "context"

// SetupWeight is the adaptive record for a single setup.
type SetupWeight struct {
	WinRate        float64 `json:"win_rate"`
	TotalTrades    int     `json:"total_trades"`
	Allowed        bool    `json:"allowed"`
	SizeMultiplier float64 `json:"size_multiplier"`
}

// SetupWeights maps setup name to its adaptive record. The engine reads the
// table once per invocation and never mutates it.
type SetupWeights map[string]SetupWeight

// Get returns the weight for a setup. A missing entry defaults to allowed
// with a 1.0 multiplier so an absent record never blocks the pipeline.
func (w SetupWeights) Get(setup string) SetupWeight {
	if w != nil {
		if sw, ok := w[setup]; ok {
			return sw
		}
	}
	return SetupWeight{Allowed: true, SizeMultiplier: 1}
}

// Provider is the adaptive weights port; resolved by the caller before an
// engine invocation.
type Provider interface {
	GetOptimizationParams(ctx context.Context) (SetupWeights, error)
}

// Static is a fixed in-memory Provider, used in tests and when no store is
// configured.
type Static SetupWeights

// GetOptimizationParams implements Provider.
func (s Static) GetOptimizationParams(_ context.Context) (SetupWeights, error) {
	return SetupWeights(s), nil
}

// Disablement thresholds: a setup is only shut off once it has a meaningful
// sample and a losing record.
const (
	minTradesForDisable = 5
	disableWinRate      = 45.0
)

// Outcome is a closed-trade result as reported by the simulator.
type Outcome struct {
	Setup     string
	Session   string
	Bias      string
	Result    string // "win" or "loss"
	RMultiple float64
}

// FromOutcomes folds recorded outcomes into a weights table. Win rate is in
// percent. A setup with at least 5 trades and a win rate below 45% is
// disallowed; fewer than 5 trades is never enough to disable. The size
// multiplier scales with win rate: 60%+ earns 1.25, under 40% (but still
// allowed) drops to 0.75.
func FromOutcomes(outcomes []Outcome) SetupWeights {
	type tally struct {
		wins  int
		total int
	}
	tallies := make(map[string]*tally)

	for _, o := range outcomes {
		t := tallies[o.Setup]
		if t == nil {
			t = &tally{}
			tallies[o.Setup] = t
		}
		t.total++
		if o.Result == "win" {
			t.wins++
		}
	}

	out := make(SetupWeights, len(tallies))
	for setup, t := range tallies {
		winRate := float64(t.wins) / float64(t.total) * 100

		sw := SetupWeight{
			WinRate:        winRate,
			TotalTrades:    t.total,
			Allowed:        true,
			SizeMultiplier: 1,
		}
		if t.total >= minTradesForDisable && winRate < disableWinRate {
			sw.Allowed = false
		}
		switch {
		case winRate >= 60:
			sw.SizeMultiplier = 1.25
		case winRate < 40:
			sw.SizeMultiplier = 0.75
		}
		out[setup] = sw
	}

	return out
}
