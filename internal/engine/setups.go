package engine

// SetupKind enumerates every rule the engine evaluates. The set is closed:
// adding a setup means adding a table entry, not another branch.
type SetupKind string

const (
	SetupZoneTap         SetupKind = "zone_tap"
	SetupOTERetracement  SetupKind = "ote_retracement"
	SetupPDArraySweep    SetupKind = "pd_array_sweep"
	SetupBreakerRetest   SetupKind = "breaker_retest"
	SetupSweepCHoCH      SetupKind = "sweep_choch"
	SetupEMAPullback     SetupKind = "ema_pullback"
	SetupSilverBullet    SetupKind = "silver_bullet"
	SetupTurtleSoup      SetupKind = "turtle_soup"
	SetupPowerOfThree    SetupKind = "power_of_three"
	SetupJudasSwing      SetupKind = "judas_swing"
	SetupInversionFVG    SetupKind = "inversion_fvg"
	SetupMomentum        SetupKind = "momentum"
	SetupMeanReversion   SetupKind = "mean_reversion"
	SetupRangeBreakout   SetupKind = "range_breakout"
	SetupEngulfingShift  SetupKind = "engulfing_shift"
	SetupPullback        SetupKind = "pullback"
	SetupAsiaBreakout    SetupKind = "asia_breakout"
	SetupEquilibriumFade SetupKind = "equilibrium_fade"
	SetupSessionOpenFade SetupKind = "session_open_fade"
	SetupDojiReversal    SetupKind = "doji_reversal"
	SetupVolumeSpikeFade SetupKind = "volume_spike_fade"
	SetupModel2022       SetupKind = "model_2022"
)

// tierOne setups carry the highest conviction: tight target ladder
// (1.5R/3R/4.5R/6R), narrower size clamp and the kill-zone sweep rule.
var tierOne = map[SetupKind]bool{
	SetupOTERetracement: true,
	SetupPDArraySweep:   true,
	SetupSilverBullet:   true,
	SetupJudasSwing:     true,
	SetupPowerOfThree:   true,
	SetupModel2022:      true,
}

// lowConfluence setups must have bias-directional support regardless of
// tier, and run under the tighter ATR risk cap.
var lowConfluence = map[SetupKind]bool{
	SetupMomentum:       true,
	SetupMeanReversion:  true,
	SetupRangeBreakout:  true,
	SetupEngulfingShift: true,
}

// hardDisabled setups are evaluated but never admitted.
var hardDisabled = map[SetupKind]bool{
	SetupEquilibriumFade: true,
	SetupSessionOpenFade: true,
	SetupDojiReversal:    true,
	SetupVolumeSpikeFade: true,
}

// setupPriority orders setups for the direction-flip guard. A setup absent
// from the map (EngulfingShift among them) defaults to the lowest priority.
var setupPriority = map[SetupKind]int{
	SetupSilverBullet:   9,
	SetupModel2022:      9,
	SetupOTERetracement: 8,
	SetupPDArraySweep:   8,
	SetupJudasSwing:     7,
	SetupPowerOfThree:   7,
	SetupBreakerRetest:  6,
	SetupSweepCHoCH:     6,
	SetupTurtleSoup:     5,
	SetupInversionFVG:   5,
	SetupZoneTap:        4,
	SetupAsiaBreakout:   4,
	SetupEMAPullback:    3,
	SetupPullback:       2,
	SetupRangeBreakout:  2,
	SetupMomentum:       1,
	SetupMeanReversion:  1,
}

func priorityOf(kind SetupKind) int {
	return setupPriority[kind]
}

// candidate is a rule's unadmitted proposal. Targets are optional; the
// admission pipeline synthesizes a ladder when a rule leaves them zero.
type candidate struct {
	setup     SetupKind
	direction Direction
	basis     string
	stop      float64
	tp1       float64
	tp2       float64
	tp3       float64
	tp4       float64
}

// setupRule pairs a kind with its guard. A guard returns nil when the setup
// does not apply at this bar.
type setupRule struct {
	kind  SetupKind
	guard func(c *barContext) *candidate
}

// ruleTable lists every rule in evaluation order. The engine walks the table
// per bar and routes each produced candidate through the one shared
// admission pipeline; no rule bypasses it.
func ruleTable() []setupRule {
	// Model2022 is not listed: its candidates come from the 15-minute
	// sub-detector and enter the same admission pipeline separately.
	return []setupRule{
		{SetupSilverBullet, guardSilverBullet},
		{SetupOTERetracement, guardOTERetracement},
		{SetupPDArraySweep, guardPDArraySweep},
		{SetupJudasSwing, guardJudasSwing},
		{SetupPowerOfThree, guardPowerOfThree},
		{SetupBreakerRetest, guardBreakerRetest},
		{SetupSweepCHoCH, guardSweepCHoCH},
		{SetupTurtleSoup, guardTurtleSoup},
		{SetupInversionFVG, guardInversionFVG},
		{SetupZoneTap, guardZoneTap},
		{SetupAsiaBreakout, guardAsiaBreakout},
		{SetupEMAPullback, guardEMAPullback},
		{SetupPullback, guardPullback},
		{SetupRangeBreakout, guardRangeBreakout},
		{SetupEngulfingShift, guardEngulfingShift},
		{SetupMomentum, guardMomentum},
		{SetupMeanReversion, guardMeanReversion},
		{SetupEquilibriumFade, guardEquilibriumFade},
		{SetupSessionOpenFade, guardSessionOpenFade},
		{SetupDojiReversal, guardDojiReversal},
		{SetupVolumeSpikeFade, guardVolumeSpikeFade},
	}
}
