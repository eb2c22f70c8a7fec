package simulator

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"smc-engine/internal/market"
	"smc-engine/internal/weights"
)

const hourMs = int64(60 * 60 * 1000)

func bar(i int, o, h, l, c float64) market.Candle {
	return market.Candle{OpenTime: int64(i) * hourMs, Open: o, High: h, Low: l, Close: c}
}

// TestNewTradeRisk tests risk derivation from entry and stop
func TestNewTradeRisk(t *testing.T) {
	buy := NewTrade(DirectionBuy, 100, 98, 106, 1)
	if buy.Risk != 2 {
		t.Errorf("Buy risk = %v, want 2", buy.Risk)
	}
	if buy.Status != StatusPlanned {
		t.Error("New trade should start planned")
	}
	if buy.ID == "" {
		t.Error("New trade should get an ID")
	}

	sell := NewTrade(DirectionSell, 100, 103, 94, 1)
	if sell.Risk != 3 {
		t.Errorf("Sell risk = %v, want 3", sell.Risk)
	}

	stopless := NewTrade(DirectionBuy, 100, 0, 106, 1)
	if stopless.Risk != 0 {
		t.Error("Trade without stop should have zero risk")
	}
}

// TestFillOnBracket tests entry-touch activation
func TestFillOnBracket(t *testing.T) {
	tr := NewTrade(DirectionBuy, 100, 98, 106, 1)

	// Bar never reaches the entry: stays planned.
	next := AdvanceTrade(tr, bar(1, 102, 103, 101, 102.5), 1)
	if next.Status != StatusPlanned {
		t.Error("Trade should stay planned until price brackets the entry")
	}

	// Bar brackets the entry: fills, records the bar time.
	filled := AdvanceTrade(tr, bar(2, 101, 102, 99.5, 100.5), 1)
	if filled.Status != StatusActive {
		t.Fatal("Trade should fill when the bar brackets the entry")
	}
	if filled.EntryBar != 2*hourMs {
		t.Errorf("EntryBar = %d, want the filling bar's open time", filled.EntryBar)
	}
}

// TestNoResolutionOnEntryBar tests that the fill bar cannot also close the trade
func TestNoResolutionOnEntryBar(t *testing.T) {
	tr := NewTrade(DirectionBuy, 100, 98, 106, 1)
	entryBar := bar(2, 101, 107, 97, 100.5) // brackets entry, stop and target

	filled := AdvanceTrade(tr, entryBar, 1)
	if filled.Status != StatusActive {
		t.Fatal("Trade should fill")
	}

	// Re-advancing on the same bar must not resolve.
	same := AdvanceTrade(filled, entryBar, 1)
	if same.Status != StatusActive {
		t.Error("Entry bar should never resolve the trade")
	}
}

// TestStopAndTargetResolution tests simple win and loss closes
func TestStopAndTargetResolution(t *testing.T) {
	tr := NewTrade(DirectionBuy, 100, 98, 106, 2)
	tr.Manual = true // no partial plan: simple resolution
	tr = AdvanceTrade(tr, bar(1, 100.5, 101, 99.5, 100.2), 1)
	if tr.Status != StatusActive {
		t.Fatal("Trade should be active")
	}

	// Loss: bar trades through the stop.
	lost := AdvanceTrade(tr, bar(2, 99.5, 99.8, 97.5, 97.8), 1)
	if lost.Status != StatusClosed || lost.Result != ResultLoss {
		t.Fatalf("Trade should close as loss, got %+v", lost)
	}
	// Full position, 2 points against, size 2.
	if lost.PnL != -4 {
		t.Errorf("Loss PnL = %v, want -4", lost.PnL)
	}
	if lost.RMultiple() != -1 {
		t.Errorf("Loss R = %v, want -1", lost.RMultiple())
	}

	// Win on the other branch.
	won := AdvanceTrade(tr, bar(2, 104, 106.5, 103.5, 106.2), 1)
	if won.Status != StatusClosed || won.Result != ResultWin {
		t.Fatalf("Trade should close as win, got %+v", won)
	}
	if won.PnL != 12 {
		t.Errorf("Win PnL = %v, want 12", won.PnL)
	}
	if won.RMultiple() != 3 {
		t.Errorf("Win R = %v, want 3", won.RMultiple())
	}
}

// TestSameBarTieBreak tests the open-distance rule when one bar spans both
func TestSameBarTieBreak(t *testing.T) {
	tr := NewTrade(DirectionBuy, 100, 98, 106, 1)
	tr.Manual = true
	tr = AdvanceTrade(tr, bar(1, 100.5, 101, 99.5, 100.2), 1)

	// Open at 99: nearer the stop, resolves as loss.
	both := bar(2, 99, 107, 97, 105)
	lost := AdvanceTrade(tr, both, 1)
	if lost.Result != ResultLoss {
		t.Errorf("Open nearer the stop should resolve loss, got %s", lost.Result)
	}

	// Open at 105.5: nearer the target, resolves as win.
	won := AdvanceTrade(tr, bar(2, 105.5, 107, 97, 105), 1)
	if won.Result != ResultWin {
		t.Errorf("Open nearer the target should resolve win, got %s", won.Result)
	}

	// Equidistant open goes to the stop.
	equal := AdvanceTrade(tr, bar(2, 102, 107, 97, 105), 1)
	if equal.Result != ResultLoss {
		t.Errorf("Equidistant open should favor the stop, got %s", equal.Result)
	}
}

// TestPartialThenBreakeven tests the partial exit moving the stop to entry
func TestPartialThenBreakeven(t *testing.T) {
	tr := NewTrade(DirectionBuy, 100, 98, 112, 2)
	tr.PartialTarget = 103
	tr.PartialFraction = 0.5
	tr = AdvanceTrade(tr, bar(1, 100.5, 101, 99.5, 100.2), 0)

	// Partial level touched: half realized, stop to entry.
	after := AdvanceTrade(tr, bar(2, 101, 103.5, 100.5, 103), 0)
	if after.Status != StatusActive {
		t.Fatalf("Partial should not close the trade, got %s", after.Status)
	}
	if !after.PartialHit || !after.BreakevenTriggered {
		t.Error("Partial should be marked and breakeven triggered")
	}
	// 0.5 fraction, 3 points, size 2.
	if after.PartialRealized != 3 {
		t.Errorf("Partial realized = %v, want 3", after.PartialRealized)
	}
	if after.Stop != 100 {
		t.Errorf("Stop should move to entry, got %v", after.Stop)
	}

	// Retrace to entry closes the remainder flat: PnL is the partial alone.
	closed := AdvanceTrade(after, bar(3, 101, 101.5, 99.8, 100.1), 0)
	if closed.Status != StatusClosed {
		t.Fatal("Breakeven stop should close the trade")
	}
	if closed.PnL != 3 {
		t.Errorf("PnL = %v, want the realized partial only", closed.PnL)
	}
}

// TestBreakevenTrigger tests the favorable-excursion stop move without a partial
func TestBreakevenTrigger(t *testing.T) {
	tr := NewTrade(DirectionBuy, 100, 98, 110, 1) // risk 2, trigger at 103
	tr = AdvanceTrade(tr, bar(1, 100.5, 101, 99.5, 100.2), 0)

	moved := AdvanceTrade(tr, bar(2, 101, 103.2, 100.8, 102.9), 0)
	if !moved.BreakevenTriggered {
		t.Fatal("1.5R excursion should trigger breakeven")
	}
	if moved.Stop != 100 {
		t.Errorf("Stop = %v, want entry 100", moved.Stop)
	}

	// Short of the trigger the stop stays put.
	flat := AdvanceTrade(tr, bar(2, 101, 102.5, 100.8, 102), 0)
	if flat.BreakevenTriggered || flat.Stop != 98 {
		t.Error("Sub-threshold excursion should leave the stop alone")
	}
}

// TestTrailingStopMonotonic tests that the trail only tightens
func TestTrailingStopMonotonic(t *testing.T) {
	tr := NewTrade(DirectionBuy, 100, 98, 120, 1)
	tr = AdvanceTrade(tr, bar(1, 100.5, 101, 99.5, 100.2), 0)

	// Breakeven then trail behind the close at half the ATR of 2.
	tr = AdvanceTrade(tr, bar(2, 102, 104, 101.5, 103.8), 2)
	if tr.Stop != 102.8 {
		t.Fatalf("Stop = %v, want 103.8 - 1 = 102.8", tr.Stop)
	}

	// A pullback bar must not loosen the stop.
	tr = AdvanceTrade(tr, bar(3, 103.5, 103.9, 103, 103.2), 2)
	if tr.Stop != 102.8 {
		t.Errorf("Trail loosened to %v", tr.Stop)
	}

	// A higher close tightens it again.
	tr = AdvanceTrade(tr, bar(4, 103.5, 106, 103.4, 105.6), 2)
	if tr.Stop != 104.6 {
		t.Errorf("Stop = %v, want 104.6", tr.Stop)
	}
}

// TestTerminalStates tests that closed and canceled trades never move
func TestTerminalStates(t *testing.T) {
	tr := NewTrade(DirectionBuy, 100, 98, 106, 1)
	canceled := Cancel(tr)
	if canceled.Status != StatusCanceled {
		t.Fatal("Planned trade should cancel")
	}
	if again := AdvanceTrade(canceled, bar(5, 99, 107, 97, 105), 1); again.Status != StatusCanceled {
		t.Error("Canceled trade should never advance")
	}
	if Cancel(canceled).Status != StatusCanceled {
		t.Error("Cancel is idempotent on terminal states")
	}

	active := Fill(tr, bar(1, 100, 101, 99, 100.5))
	if Cancel(active).Status != StatusCanceled {
		t.Error("Active trade should not cancel")
	}

	closed := Close(active, 98, ResultLoss, 2*hourMs)
	if again := AdvanceTrade(closed, bar(5, 99, 107, 97, 105), 1); again.Status != StatusClosed {
		t.Error("Closed trade should never advance")
	}
}

// TestSellSideResolution tests the mirrored short lifecycle
func TestSellSideResolution(t *testing.T) {
	tr := NewTrade(DirectionSell, 100, 102, 94, 1)
	tr.Manual = true
	tr = AdvanceTrade(tr, bar(1, 100.5, 101, 99.5, 100.2), 1)
	if tr.Status != StatusActive {
		t.Fatal("Short should fill")
	}

	won := AdvanceTrade(tr, bar(2, 96, 96.5, 93.5, 94.2), 1)
	if won.Result != ResultWin || won.PnL != 6 {
		t.Errorf("Short win PnL = %v, want 6", won.PnL)
	}

	lost := AdvanceTrade(tr, bar(2, 101, 102.5, 100.5, 102.2), 1)
	if lost.Result != ResultLoss || lost.PnL != -2 {
		t.Errorf("Short loss PnL = %v, want -2", lost.PnL)
	}
}

type recordingSink struct {
	mu       sync.Mutex
	outcomes []weights.Outcome
}

func (r *recordingSink) RecordOutcome(_ context.Context, o weights.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

// TestSimulatorOnBar tests the end-to-end fill-then-close path with the sink
func TestSimulatorOnBar(t *testing.T) {
	sink := &recordingSink{}
	sim := New(sink, zerolog.Nop())

	tr := NewTrade(DirectionBuy, 100, 98, 106, 1)
	tr.Manual = true
	tr.Setup = "sweep_choch"
	tr.Session = "London"
	sim.Add(tr)

	history := []market.Candle{bar(0, 100, 101, 99, 100.5)}
	sim.OnBar(context.Background(), history)

	trades := sim.Trades()
	if len(trades) != 1 || trades[0].Status != StatusActive {
		t.Fatalf("Trade should fill on the first bar, got %+v", trades)
	}

	history = append(history, bar(1, 99.5, 99.8, 97.5, 97.8))
	sim.OnBar(context.Background(), history)

	trades = sim.Trades()
	if trades[0].Status != StatusClosed || trades[0].Result != ResultLoss {
		t.Fatalf("Trade should close as loss, got %+v", trades[0])
	}

	if len(sink.outcomes) != 1 {
		t.Fatalf("Sink should receive 1 outcome, got %d", len(sink.outcomes))
	}
	o := sink.outcomes[0]
	if o.Setup != "sweep_choch" || o.Session != "London" || o.Result != "loss" {
		t.Errorf("Outcome fields wrong: %+v", o)
	}
	if math.Abs(o.RMultiple+1) > 1e-9 {
		t.Errorf("Outcome R = %v, want -1", o.RMultiple)
	}

	// Re-advancing on later bars must not re-report the closed trade.
	history = append(history, bar(2, 98, 99, 97, 98.5))
	sim.OnBar(context.Background(), history)
	if len(sink.outcomes) != 1 {
		t.Error("Closed trade reported twice")
	}
}

// TestSimulatorCancelAndClear tests collection management
func TestSimulatorCancelAndClear(t *testing.T) {
	sim := New(nil, zerolog.Nop())

	tr := NewTrade(DirectionBuy, 100, 98, 106, 1)
	sim.Add(tr)

	if !sim.CancelTrade(tr.ID) {
		t.Error("Planned trade should cancel")
	}
	if sim.CancelTrade(tr.ID) {
		t.Error("Second cancel should fail")
	}
	if sim.CancelTrade("missing") {
		t.Error("Unknown ID should fail")
	}

	sim.Clear()
	if len(sim.Trades()) != 0 {
		t.Error("Clear should drop all trades")
	}
}
