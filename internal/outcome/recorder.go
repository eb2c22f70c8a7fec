// Package outcome implements the trade-outcome sink: closed trades are
// persisted for the adaptive weights loop and optionally pushed to a
// webhook.
package outcome

import (
	"context"

	"smc-engine/internal/weights"
)

// Recorder receives a closed-trade outcome. The simulator calls it once per
// closure.
type Recorder interface {
	RecordOutcome(ctx context.Context, o weights.Outcome) error
}

// Multi fans an outcome out to several recorders. The first error is
// returned but every recorder still runs.
type Multi []Recorder

// RecordOutcome implements Recorder.
func (m Multi) RecordOutcome(ctx context.Context, o weights.Outcome) error {
	var first error
	for _, r := range m {
		if err := r.RecordOutcome(ctx, o); err != nil && first == nil {
			first = err
		}
	}
	return first
}
