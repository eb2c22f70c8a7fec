package outcome

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"smc-engine/internal/weights"
)

// Webhook posts each closed-trade outcome as JSON to a configured URL.
// Disabled (a no-op) when the URL is empty.
type Webhook struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhook creates a webhook recorder.
func NewWebhook(url string, logger zerolog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "outcome_webhook").Logger(),
	}
}

type webhookPayload struct {
	Setup     string  `json:"setup"`
	Session   string  `json:"session"`
	Bias      string  `json:"bias"`
	Result    string  `json:"result"`
	RMultiple float64 `json:"r_multiple"`
	SentAt    int64   `json:"sent_at"`
}

// RecordOutcome implements Recorder.
func (w *Webhook) RecordOutcome(ctx context.Context, o weights.Outcome) error {
	if w.url == "" {
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		Setup:     o.Setup,
		Session:   o.Session,
		Bias:      o.Bias,
		Result:    o.Result,
		RMultiple: o.RMultiple,
		SentAt:    time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal outcome payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send outcome webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("outcome webhook returned status %d", resp.StatusCode)
	}

	w.logger.Debug().Str("setup", o.Setup).Str("result", o.Result).Msg("Outcome webhook delivered")
	return nil
}
