package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"smc-engine/internal/cache"
	"smc-engine/internal/engine"
	"smc-engine/internal/market"
	"smc-engine/internal/simulator"
	"smc-engine/internal/weights"
)

func newTestServer() *Server {
	eng := engine.New(engine.Config{}, zerolog.Nop())
	sim := simulator.New(nil, zerolog.Nop())
	return NewServer(ServerConfig{}, eng, sim, weights.Static{}, nil, zerolog.Nop())
}

func testCandles(n int) []market.Candle {
	candles := make([]market.Candle, n)
	for i := range candles {
		candles[i] = market.Candle{
			OpenTime: int64(i) * 3600000,
			Open:     100, High: 101, Low: 99, Close: 100,
			Volume: 10,
		}
	}
	return candles
}

func postJSON(s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", response["status"])
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newTestServer()
	w := postJSON(s, "/api/analyze", analyzeRequest{Symbol: "BTCUSDT", Candles: testCandles(30)})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["cached"] != false {
		t.Error("Analysis without a cache should not report cached")
	}
	if _, ok := response["analysis"]; !ok {
		t.Error("Response should carry the analysis payload")
	}
}

func TestAnalyzeEndpointValidation(t *testing.T) {
	s := newTestServer()
	w := postJSON(s, "/api/analyze", map[string]string{"symbol": "BTCUSDT"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing candles should return 400, got %d", w.Code)
	}
}

func TestSignalsEndpoint(t *testing.T) {
	s := newTestServer()
	w := postJSON(s, "/api/signals", analyzeRequest{Symbol: "BTCUSDT", Candles: testCandles(30)})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["cached"] != false {
		t.Error("Signal run without a cache should not report cached")
	}
	if response["count"] != float64(0) {
		t.Errorf("Flat candles should produce no signals, count = %v", response["count"])
	}
}

// TestSignalsSnapshot tests that a signal run lands in the snapshot cache
// entry alongside the analysis
func TestSignalsSnapshot(t *testing.T) {
	req := analyzeRequest{Symbol: "BTCUSDT", Interval: "1h", Candles: testCandles(30)}
	signals := []engine.Signal{{BarIndex: 29, Price: 100}}

	// No prior snapshot: a full one is built with the signals attached.
	snap := signalsSnapshot(nil, req, signals)
	if len(snap.Signals) != 1 || snap.Signals[0].BarIndex != 29 {
		t.Error("Snapshot should carry the signal run")
	}
	if snap.BarsCount != 30 || snap.Symbol != "BTCUSDT" {
		t.Errorf("Snapshot key = %s/%d, want BTCUSDT/30", snap.Symbol, snap.BarsCount)
	}

	// A fresh analysis snapshot keeps its analysis and gains the signals.
	prev := &cache.Snapshot{
		Symbol:    "BTCUSDT",
		Interval:  "1h",
		BarsCount: 30,
	}
	snap = signalsSnapshot(prev, req, signals)
	if snap != prev {
		t.Error("Fresh snapshot should be reused, not rebuilt")
	}
	if len(snap.Signals) != 1 {
		t.Error("Fresh snapshot should gain the signal run")
	}

	// A stale snapshot for a different bar count is rebuilt.
	stale := &cache.Snapshot{Symbol: "BTCUSDT", Interval: "1h", BarsCount: 10}
	snap = signalsSnapshot(stale, req, signals)
	if snap == stale {
		t.Error("Stale snapshot must be rebuilt")
	}
	if snap.BarsCount != 30 || len(snap.Signals) != 1 {
		t.Errorf("Rebuilt snapshot = %d bars, %d signals", snap.BarsCount, len(snap.Signals))
	}
}

func TestTradeLifecycleEndpoints(t *testing.T) {
	s := newTestServer()

	w := postJSON(s, "/api/trades", createTradeRequest{
		Direction: "buy",
		Entry:     100,
		Stop:      98,
		Target:    106,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	var created struct {
		Trade simulator.Trade `json:"trade"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !created.Trade.Manual || created.Trade.PositionSize != 1 {
		t.Error("Manual trade should default to size 1")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("List trades returned %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/trades/"+created.Trade.ID, nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Cancel returned %d", rec.Code)
	}

	// A second cancel finds nothing cancelable.
	req = httptest.NewRequest(http.MethodDelete, "/api/trades/"+created.Trade.ID, nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Repeat cancel returned %d, want 404", rec.Code)
	}
}

func TestCreateTradeValidation(t *testing.T) {
	s := newTestServer()
	w := postJSON(s, "/api/trades", createTradeRequest{Direction: "sideways", Entry: 100})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Invalid direction should return 400, got %d", w.Code)
	}
}
