package api

import (
	"context"
	"net/http"
	"time"

	"smc-engine/internal/cache"
	"smc-engine/internal/engine"
	"smc-engine/internal/market"
	"smc-engine/internal/simulator"

	"github.com/gin-gonic/gin"
)

// analyzeRequest carries candles for an ad-hoc analysis run. Symbol and
// interval are only used as the cache key.
type analyzeRequest struct {
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Candles  []market.Candle `json:"candles" binding:"required"`
}

type createTradeRequest struct {
	Direction    string  `json:"direction" binding:"required"`
	Entry        float64 `json:"entry" binding:"required"`
	Stop         float64 `json:"stop"`
	Target       float64 `json:"target"`
	PositionSize float64 `json:"position_size"`
}

// handleAnalyze runs the structure and zone analysis over the posted
// candles. Results are served from the cache when a fresh snapshot exists
// for the same symbol, interval and bar count.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if s.cache != nil && req.Symbol != "" {
		snap, err := s.cache.Get(c.Request.Context(), req.Symbol, req.Interval)
		if err == nil && snap.BarsCount == len(req.Candles) {
			c.JSON(http.StatusOK, gin.H{"analysis": snap.Analysis, "cached": true})
			return
		}
	}

	analysis := engine.Analyze(req.Candles)

	if s.cache != nil && req.Symbol != "" {
		snap := &cache.Snapshot{
			Symbol:    req.Symbol,
			Interval:  req.Interval,
			Analysis:  analysis,
			CachedAt:  time.Now().UnixMilli(),
			BarsCount: len(req.Candles),
		}
		if err := s.cache.Set(c.Request.Context(), snap); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache analysis")
		}
	}

	c.JSON(http.StatusOK, gin.H{"analysis": analysis, "cached": false})
}

// handleSignals runs the full signal engine over the posted candles.
// Signal runs are served from the snapshot cache when a fresh one carries
// them, and a completed run is folded back into the snapshot.
func (s *Server) handleSignals(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	var prev *cache.Snapshot
	if s.cache != nil && req.Symbol != "" {
		if snap, err := s.cache.Get(c.Request.Context(), req.Symbol, req.Interval); err == nil {
			if snap.BarsCount == len(req.Candles) && len(snap.Signals) > 0 {
				c.JSON(http.StatusOK, gin.H{"signals": snap.Signals, "count": len(snap.Signals), "cached": true})
				return
			}
			prev = snap
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	w, err := s.weights.GetOptimizationParams(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("weights unavailable, using defaults")
		w = nil
	}

	signals := s.engine.Run(req.Candles, w)

	if s.cache != nil && req.Symbol != "" {
		if err := s.cache.Set(c.Request.Context(), signalsSnapshot(prev, req, signals)); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache signals")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"signals": signals,
		"count":   len(signals),
		"cached":  false,
	})
}

// signalsSnapshot folds a signal run into the snapshot for its key. A fresh
// snapshot from a prior analysis pass keeps its analysis; otherwise one is
// rebuilt so the cache entry stays complete.
func signalsSnapshot(prev *cache.Snapshot, req analyzeRequest, signals []engine.Signal) *cache.Snapshot {
	snap := prev
	if snap == nil || snap.BarsCount != len(req.Candles) {
		snap = &cache.Snapshot{
			Symbol:    req.Symbol,
			Interval:  req.Interval,
			Analysis:  engine.Analyze(req.Candles),
			BarsCount: len(req.Candles),
		}
	}
	snap.Signals = signals
	return snap
}

// handleListTrades returns all trades tracked by the simulator.
func (s *Server) handleListTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trades": s.simulator.Trades()})
}

// handleCreateTrade registers a manual planned trade with the simulator.
func (s *Server) handleCreateTrade(c *gin.Context) {
	var req createTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	dir := simulator.TradeDirection(req.Direction)
	if dir != simulator.DirectionBuy && dir != simulator.DirectionSell {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be buy or sell"})
		return
	}

	size := req.PositionSize
	if size <= 0 {
		size = 1
	}

	t := simulator.NewTrade(dir, req.Entry, req.Stop, req.Target, size)
	t.Manual = true
	s.simulator.Add(t)

	c.JSON(http.StatusCreated, gin.H{"trade": t})
}

// handleCancelTrade cancels a planned trade by ID.
func (s *Server) handleCancelTrade(c *gin.Context) {
	id := c.Param("id")
	if !s.simulator.CancelTrade(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade not found or not cancelable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"canceled": id})
}

// handleClearTrades removes all tracked trades.
func (s *Server) handleClearTrades(c *gin.Context) {
	s.simulator.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
