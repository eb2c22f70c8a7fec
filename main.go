package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smc-engine/config"
	"smc-engine/internal/api"
	"smc-engine/internal/cache"
	"smc-engine/internal/engine"
	"smc-engine/internal/feed"
	"smc-engine/internal/market"
	"smc-engine/internal/outcome"
	"smc-engine/internal/simulator"
	"smc-engine/internal/weights"
)

// feedHistoryLimit bounds the rolling candle buffer kept for live analysis.
const feedHistoryLimit = 2000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Msg("Starting SMC engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Weights come from Postgres when configured, otherwise from a static
	// default that allows every setup at full size.
	var provider weights.Provider = weights.Static{}
	var recorders outcome.Multi

	if cfg.DatabaseConfig.Enabled {
		pool, err := newPool(ctx, cfg.DatabaseConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()

		store := weights.NewStore(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		provider = store
		recorders = append(recorders, outcome.NewRepository(pool, logger))
		logger.Info().Msg("Database connected")
	}

	if cfg.OutcomeConfig.WebhookURL != "" {
		recorders = append(recorders, outcome.NewWebhook(cfg.OutcomeConfig.WebhookURL, logger))
	}

	var analysisCache *cache.AnalysisCache
	if cfg.RedisConfig.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer client.Close()
		analysisCache = cache.New(client, time.Duration(cfg.RedisConfig.TTLSeconds)*time.Second, logger)
		logger.Info().Msg("Redis connected")
	}

	eng := engine.New(engine.Config{
		Sessions:                market.DefaultSessions(),
		EnableSessionOpenFilter: cfg.EngineConfig.EnableSessionOpenFilter,
		SizeMultiplier:          cfg.EngineConfig.SizeMultiplier,
		MaxSignals:              cfg.EngineConfig.MaxSignals,
	}, logger)

	var sink simulator.Sink
	if len(recorders) > 0 {
		sink = recorders
	}
	sim := simulator.New(sink, logger)

	server := api.NewServer(api.ServerConfig{
		Host: cfg.ServerConfig.Host,
		Port: cfg.ServerConfig.Port,
	}, eng, sim, provider, analysisCache, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	if cfg.FeedConfig.Enabled {
		stream := feed.NewStream(cfg.FeedConfig.BaseURL, cfg.FeedConfig.Symbol, cfg.FeedConfig.Interval, logger)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("Candle feed stopped")
			}
		}()
		go runLive(ctx, cfg, eng, sim, provider, analysisCache, stream, logger)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}
}

// runLive consumes closed candles from the feed, re-runs the engine on the
// rolling history, registers fresh signals as simulated trades and advances
// the open ones.
func runLive(
	ctx context.Context,
	cfg *config.Config,
	eng *engine.Engine,
	sim *simulator.Simulator,
	provider weights.Provider,
	analysisCache *cache.AnalysisCache,
	stream *feed.Stream,
	logger zerolog.Logger,
) {
	var candles []market.Candle
	seen := make(map[int64]bool)

	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-stream.Candles():
			if !ok {
				return
			}
			candles = append(candles, candle)
			if len(candles) > feedHistoryLimit {
				candles = candles[len(candles)-feedHistoryLimit:]
				for k := range seen {
					if k < candles[0].OpenTime {
						delete(seen, k)
					}
				}
			}

			w, err := provider.GetOptimizationParams(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("weights unavailable, using defaults")
				w = nil
			}

			for _, sig := range eng.Run(candles, w) {
				if seen[sig.Time] {
					continue
				}
				seen[sig.Time] = true
				if sig.BarIndex < len(candles)-1 {
					// Historical replay artifact, not a live signal.
					continue
				}
				t := tradeFromSignal(sig)
				sim.Add(t)
				logger.Info().
					Str("setup", string(sig.Setup)).
					Str("direction", string(sig.Direction)).
					Float64("price", sig.Price).
					Msg("Signal admitted")
			}

			sim.OnBar(ctx, candles)

			if analysisCache != nil {
				if err := analysisCache.Invalidate(ctx, cfg.FeedConfig.Symbol, cfg.FeedConfig.Interval); err != nil {
					logger.Debug().Err(err).Msg("cache invalidation failed")
				}
			}
		}
	}
}

func tradeFromSignal(sig engine.Signal) simulator.Trade {
	dir := simulator.DirectionBuy
	if sig.Direction == engine.DirectionSell {
		dir = simulator.DirectionSell
	}
	t := simulator.NewTrade(dir, sig.Price, sig.Stop, sig.TP4, sig.SizeMultiplier)
	t.Setup = string(sig.Setup)
	t.Session = sig.Session
	t.Bias = string(sig.Bias)
	t.PartialTarget = sig.TP1
	t.PartialFraction = 0.5
	t.EntryBar = sig.Time
	return t
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}
