// Command backtest replays a CSV candle file through the signal engine and
// the trade simulator, then prints per-setup performance.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"smc-engine/internal/engine"
	"smc-engine/internal/market"
	"smc-engine/internal/simulator"
	"smc-engine/internal/weights"
)

type setupStats struct {
	Trades   int
	Wins     int
	TotalPnL float64
	TotalR   float64
}

func main() {
	var (
		csvPath    = flag.String("csv", "", "path to candle CSV (open_time,open,high,low,close,volume)")
		sizeMult   = flag.Float64("size", 1, "global size multiplier")
		maxSignals = flag.Int("max-signals", 0, "truncate to the most recent N signals (0 = all)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -csv <file> [-size 1.0] [-max-signals 0]")
		os.Exit(1)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	candles, err := loadCandles(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load candles: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d candles (%s .. %s)\n",
		len(candles),
		candles[0].Time().Format(time.RFC3339),
		candles[len(candles)-1].Time().Format(time.RFC3339))

	eng := engine.New(engine.Config{
		Sessions:       market.DefaultSessions(),
		SizeMultiplier: *sizeMult,
		MaxSignals:     *maxSignals,
	}, logger)

	signals := eng.Run(candles, nil)
	fmt.Printf("Engine admitted %d signals\n\n", len(signals))

	sim := simulator.New(nil, logger)
	trades := replay(context.Background(), sim, candles, signals)
	report(trades)
}

// replay walks the candle history once, registering each signal as a trade
// on its bar and advancing the simulator on every bar after it.
func replay(ctx context.Context, sim *simulator.Simulator, candles []market.Candle, signals []engine.Signal) []simulator.Trade {
	bySignalBar := make(map[int][]engine.Signal)
	for _, sig := range signals {
		bySignalBar[sig.BarIndex] = append(bySignalBar[sig.BarIndex], sig)
	}

	for i := range candles {
		for _, sig := range bySignalBar[i] {
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
			sim.Add(t)
		}
		sim.OnBar(ctx, candles[:i+1])
	}

	return sim.Trades()
}

func report(trades []simulator.Trade) {
	stats := make(map[string]*setupStats)
	var closed, wins int
	var totalPnL float64

	for _, t := range trades {
		if t.Status != simulator.StatusClosed {
			continue
		}
		closed++
		totalPnL += t.PnL

		s := stats[t.Setup]
		if s == nil {
			s = &setupStats{}
			stats[t.Setup] = s
		}
		s.Trades++
		s.TotalPnL += t.PnL
		s.TotalR += t.RMultiple()
		if t.Result == simulator.ResultWin {
			s.Wins++
			wins++
		}
	}

	if closed == 0 {
		fmt.Println("No trades closed.")
		return
	}

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-22s %7s %8s %10s %8s\n", "SETUP", "TRADES", "WIN%", "PNL", "AVG R")
	fmt.Println(strings.Repeat("-", 60))
	for _, name := range names {
		s := stats[name]
		winRate := float64(s.Wins) / float64(s.Trades) * 100
		fmt.Printf("%-22s %7d %7.1f%% %10.4f %8.2f\n",
			name, s.Trades, winRate, s.TotalPnL, s.TotalR/float64(s.Trades))
	}
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%-22s %7d %7.1f%% %10.4f\n",
		"TOTAL", closed, float64(wins)/float64(closed)*100, totalPnL)

	// Per-setup win rates feed the adaptive weights; show what the next run
	// would disable.
	var outcomes []weights.Outcome
	for _, t := range trades {
		if t.Status != simulator.StatusClosed {
			continue
		}
		outcomes = append(outcomes, weights.Outcome{
			Setup:     t.Setup,
			Session:   t.Session,
			Bias:      t.Bias,
			Result:    string(t.Result),
			RMultiple: t.RMultiple(),
		})
	}
	w := weights.FromOutcomes(outcomes)
	var disabled []string
	for setup, sw := range w {
		if !sw.Allowed {
			disabled = append(disabled, setup)
		}
	}
	if len(disabled) > 0 {
		sort.Strings(disabled)
		fmt.Printf("\nSetups the adaptive gate would disable next run: %s\n", strings.Join(disabled, ", "))
	}
}

// loadCandles reads open_time,open,high,low,close,volume rows. A header row
// is skipped when the first field is not numeric.
func loadCandles(path string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty CSV %s", path)
	}

	candles := make([]market.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: expected 6 fields, got %d", i+1, len(row))
		}
		openTime, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("row %d: bad open_time: %w", i+1, err)
		}

		var vals [5]float64
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad field %d: %w", i+1, j+2, err)
			}
			vals[j] = v
		}

		candles = append(candles, market.Candle{
			OpenTime: openTime,
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candle rows in %s", path)
	}
	return candles, nil
}
