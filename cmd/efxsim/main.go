// Command efxsim runs the deterministic FX dealing-desk simulation
// engine: it merges Parquet event sources, replays them through the
// processor, and writes the audit log, snapshot series, and final state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/efxlab/simulator/internal/auditstore"
	"github.com/efxlab/simulator/internal/config"
	"github.com/efxlab/simulator/internal/dashboard"
	"github.com/efxlab/simulator/internal/event"
	"github.com/efxlab/simulator/internal/handler"
	"github.com/efxlab/simulator/internal/ioparquet"
	"github.com/efxlab/simulator/internal/lotmgr"
	"github.com/efxlab/simulator/internal/processor"
	"github.com/efxlab/simulator/internal/state"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "gen":
		genCmd(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: efxsim <run|gen> [flags]")
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration YAML file")
	logLevel := fs.String("log-level", "", "override the configured log level")
	fs.Parse(args)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "run: -config is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("simulation_started", "config_file", *configPath)

	events, err := loadEvents(cfg, logger)
	if err != nil {
		logger.Error("event_load_failed", "err", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		logger.Error("no_events_loaded")
		os.Exit(1)
	}

	var manager *lotmgr.Manager
	if cfg.LotTracking.Enabled {
		manager = lotmgr.New(cfg.LotManagerConfig())
		logger.Info("lot_tracking_enabled",
			"risk_pairs", cfg.LotTracking.RiskPairs,
			"matching_rule", cfg.LotTracking.MatchingRule,
		)
	}
	initial := state.New(cfg.ReportingCurrency, manager)

	sink, closeSink, err := openAuditSink(cfg)
	if err != nil {
		logger.Error("audit_sink_open_failed", "err", err)
		os.Exit(1)
	}
	defer closeSink()

	var dashSrv *dashboard.Server
	var cleanupDash []func()
	if cfg.Dashboard.Enabled {
		dashSrv, cleanupDash = startDashboard(cfg, logger)
		defer func() {
			for _, fn := range cleanupDash {
				fn()
			}
		}()
	}

	snapshots := &snapshotCollector{}
	secondary := []processor.Sink{snapshots}
	if dashSrv != nil {
		secondary = append(secondary, dashSrv)
	}
	sink = multiSink{primary: sink, secondary: secondary}

	proc := processor.New(initial, logger)
	runErr := proc.Run(events, sink)
	final := proc.State()

	if err := writeFinalState(cfg, final); err != nil {
		logger.Error("final_state_write_failed", "err", err)
	}
	snapshotPath := filepath.Join(cfg.Outputs.Directory, cfg.Outputs.Snapshots)
	if err := ioparquet.WriteSnapshots(snapshots.records, snapshotPath, logger); err != nil {
		logger.Error("snapshot_write_failed", "err", err)
	}

	if runErr != nil {
		logger.Error("simulation_failed", "err", runErr)
		os.Exit(1)
	}

	logger.Info("simulation_completed", "events_processed", final.EventCount())
	printSummary(cfg, final)
}

func genCmd(args []string) {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	outDir := fs.String("output-dir", "examples/data", "output directory for sample data")
	numTrades := fs.Int("num-trades", 100, "number of client trades to generate")
	numTicks := fs.Int("num-ticks", 1000, "number of market ticks to generate")
	seed := fs.Int64("seed", 1, "random seed for reproducible sample data")
	fs.Parse(args)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("generating_sample_data", "output_dir", *outDir)

	if err := ioparquet.GenerateSampleData(*outDir, *numTrades, *numTicks, *seed, logger); err != nil {
		logger.Error("sample_data_generation_failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Logging) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadEvents merges every configured Parquet input file into one list of
// per-source event slices, ready for processor.Run. Each input file is
// kept as its own source slice; the processor does the stable-sort merge
// (spec §8, Order-invariance law).
func loadEvents(cfg *config.Config, logger *slog.Logger) ([][]event.Event, error) {
	sources := make([][]event.Event, 0, len(cfg.Inputs.Files))
	for _, name := range cfg.Inputs.Files {
		path := filepath.Join(cfg.Inputs.Directory, name)
		loader := loaderForFile(name)
		if loader == nil {
			return nil, fmt.Errorf("run: no loader for input file %q", name)
		}
		events, err := loader(path, logger)
		if err != nil {
			return nil, fmt.Errorf("run: load %s: %w", path, err)
		}
		sources = append(sources, events)
	}
	return sources, nil
}

func loaderForFile(name string) func(string, *slog.Logger) ([]event.Event, error) {
	switch filepath.Base(name) {
	case "client_trades.parquet":
		return ioparquet.LoadClientTrades
	case "market_updates.parquet":
		return ioparquet.LoadMarketUpdates
	case "config_updates.parquet":
		return ioparquet.LoadConfigUpdates
	case "hedge_orders.parquet":
		return ioparquet.LoadHedgeOrders
	case "hedge_fills.parquet":
		return ioparquet.LoadHedgeFills
	case "clock_ticks.parquet":
		return ioparquet.LoadClockTicks
	default:
		return nil
	}
}

// multiSink fans a record out to the durable audit sink plus any number
// of secondary sinks (the dashboard server, the in-memory snapshot
// collector). Secondary writes are best-effort: they never block or
// fail the run.
type multiSink struct {
	primary   processor.Sink
	secondary []processor.Sink
}

func (m multiSink) Write(rec handler.Record) error {
	for _, s := range m.secondary {
		_ = s.Write(rec)
	}
	return m.primary.Write(rec)
}

// snapshotCollector buffers every record handed to it, for the
// end-of-run parquet write in runCmd. It never returns an error: a
// failed buffer append has no recoverable meaning for the run.
type snapshotCollector struct {
	records []handler.Record
}

func (c *snapshotCollector) Write(rec handler.Record) error {
	c.records = append(c.records, rec)
	return nil
}

func openAuditSink(cfg *config.Config) (processor.Sink, func(), error) {
	switch cfg.AuditStore.Driver {
	case "", "jsonl":
		path := filepath.Join(cfg.Outputs.Directory, cfg.Outputs.AuditLog)
		s, err := auditstore.NewJSONLSink(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.AuditStore.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("run: connect postgres: %w", err)
		}
		s := auditstore.NewPostgresSink(context.Background(), pool)
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("run: unknown audit_store.driver %q", cfg.AuditStore.Driver)
	}
}

func startDashboard(cfg *config.Config, logger *slog.Logger) (*dashboard.Server, []func()) {
	var cleanup []func()
	hub := dashboard.NewHub()
	go hub.Run()

	var cache *dashboard.RedisCache
	if cfg.Dashboard.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Dashboard.RedisURL)
		if err != nil {
			logger.Error("invalid dashboard redis_url", "err", err)
		} else {
			rdb := redis.NewClient(opt)
			cache = dashboard.NewRedisCache(rdb, 30*time.Second)
			cleanup = append(cleanup, func() { rdb.Close() })
			logger.Info("dashboard_redis_cache_enabled")
		}
	}

	srv := dashboard.NewServer(hub, cache)
	httpSrv := &http.Server{Addr: cfg.Dashboard.Addr, Handler: srv.Router()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("dashboard_server_failed", "err", err)
		}
	}()
	cleanup = append(cleanup, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	})
	logger.Info("dashboard_started", "addr", cfg.Dashboard.Addr)
	return srv, cleanup
}

func writeFinalState(cfg *config.Config, final *state.State) error {
	path := filepath.Join(cfg.Outputs.Directory, cfg.Outputs.FinalState)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	cash := make(map[string]string, len(final.CashCurrencies()))
	for _, ccy := range final.CashCurrencies() {
		cash[ccy] = final.CashBalance(ccy).String()
	}
	positions := make(map[string]string, len(final.PositionPairs()))
	for _, pair := range final.PositionPairs() {
		positions[pair] = final.Position(pair).String()
	}

	out := map[string]any{
		"reporting_currency": final.ReportingCurrency(),
		"event_count":        final.EventCount(),
		"cash_balances":      cash,
		"positions":          positions,
	}
	if final.LotManager != nil {
		out["lot_tracking"] = final.LotManager.Stats()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printSummary(cfg *config.Config, final *state.State) {
	fmt.Println("\n=== Simulation Summary ===")
	fmt.Printf("Events processed: %d\n", final.EventCount())
	fmt.Printf("Reporting currency: %s\n", final.ReportingCurrency())

	fmt.Println("\nCash balances:")
	for _, ccy := range final.CashCurrencies() {
		fmt.Printf("  %s: %s\n", ccy, final.CashBalance(ccy).String())
	}

	fmt.Println("\nPositions:")
	for _, pair := range final.PositionPairs() {
		fmt.Printf("  %s: %s\n", pair, final.Position(pair).String())
	}

	if final.LotManager != nil {
		stats := final.LotManager.Stats()
		fmt.Println("\nLot Tracking:")
		fmt.Printf("  Total open lots: %d\n", stats.TotalOpen)
		fmt.Printf("  Total closed lots: %d\n", stats.TotalClosed)
		pairs := make([]string, 0, len(stats.PerPair))
		for pair := range stats.PerPair {
			pairs = append(pairs, pair)
		}
		sort.Strings(pairs)
		for _, pair := range pairs {
			counts := stats.PerPair[pair]
			if counts.Open > 0 || counts.Closed > 0 {
				fmt.Printf("  %s: %d open, %d closed\n", pair, counts.Open, counts.Closed)
			}
		}
	}

	fmt.Printf("\nOutputs written to: %s\n", cfg.Outputs.Directory)
	fmt.Printf("  - Audit log: %s\n", cfg.Outputs.AuditLog)
	fmt.Printf("  - Final state: %s\n", cfg.Outputs.FinalState)
}
