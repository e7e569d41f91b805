package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"

	"CascadeReplay/internal/capture"
	"CascadeReplay/internal/ingestion"
	"CascadeReplay/internal/instrument"
	"CascadeReplay/internal/ledger"
	"CascadeReplay/internal/marketdata"
	"CascadeReplay/internal/observability"
	"CascadeReplay/internal/persistence"
	"CascadeReplay/internal/publish"
	"CascadeReplay/internal/query"
	"CascadeReplay/internal/replay"
	"CascadeReplay/internal/report"
	"CascadeReplay/internal/snapshot"
	"CascadeReplay/internal/stream"
)

// Config holds all application configuration, loaded from environment
// variables.
type Config struct {
	// Inputs
	FillsArchive      string
	FillsPartsDir     string
	MiscArchive       string
	MiscInnerFile     string
	AccountValuesPath string
	PositionsPath     string
	MetaPath          string
	AssetContextsPath string

	// Replay window (epoch ms, inclusive)
	WindowStart  int64
	WindowEnd    int64
	SnapshotTime int64

	// Outputs
	OutputDir string
	Progress  bool

	// Postgres sink (disabled when DSN is empty)
	PostgresDSN      string
	MigrationsDir    string
	SinkChanSize     int
	SinkBatchSize    int
	SinkFlushTimeout time.Duration

	// NATS record publishing (disabled when URL is empty)
	NATSURL         string
	PublishChanSize int

	// Metrics/health HTTP listener (disabled when empty)
	MetricsAddr string
}

func DefaultConfig() Config {
	return Config{
		FillsArchive:      envOrDefault("REPLAY_FILLS_ARCHIVE", "data/node_fills_20251010.jsonl.lz4"),
		FillsPartsDir:     os.Getenv("REPLAY_FILLS_PARTS_DIR"),
		MiscArchive:       envOrDefault("REPLAY_MISC_ARCHIVE", "data/misc_events_20251010.jsonl.lz4"),
		MiscInnerFile:     envOrDefault("REPLAY_MISC_INNER", "misc_events.jsonl"),
		AccountValuesPath: envOrDefault("REPLAY_ACCOUNT_VALUES", "data/account_values.json"),
		PositionsPath:     envOrDefault("REPLAY_POSITIONS", "data/market_positions.json"),
		MetaPath:          envOrDefault("REPLAY_META", "data/meta.json"),
		AssetContextsPath: os.Getenv("REPLAY_ASSET_CONTEXTS"),

		WindowStart:  envInt64OrDefault("REPLAY_WINDOW_START_MS", 1760130900000),
		WindowEnd:    envInt64OrDefault("REPLAY_WINDOW_END_MS", 1760131620000),
		SnapshotTime: envInt64OrDefault("REPLAY_SNAPSHOT_TIME_MS", 1760126694218),

		OutputDir: envOrDefault("REPLAY_OUTPUT_DIR", "output"),
		Progress:  envOrDefault("REPLAY_PROGRESS", "1") == "1",

		PostgresDSN:      os.Getenv("REPLAY_POSTGRES_DSN"),
		MigrationsDir:    envOrDefault("REPLAY_MIGRATIONS_DIR", "migrations"),
		SinkChanSize:     envIntOrDefault("REPLAY_SINK_CHAN_SIZE", 1024),
		SinkBatchSize:    envIntOrDefault("REPLAY_SINK_BATCH_SIZE", 50),
		SinkFlushTimeout: 100 * time.Millisecond,

		NATSURL:         os.Getenv("REPLAY_NATS_URL"),
		PublishChanSize: envIntOrDefault("REPLAY_PUBLISH_CHAN_SIZE", 4096),

		MetricsAddr: os.Getenv("REPLAY_METRICS_ADDR"),
	}
}

func main() {
	log := observability.NewLogger("main")
	cfg := DefaultConfig()

	runID := uuid.New()
	log.Info().Str("run_id", runID.String()).Msg("cascade replay starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- Instrument universe ---
	registry, err := instrument.LoadFile(cfg.MetaPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.MetaPath).Msg("load instrument universe")
	}
	log.Info().Int("instruments", registry.Len()).Msg("instrument universe loaded")

	// --- Baseline snapshot ---
	store := ledger.NewStore()
	baseline, err := snapshot.Load(store, cfg.AccountValuesPath, cfg.PositionsPath, cfg.SnapshotTime)
	if err != nil {
		log.Fatal().Err(err).Msg("load baseline snapshot")
	}
	log.Info().
		Int("accounts", baseline.Accounts).
		Time("snapshot_time", time.UnixMilli(baseline.Time).UTC()).
		Msg("baseline loaded")

	// --- Mark price feed (optional asset context series) ---
	var feed marketdata.Source
	if cfg.AssetContextsPath != "" {
		r, err := ingestion.Open(cfg.AssetContextsPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.AssetContextsPath).Msg("open asset contexts")
		}
		f, err := ingestion.LoadAssetContexts(r)
		if err != nil {
			log.Fatal().Err(err).Msg("load asset contexts")
		}
		feed = f
		log.Info().Msg("asset context feed loaded")
	}

	// --- Event sources ---
	fillsPath := cfg.FillsArchive
	if cfg.FillsPartsDir != "" {
		fillsPath, err = ingestion.AssembleParts(cfg.FillsPartsDir, filepath.Base(cfg.FillsArchive), cfg.FillsArchive)
		if err != nil {
			log.Fatal().Err(err).Msg("assemble fills archive parts")
		}
	}

	window := ingestion.Window{Start: cfg.WindowStart, End: cfg.WindowEnd}

	fillsRC, err := ingestion.Open(fillsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", fillsPath).Msg("open fills archive")
	}
	fillSource := ingestion.NewFillSource("fills", fillsRC, window, metrics, observability.NewLogger("fills"))

	// Clearinghouse dumps arrive as tar.xz; unpack next to the archive.
	miscPath := cfg.MiscArchive
	if strings.HasSuffix(miscPath, ".tar.xz") {
		extractDir := strings.TrimSuffix(miscPath, ".tar.xz") + ".extracted"
		if err := ingestion.ExtractTarXz(miscPath, extractDir); err != nil {
			log.Fatal().Err(err).Str("path", miscPath).Msg("extract misc events archive")
		}
		miscPath = filepath.Join(extractDir, cfg.MiscInnerFile)
	}

	miscRC, err := ingestion.Open(miscPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", miscPath).Msg("open misc events archive")
	}
	miscSource := ingestion.NewMiscSource("misc", miscRC, window, metrics, observability.NewLogger("misc"))

	merger := stream.NewMerger(miscSource, fillSource)

	// --- Record fan-out targets ---
	var (
		records []*capture.Record
		wg      sync.WaitGroup
		errChan = make(chan error, 4)
	)

	// 1. Postgres sink worker (optional)
	var (
		db       *sql.DB
		writer   *persistence.RecordWriter
		sinkChan chan *capture.Record
	)
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping")
		}

		migrator := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrate"))
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}

		writer = persistence.NewRecordWriter(db, runID)
		sinkChan = make(chan *capture.Record, cfg.SinkChanSize)
		sinkWorker := persistence.NewSinkWorker(writer, sinkChan, cfg.SinkBatchSize, cfg.SinkFlushTimeout, metrics, observability.NewLogger("sink"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sinkWorker.Run(ctx); err != nil && err != context.Canceled {
				errChan <- fmt.Errorf("sink worker: %w", err)
			}
		}()
		log.Info().Msg("postgres sink enabled")
	}

	// 2. NATS record publisher (optional)
	var pubChan chan *capture.Record
	if cfg.NATSURL != "" {
		nc, js, err := publish.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()

		if err := publish.EnsureRecordStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure record stream")
		}

		pubChan = make(chan *capture.Record, cfg.PublishChanSize)
		publisher := publish.NewRecordPublisher(js, runID.String(), pubChan, metrics, observability.NewLogger("publish"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := publisher.Run(ctx); err != nil && err != context.Canceled {
				errChan <- fmt.Errorf("record publisher: %w", err)
			}
		}()
		log.Info().Msg("nats record publishing enabled")
	}

	// 3. Metrics + health HTTP listener (optional)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health/live", health.LivenessHandler)
		mux.HandleFunc("/health/ready", health.ReadinessHandler)
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			srv.Shutdown(shutCtx)
		}()
		go func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listener up")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription("replaying"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	// Sink sends block so no record is lost; publish sends drop when
	// the consumer falls behind.
	onRecord := func(rec *capture.Record) {
		records = append(records, rec)
		if sinkChan != nil {
			select {
			case sinkChan <- rec:
				metrics.SetChannelMetrics("sink", len(sinkChan), cap(sinkChan))
			case <-ctx.Done():
			}
		}
		if pubChan != nil {
			select {
			case pubChan <- rec:
			default:
				metrics.PublishDrops.Inc()
			}
		}
	}

	onEvent := func(applied int64) {
		if bar != nil {
			_ = bar.Set64(applied)
		}
	}

	health.SetReady(true)

	// --- Replay ---
	replayer := replay.New(replay.Config{
		Registry: registry,
		Store:    store,
		Feed:     feed,
		Metrics:  metrics,
		Logger:   observability.NewLogger("replay"),
		OnRecord: onRecord,
		OnEvent:  onEvent,
	})

	summary, err := replayer.Run(ctx, merger)

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	// Drain the fan-out workers before reporting.
	if sinkChan != nil {
		close(sinkChan)
	}
	if pubChan != nil {
		close(pubChan)
	}
	wg.Wait()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("replay interrupted, no reports written")
			return
		}
		log.Fatal().Err(err).Msg("replay failed")
	}

	select {
	case werr := <-errChan:
		log.Error().Err(werr).Msg("worker failed during run")
	default:
	}

	// --- Final state queries ---
	qs := query.NewService(store, replayer.Marks(), summary.LastEventTime)
	totals := qs.Totals()
	negative := qs.NegativeEquityAccounts()
	log.Info().
		Int("accounts", totals.Accounts).
		Str("total_cash", totals.TotalCash.String()).
		Str("total_realized_pnl", totals.TotalRealized.String()).
		Str("total_fees", totals.TotalFees.String()).
		Int("open_positions", totals.OpenPositions).
		Int("negative_equity_accounts", len(negative)).
		Msg("final ledger state")

	// --- Reports ---
	analysis := report.Aggregate(records)
	runSummary := report.NewRunSummary(runID.String(), cfg.SnapshotTime, cfg.WindowStart, cfg.WindowEnd, summary, analysis.Findings)

	if err := writeReports(cfg.OutputDir, records, analysis, runSummary); err != nil {
		log.Fatal().Err(err).Msg("write reports")
	}

	if writer != nil {
		if err := writer.WriteRunSummary(context.Background(), runSummary); err != nil {
			log.Error().Err(err).Msg("persist run summary")
		}
	}

	log.Info().
		Str("run_id", runID.String()).
		Str("output_dir", cfg.OutputDir).
		Int("records", len(records)).
		Str("state_hash", summary.StateHash).
		Msg("cascade replay complete")
}

// writeReports writes the per-record CSV, the user and coin rollups,
// the net-volume markdown, and the run summary JSON.
func writeReports(dir string, records []*capture.Record, analysis *report.Analysis, summary *report.RunSummary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	write := func(name string, fn func(f *os.File) error) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
		return f.Close()
	}

	if err := write("trigger_records.csv", func(f *os.File) error {
		return report.WriteRecordsCSV(f, records)
	}); err != nil {
		return err
	}
	if err := write("user_summaries.csv", func(f *os.File) error {
		return report.WriteUserSummariesCSV(f, analysis.Users)
	}); err != nil {
		return err
	}
	if err := write("coin_summaries.csv", func(f *os.File) error {
		return report.WriteCoinSummariesCSV(f, analysis.Coins)
	}); err != nil {
		return err
	}
	if err := write("net_volume.md", func(f *os.File) error {
		return report.WriteNetVolumeMarkdown(f, analysis, summary.Replay.FirstEventTime, summary.Replay.LastEventTime)
	}); err != nil {
		return err
	}
	return write("run_summary.json", func(f *os.File) error {
		return summary.WriteJSON(f)
	})
}

// --- Helpers ---

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64OrDefault(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}
