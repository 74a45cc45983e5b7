// Pullwatch reconstructs structured encounters from raw combat logs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pullwatch/pullwatch/pkg/export"
	"github.com/pullwatch/pullwatch/pkg/gamedata"
	"github.com/pullwatch/pullwatch/pkg/process"
	"github.com/pullwatch/pullwatch/pkg/telemetry"
	"github.com/pullwatch/pullwatch/pkg/watch"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	verbose      bool
	quiet        bool
	gamedataPath string
	otlpEndpoint string

	jsonOut    string
	parquetOut string
	workers    int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pullwatch",
	Short:   "Pullwatch - combat log encounter reconstruction",
	Long:    "Pullwatch parses raw combat logs into structured encounters with per-character metrics.",
	Version: fmt.Sprintf("%s (%s)", version, commit),
}

var parseCmd = &cobra.Command{
	Use:   "parse [combat-log]",
	Short: "Process a combat log file",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var watchCmd = &cobra.Command{
	Use:   "watch [combat-log]",
	Short: "Follow a live combat log and report encounters as they close",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pullwatch %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all logging")
	rootCmd.PersistentFlags().StringVar(&gamedataPath, "gamedata", "", "YAML overlay for game-data tables")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint for tracing (disabled when empty)")

	parseCmd.Flags().StringVar(&jsonOut, "json", "", "write the encounter tree as JSON to this path")
	parseCmd.Flags().StringVar(&parquetOut, "parquet", "", "write per-character metric rows as parquet to this path")
	parseCmd.Flags().IntVar(&workers, "workers", 0, "worker count for parallel processing (0 = all CPUs)")

	rootCmd.AddCommand(parseCmd, watchCmd, versionCmd)
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if quiet {
		level = zerolog.Disabled
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func loadTables(log zerolog.Logger) (gamedata.Tables, error) {
	tables := gamedata.Default()
	if gamedataPath == "" {
		return tables, nil
	}
	if err := tables.LoadOverlay(gamedataPath); err != nil {
		return nil, fmt.Errorf("load gamedata overlay: %w", err)
	}
	log.Debug().Str("path", gamedataPath).Msg("gamedata overlay applied")
	return tables, nil
}

// setupTracing initializes the OTLP exporter when an endpoint is
// configured. Returns a shutdown hook, which is a no-op otherwise.
func setupTracing(log zerolog.Logger) func(context.Context) error {
	if otlpEndpoint == "" {
		return func(context.Context) error { return nil }
	}
	cfg := telemetry.DefaultOTLPConfig("pullwatch")
	cfg.Endpoint = otlpEndpoint
	cfg.ServiceVersion = version
	shutdown, err := telemetry.InitOTLP(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled, exporter init failed")
		return func(context.Context) error { return nil }
	}
	return shutdown
}

func runParse(cmd *cobra.Command, args []string) error {
	log := newLogger()
	tables, err := loadTables(log)
	if err != nil {
		return err
	}

	shutdown := setupTracing(log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = shutdown(sctx)
	}()

	cfg := process.Config{Workers: workers}
	if !quiet {
		var bar *progressbar.ProgressBar
		cfg.Progress = func(consumed, total int64) {
			if bar == nil {
				bar = progressbar.DefaultBytes(total, "parsing")
			}
			_ = bar.Set64(consumed)
		}
	}

	proc := process.NewProcessor(log, tables, cfg)
	started := time.Now()
	res, err := proc.ProcessFile(ctx, args[0])
	if err != nil {
		return err
	}
	for _, berr := range res.BoundaryErrors {
		log.Warn().Err(berr).Msg("boundary skipped")
	}

	fmt.Println(renderSummary(res.Encounters, res.Counters, time.Since(started)))

	report := export.NewReport(args[0], res.Encounters, res.Counters)
	if jsonOut != "" {
		if err := writeJSONFile(jsonOut, report); err != nil {
			return err
		}
		log.Info().Str("path", jsonOut).Msg("JSON report written")
	}
	if parquetOut != "" {
		rows, err := writeParquetFile(parquetOut, report)
		if err != nil {
			return err
		}
		log.Info().Str("path", parquetOut).Int64("rows", rows).Msg("parquet export written")
	}
	return nil
}

func writeJSONFile(path string, report *export.Report) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer fh.Close()
	return export.WriteJSON(fh, report)
}

func writeParquetFile(path string, report *export.Report) (int64, error) {
	fh, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer fh.Close()

	w, err := export.NewParquetWriter(fh, report.ID)
	if err != nil {
		return 0, err
	}
	if err := w.WriteEncounters(report.Encounters); err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.RowsWritten(), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := newLogger()
	tables, err := loadTables(log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	follower, err := watch.NewFollower(log, tables, args[0])
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- follower.Run(ctx) }()

	fmt.Printf("watching %s (ctrl-c to stop)\n", args[0])
	for enc := range follower.Encounters() {
		fmt.Println(renderEncounter(enc))
	}

	err = <-done
	if err != nil && ctx.Err() != nil {
		// Normal ctrl-c shutdown.
		err = nil
	}
	fmt.Println(renderCounters(follower.Counters()))
	return err
}
