package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/takefinance/payslip-archiver/internal/config"
	"github.com/takefinance/payslip-archiver/internal/logging"
	"github.com/takefinance/payslip-archiver/internal/metrics"
	"github.com/takefinance/payslip-archiver/internal/payroll"
	"github.com/takefinance/payslip-archiver/internal/processor"
	"github.com/takefinance/payslip-archiver/internal/render"
	"github.com/takefinance/payslip-archiver/internal/source"
	"github.com/takefinance/payslip-archiver/internal/storage"
	"github.com/takefinance/payslip-archiver/internal/tracker"
	"github.com/takefinance/payslip-archiver/internal/watcher"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

const usage = `usage: payslip-archiver [flags] <command> [args]

commands:
  run <source-ref>      process one batch from the configured source
  watch                 watch the inbox directory and process dropped files
  preview <source-ref>  show the first records of a source file
  stats                 print aggregate processing statistics
  reset <employee-id>   clear an employee's outcome so it reprocesses

flags:
`

func main() {
	var (
		configPath   = flag.String("config", "", "path to YAML config file")
		force        = flag.Bool("force", false, "force-recreate already processed payslips")
		reinitLedger = flag.Bool("reinit-ledger", false, "move a corrupt ledger aside and start fresh (data loss)")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "payslip-archiver: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging)
	log := logging.Component("main")
	log.Info("payslip archiver starting", "version", Version, "git_sha", GitSHA)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, cfg, command, flag.Args()[1:], *force, *reinitLedger, log); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown complete")
			return
		}
		log.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, cfg config.Config, command string, args []string, force, reinitLedger bool, log *slog.Logger) error {
	switch command {
	case "run", "watch", "stats", "reset":
		// commands below need the full stack or at least the tracker
	case "preview":
		return runPreview(ctx, cfg, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command: %s", command)
	}

	// Corruption can surface at store construction (a sqlite path holding
	// junk) or at first load (unparsable JSON); -reinit-ledger covers both.
	store, err := tracker.NewLedgerStore(cfg.Ledger)
	var trk *tracker.Tracker
	if err == nil {
		trk, err = tracker.New(store)
	}
	if errors.Is(err, tracker.ErrCorruptLedger) {
		if !reinitLedger {
			return fmt.Errorf("%w; repair %s or rerun with -reinit-ledger to discard it", err, cfg.Ledger.Path)
		}
		trk, err = reinitializeLedger(cfg.Ledger, &store, log)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	switch command {
	case "stats":
		printStatistics(trk.Statistics())
		return nil
	case "reset":
		if len(args) != 1 {
			return fmt.Errorf("reset requires exactly one employee id")
		}
		return trk.ForceReset(args[0])
	}

	if days := cfg.Processing.CleanupSessionsDays; days > 0 {
		if _, err := trk.CleanupSessions(time.Duration(days) * 24 * time.Hour); err != nil {
			log.Warn("session cleanup failed", "error", err)
		}
	}

	src, err := source.NewRecordSource(cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	artifacts, err := storage.NewArtifactStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	m := metrics.Init("")
	metrics.Serve(cfg.Metrics, log)

	renderer := render.NewPDFRenderer(cfg.Render, nil)
	proc := processor.New(trk, src, renderer, artifacts, processor.WithMetrics(m))

	opts := processor.Options{
		ForceRecreate: force || cfg.Processing.ForceRecreate,
		WriteReport:   cfg.Processing.WriteReport,
	}

	switch command {
	case "run":
		if len(args) != 1 {
			return fmt.Errorf("run requires exactly one source reference")
		}
		session, err := proc.RunBatch(ctx, args[0], opts)
		if err != nil {
			return err
		}
		printSession(session)
		return nil

	case "watch":
		if cfg.Watch.Dir == "" {
			return fmt.Errorf("watch.dir not configured")
		}
		w := watcher.New(cfg.Watch.Dir, time.Duration(cfg.Watch.SettleSeconds)*time.Second,
			func(ctx context.Context, path string) error {
				session, err := proc.RunBatch(ctx, path, opts)
				if err != nil {
					return err
				}
				printSession(session)
				return nil
			})
		return w.Run(ctx)
	}
	return nil
}

// reinitializeLedger moves the unreadable ledger aside and loads a fresh
// one. Explicit and loud: this discards processing history. store may be
// nil when the backend's constructor already refused the file.
func reinitializeLedger(cfg tracker.StoreConfig, store *tracker.LedgerStore, log *slog.Logger) (*tracker.Tracker, error) {
	if *store != nil {
		(*store).Close()
	}

	backup := fmt.Sprintf("%s.corrupt.%s", cfg.Path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(cfg.Path, backup); err != nil {
		return nil, fmt.Errorf("move corrupt ledger aside: %w", err)
	}
	log.Warn("corrupt ledger moved aside, starting with an empty ledger",
		"backup", backup,
	)

	fresh, err := tracker.NewLedgerStore(cfg)
	if err != nil {
		return nil, err
	}
	*store = fresh
	return tracker.New(fresh)
}

func runPreview(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("preview requires exactly one source reference")
	}
	src, err := source.NewRecordSource(cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	records, validation, err := source.Preview(ctx, src, args[0], 5)
	if err != nil {
		return err
	}
	fmt.Printf("file: %s\nrows: %d (with id: %d)\ncolumns: %v\n",
		validation.SourceName, validation.TotalRows, validation.RowsWithID, validation.Columns)
	for _, rec := range records {
		fmt.Printf("  %s  %s  base=%.2f\n", rec.ID, rec.Name, rec.Base)
	}
	return nil
}

func printSession(s payroll.Session) {
	fmt.Printf("session %s: %s\n", s.ID, s.Status)
	fmt.Printf("  total: %d  processed: %d  failed: %d  skipped: %d\n",
		s.Total, s.Processed, s.Failed, s.Skipped)
	if !s.FinishedAt.IsZero() {
		fmt.Printf("  duration: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	}
}

func printStatistics(stats tracker.Statistics) {
	fmt.Printf("employees tracked: %d (succeeded: %d, failed: %d)\n",
		stats.EmployeesTracked, stats.Succeeded, stats.Failed)
	fmt.Printf("sessions: %d\n", stats.TotalSessions)
	for _, s := range stats.RecentSessions {
		fmt.Printf("  %s  %-11s  total=%d processed=%d failed=%d skipped=%d\n",
			s.StartedAt.Format("2006-01-02 15:04"), s.Status,
			s.Total, s.Processed, s.Failed, s.Skipped)
	}
	if !stats.LastUpdated.IsZero() {
		fmt.Printf("last updated: %s\n", stats.LastUpdated.Format(time.RFC3339))
	}
}
