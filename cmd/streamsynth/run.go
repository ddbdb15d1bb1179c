package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"streamsynth/internal/api"
	"streamsynth/internal/api/handler"
	"streamsynth/internal/config"
	"streamsynth/internal/dashboard"
	"streamsynth/internal/dsl"
	"streamsynth/internal/pipeline"
	"streamsynth/internal/store"
	"streamsynth/pkg/logger"
	"streamsynth/pkg/router"
)

const stopTimeout = 30 * time.Second

func newRunCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a pipeline until interrupted",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
			&cli.StringFlag{Name: "admin", Usage: "serve the admin API on this address, e.g. :8080"},
			&cli.StringFlag{Name: "history", Usage: "record runs in this SQLite database"},
			&cli.BoolFlag{Name: "dashboard", Usage: "show the live console dashboard"},
		},
		Action: runPipeline,
	}
}

func runPipeline(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("run requires a pipeline file")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("admin") {
		cfg.Admin.Addr = c.String("admin")
	}
	if c.IsSet("history") {
		cfg.History.DB = c.String("history")
	}
	if c.IsSet("dashboard") {
		cfg.Dashboard.Enabled = c.Bool("dashboard")
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	text, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read pipeline")
	}
	p, err := dsl.Compile(string(text))
	if err != nil {
		return errors.Wrapf(err, "failed to compile %s", path)
	}

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	var (
		runStore pipeline.RunStore
		history  handler.RunHistory
	)
	if cfg.History.DB != "" {
		db, err := store.Open(cfg.History.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveRun(runID, p.Definition().String()); err != nil {
			return err
		}
		runStore, history = db, db
	}

	tracker := pipeline.NewTracker(runID, runStore, log)
	tracker.Attach(p)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipeline.NewMetrics(reg).Attach(p)

	if !cfg.Dashboard.Enabled {
		p.Subscribe(printer(c))
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Start(ctx, pipeline.WithLogger(log), pipeline.WithSpilloverDir(cfg.Spillover.Dir)); err != nil {
		return errors.Wrap(err, "failed to run pipeline")
	}

	if cfg.Admin.Addr != "" {
		r := router.New(log)
		api.RegisterRoutes(r, handler.NewPipelineHandler(p, tracker, history, log), reg)
		go func() {
			if err := r.Run(ctx, cfg.Admin.Addr); err != nil {
				log.Error("admin API stopped", zap.Error(err))
			}
		}()
	}
	if cfg.Dashboard.Enabled {
		go dashboard.New(tracker, p.BufferLen, c.App.Writer, cfg.Dashboard.IntervalDuration()).Run(ctx)
	}

	<-ctx.Done()
	fmt.Fprintln(c.App.Writer, "Shutting down...")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		log.Warn("pipeline did not stop cleanly", zap.Error(err))
	}
	return nil
}

// printer reports lifecycle notifications on the console.
func printer(c *cli.Context) pipeline.Listener {
	return func(n pipeline.Notification) {
		switch n.Signal {
		case pipeline.SignalStarted:
			fmt.Fprintln(c.App.Writer, "Pipeline started")
		case pipeline.SignalStopped:
			fmt.Fprintln(c.App.Writer, "Pipeline stopped")
		case pipeline.SignalEnd:
			fmt.Fprintln(c.App.Writer, "Source finished")
		case pipeline.SignalSpillover:
			fmt.Fprintf(c.App.Writer, "Spillover: %d events written to %s\n", n.Count, n.File)
		case pipeline.SignalError:
			fmt.Fprintln(c.App.ErrWriter, "Pipeline error:", n.Err)
		}
	}
}

func newRunsCmd() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "history", Usage: "SQLite run history database", EnvVars: []string{"STREAMSYNTH_HISTORY_DB"}},
		},
		Action: func(c *cli.Context) error {
			path := c.String("history")
			if path == "" {
				return fmt.Errorf("runs requires --history")
			}
			db, err := store.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(c.App.Writer, "No runs recorded")
				return nil
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPROCESSED\tFILTERED\tERRORS\tSPILLOVERS\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Status,
					humanize.Comma(r.Processed), humanize.Comma(r.Filtered),
					humanize.Comma(r.Errors), humanize.Comma(r.Spillovers),
					humanize.Time(r.CreatedAt))
			}
			return w.Flush()
		},
	}
}
