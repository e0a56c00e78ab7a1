package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"ruok-relay-go/internal/action"
	"ruok-relay-go/internal/config"
	"ruok-relay-go/internal/db"
	"ruok-relay-go/internal/feed"
	"ruok-relay-go/internal/handler"
	"ruok-relay-go/internal/harvest"
	"ruok-relay-go/internal/ledger"
	"ruok-relay-go/internal/logging"
	"ruok-relay-go/internal/metrics"
	"ruok-relay-go/internal/model"
	"ruok-relay-go/internal/router"
	"ruok-relay-go/internal/scheduler"
	"ruok-relay-go/internal/warehouse"
)

const serveCommand = "serve"

const usage = `Usage: ruok-relay [flags] <command>

Commands:
  harvest   load new posts of every list member into the warehouse
  act       send outreach for pending actions and flag them as actioned
  serve     run both pipelines on their schedules and expose the HTTP API

Flags:
`

// Main parses the command line and runs the requested command
func Main(args []string) error {
	flags := pflag.NewFlagSet("ruok-relay", pflag.ContinueOnError)
	configFile := flags.StringP("config", "c", "", "path to the config file")
	triggerID := flags.String("trigger-id", "", "event id of whatever triggered this run")
	triggerTime := flags.String("trigger-time", "", "timestamp of the triggering event")
	triggerSource := flags.String("trigger-source", "", "resource that fired the trigger")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("expected exactly one command, got %d", flags.NArg())
	}
	command := flags.Arg(0)
	if command != harvest.PipelineName && command != action.PipelineName && command != serveCommand {
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	if command == serveCommand {
		return serve(ctx, cfg, c)
	}

	trigger := model.TriggerContext{EventID: *triggerID, Timestamp: *triggerTime, Source: *triggerSource}
	if trigger.Empty() {
		trigger = model.TriggerContext{
			EventID:   uuid.NewString(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Source:    "cli",
		}
	}

	_, err = c.runner.Run(ctx, command, trigger)
	return err
}

// components are the long-lived objects shared by every command
type components struct {
	runner   *Runner
	ledger   *ledger.Ledger
	registry *prometheus.Registry
	closers  []func() error
}

func (c *components) close() {
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			logrus.Errorf("Failed to close resource: %v", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{registry: prometheus.NewRegistry()}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(c.registry)
	log := logrus.StandardLogger()

	store, err := warehouse.NewClient(ctx, &cfg.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse client: %w", err)
	}
	feedClient := feed.NewClient(&cfg.Feed)

	postsTable := warehouse.TableRef{Dataset: cfg.Warehouse.Dataset, Table: cfg.Warehouse.PostsTable}
	harvestPipeline := harvest.NewPipeline(
		feedClient,
		harvest.NewWatermarkResolver(store, postsTable),
		harvest.NewTimelineFetcher(feedClient, cfg.Harvest.PageSize),
		harvest.NewNormalizer(time.Now),
		store,
		harvest.Options{
			ListID:          cfg.Feed.ListID,
			MemberLimit:     cfg.Harvest.MemberLimit,
			MaxPostsPerUser: cfg.Harvest.MaxPostsPerUser,
			PostsTable:      postsTable,
		},
		m,
		log,
	)

	if cfg.Outreach.IsDryRun() {
		logrus.Warn("Outreach dry run is enabled, no messages will be posted")
	}
	actionPipeline := action.NewPipeline(store, feedClient, action.Options{
		PendingTable:  warehouse.TableRef{Dataset: cfg.Warehouse.AnalysisDataset, Table: cfg.Warehouse.ActionsTable},
		ActivityTable: warehouse.TableRef{Dataset: cfg.Warehouse.Dataset, Table: cfg.Warehouse.ActivityTable},
		DryRun:        cfg.Outreach.IsDryRun(),
		SendDelay:     cfg.Outreach.SendDelay,
		ReferenceLink: cfg.Outreach.ReferenceLink,
	}, m, log)

	// a nil interface, not a nil *ledger.Ledger, disables the ledger
	var runLedger RunLedger
	if cfg.Database.Enabled {
		dbConn, err := db.Init(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		sqlDB, err := dbConn.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
		}
		c.closers = append(c.closers, sqlDB.Close)
		c.ledger = ledger.New(dbConn)
		runLedger = c.ledger
	} else {
		logrus.Info("Run ledger disabled")
	}

	c.runner = NewRunner(harvestPipeline, actionPipeline, runLedger, m, log)
	return c, nil
}

// serve runs the scheduler and the HTTP API until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config, c *components) error {
	logrus.Info("Starting ruok relay service")

	sched := scheduler.NewScheduler(&cfg.Scheduler, c.runner)

	var runs handler.RunStore
	if c.ledger != nil {
		runs = c.ledger
	}
	h := handler.NewHandlers(c.runner, runs, sched, c.registry)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		runErr = fmt.Errorf("HTTP server error: %w", runErr)
	}

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return runErr
}
