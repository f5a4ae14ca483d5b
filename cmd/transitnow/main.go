package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"transitnow/internal/arrivals"
	"transitnow/internal/config"
	"transitnow/internal/gtfs"
	"transitnow/internal/handler"
	"transitnow/internal/metrics"
	"transitnow/internal/publisher"
	"transitnow/internal/realtime"
	"transitnow/internal/server"
	"transitnow/internal/storage"
)

func main() {
	var level slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: &level,
	}))

	// CLI flags override the config file and environment.
	configPath := flag.String("config", "", "YAML config file (default $TRANSITNOW_CONFIG)")
	checkOnly := flag.Bool("check", false, "Load and validate the GTFS archive, then exit")
	port := flag.Int("port", 0, "HTTP server port")
	gtfsPath := flag.String("gtfs-path", "", "Path of the GTFS zip archive")
	gtfsURL := flag.String("gtfs-url", "", "Download the archive from this URL when the path does not exist")
	vehiclesURL := flag.String("vehicle-positions-url", "", "GTFS-Realtime vehicle positions feed URL")
	tripUpdatesURL := flag.String("trip-updates-url", "", "GTFS-Realtime trip updates feed URL")
	pollInterval := flag.Duration("poll-interval", 0, "Realtime poll interval")
	timezone := flag.String("timezone", "", "IANA timezone of the schedule")
	natsURL := flag.String("nats-url", "", "Publish vehicle positions to this NATS server")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "gtfs-path":
			cfg.GTFSPath = *gtfsPath
		case "gtfs-url":
			cfg.GTFSURL = *gtfsURL
		case "vehicle-positions-url":
			cfg.VehiclePositionsURL = *vehiclesURL
		case "trip-updates-url":
			cfg.TripUpdatesURL = *tripUpdatesURL
		case "poll-interval":
			cfg.PollInterval = *pollInterval
		case "timezone":
			cfg.Timezone = *timezone
		case "nats-url":
			cfg.NATSURL = *natsURL
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *checkOnly, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, checkOnly bool, logger *slog.Logger) error {
	m := metrics.NewCollector(cfg.PollInterval)

	// Fetch the archive on first run
	if cfg.GTFSURL != "" {
		if err := gtfs.NewDownloader(cfg.GTFSURL, logger).Ensure(ctx, cfg.GTFSPath); err != nil {
			return err
		}
	}

	idx, err := gtfs.BuildFile(cfg.GTFSPath, logger)
	if err != nil {
		var die *gtfs.DataIntegrityError
		if errors.As(err, &die) {
			logger.Error("GTFS archive failed validation", "table", die.Table, "error", die.Err)
		}
		return err
	}
	stats := idx.Stats()
	m.StaticIndexed("routes", stats.Routes)
	m.StaticIndexed("stops", stats.Stops)
	m.StaticIndexed("trips", stats.Trips)
	m.StaticIndexed("stop_times", stats.StopTimes)
	m.StaticIndexed("shapes", stats.Shapes)
	m.StaticIndexed("calendar", stats.Services)
	if checkOnly {
		logger.Info("GTFS archive is valid", "path", cfg.GTFSPath)
		return nil
	}

	db, err := storage.OpenMemory(logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := gtfs.NewImporter(db, logger).Import(ctx, idx); err != nil {
		return err
	}

	loc := cfg.Location(idx.Timezone())
	logger.Info("service timezone", "tz", loc.String())

	rtStore := realtime.NewStore()
	poller := realtime.NewPoller(realtime.PollerConfig{
		VehiclePositionsURL: cfg.VehiclePositionsURL,
		TripUpdatesURL:      cfg.TripUpdatesURL,
		Interval:            cfg.PollInterval,
		Timeout:             cfg.FetchTimeout,
	}, rtStore, m, logger)

	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, m, logger)
		if err != nil {
			// Vehicle fan-out is optional; serve without it.
			logger.Warn("NATS unavailable, vehicle publishing disabled", "error", err)
		} else {
			defer pub.Close()
			poller.PublishTo(pub)
		}
	}

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		poller.Start(ctx)
	}()

	svc := arrivals.NewService(idx, rtStore, loc)
	h := handler.New(idx, svc, rtStore, db, cfg.PollInterval, logger)
	srv := server.New(h, m, cfg.Port, logger)

	err = srv.ListenAndServe(ctx)
	select {
	case <-pollDone:
	case <-time.After(cfg.FetchTimeout):
		logger.Warn("realtime poller did not stop in time")
	}
	return err
}
