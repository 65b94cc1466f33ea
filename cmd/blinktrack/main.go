package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/blinktrack/internal/config"
	"codeberg.org/mutker/blinktrack/internal/dashboard"
	"codeberg.org/mutker/blinktrack/internal/frame"
	"codeberg.org/mutker/blinktrack/internal/health"
	"codeberg.org/mutker/blinktrack/internal/logger"
	"codeberg.org/mutker/blinktrack/internal/notify"
	"codeberg.org/mutker/blinktrack/internal/pid"
	"codeberg.org/mutker/blinktrack/internal/store"
	"codeberg.org/mutker/blinktrack/internal/telemetry"
	"codeberg.org/mutker/blinktrack/internal/tracker"
	"github.com/nats-io/nats.go"
)

const (
	appName         = "blinktrack"
	shutdownTimeout = 10 * time.Second
)

var (
	cfg     *config.Config
	pidFile *pid.File
	db      *store.Store
	nc      *nats.Conn
	tel     telemetry.Collector
	trk     *tracker.Tracker
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(string(cfg.LogLevel), logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	pidFile = pid.New("")
	if err := pidFile.Write(); err != nil {
		logger.Fatal().Err(err).Str("path", pidFile.Path()).Msg("another instance is running")
	}

	if err := setup(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to initialize")
		cleanup()
		os.Exit(1)
	}

	if err := run(ctx, cancel); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	cleanup()
}

func setup(ctx context.Context) error {
	log := logger.Default()

	var err error
	db, err = store.Open(ctx, store.ConfigFrom(cfg.Database), log.With("store"))
	if err != nil {
		return err
	}

	if cfg.Database.RetentionDays > 0 {
		if _, err := db.Cleanup(ctx, cfg.Database.RetentionDays, time.Now()); err != nil {
			logger.Warn().Err(err).Msg("failed to clean up old records")
		}
	}

	tel, err = telemetry.NewService(telemetry.ConfigFrom(cfg.Telemetry))
	if err != nil {
		return err
	}

	if cfg.Source.Kind == config.SourceNATS || cfg.Source.NATSURL != "" {
		url := cfg.Source.NATSURL
		if url == "" {
			url = nats.DefaultURL
		}
		nc, err = frame.Connect(url, appName)
		if err != nil {
			return err
		}
		logger.Info().Str("url", url).Msg("Connected to NATS")
	}

	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if nc != nil && cfg.Notify.NATSSubject != "" {
		notifiers = append(notifiers, notify.NewNATSNotifier(nc, cfg.Notify.NATSSubject))
	}

	monitor := health.NewMonitor(
		health.NewCooldownGate(cfg.Health.Cooldown, time.Now),
		notifiers,
		cfg.Health.Warmup,
		log,
	)

	hub := dashboard.NewHub(log)

	trk, err = tracker.New(ctx, cfg,
		tracker.WithPersistence(db),
		tracker.WithSourceFactory(openSource),
		tracker.WithMonitor(monitor),
		tracker.WithTelemetry(tel),
		tracker.WithBroadcaster(hub),
		tracker.WithLogger(log),
	)
	if err != nil {
		return err
	}

	if cfg.Dashboard.Enabled {
		srv := dashboard.NewServer(cfg.Dashboard.Addr, trk, db, hub, tel.Handler(), log)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				logger.Error().Err(err).Msg("dashboard failed")
			}
		}()
	}

	return nil
}

func openSource(_ context.Context) (frame.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceNATS:
		return frame.NewNATSSource(nc, cfg.Source.Subject, cfg.Source.ReadTimeout)
	default:
		return frame.OpenReplay(cfg.Source.Path, frame.WithRealtime(cfg.Source.Realtime))
	}
}

func run(ctx context.Context, cancel context.CancelFunc) error {
	if trk.AutoStart() {
		if err := trk.Start(ctx); err != nil {
			return err
		}
	}

	// Without a dashboard nothing can restart tracking, so exit with it.
	if !cfg.Dashboard.Enabled {
		if !trk.AutoStart() {
			logger.Warn().Msg("Dashboard disabled and auto start off, nothing to do")
			return nil
		}
		go func() {
			trk.Wait()
			cancel()
		}()
	}

	<-ctx.Done()

	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if trk != nil {
		if sum, err := trk.Stop(ctx); err == nil {
			logger.Info().
				Int("blinks", sum.Blinks).
				Dur("duration", sum.Duration).
				Float64("blinks_per_minute", sum.BlinksPerMinute()).
				Msg("Session saved")
		}
	}

	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close store")
		}
	}

	if nc != nil {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}

	if tel != nil {
		if err := tel.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close telemetry")
		}
	}

	if pidFile != nil {
		if err := pidFile.Remove(); err != nil {
			logger.Warn().Err(err).Msg("failed to remove pid file")
		}
	}

	logger.Info().Msg("Exiting...")
}
