package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"Canada28Bot/internal/actuator"
	"Canada28Bot/internal/config"
	"Canada28Bot/internal/engine"
	"Canada28Bot/internal/feed"
	"Canada28Bot/internal/logger"
	"Canada28Bot/internal/metrics"
	"Canada28Bot/internal/notifier"
	"Canada28Bot/internal/recorder"
	"Canada28Bot/internal/scheduler"
	"Canada28Bot/internal/state"
	"Canada28Bot/internal/web"
)

var log = logger.For("main")

func main() {
	_ = godotenv.Load()

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	log.Infof("Canada28Bot starting (config %s)", cfgPath)

	cfgs := config.NewManager(cfgPath, cfg)

	// Persisted engine state
	store, err := state.Open(cfg.State.Backend, cfg.State.Path, cfg.State.BadgerDir)
	if err != nil {
		log.Fatalf("open state store: %v", err)
	}
	defer store.Close()
	log.Infof("state backend: %s", cfg.State.Backend)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warnf("init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Init Telegram notifier
	var notify notifier.Notifier = notifier.Noop{}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tn, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		if err != nil {
			log.Warnf("init telegram notifier failed, notifications disabled: %v", err)
		} else {
			notify = tn
		}
	} else {
		log.Info("telegram not configured, notifications disabled")
	}

	m := metrics.New()

	src := feed.NewHTTPFeed(cfg.Feed.URL, cfg.Feed.Timeout, cfg.Proxy)
	log.Infof("result feed: %s %s", src.Name(), cfg.Feed.URL)

	eng := engine.New(engine.Deps{
		Config:   cfgs,
		Feed:     src,
		Actuator: actuator.NewSignerActuator(cfg.Actuator.Binary, cfg.Actuator.Timeout, cfg.Actuator.WorkDir),
		Store:    store,
		Recorder: rec,
		Notifier: notify,
		Metrics:  m,
	})

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, eng, notify, rec, cfg.Schedule.RetentionDays)
	if err := sched.RegisterAll(cfg.Schedule.DailyReportCron, cfg.Schedule.PruneCron); err != nil {
		log.Fatalf("register cron tasks: %v", err)
	}
	sched.Start()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	// Control surface
	srv := &http.Server{
		Addr: cfg.Web.Listen,
		Handler: web.New(web.Options{
			Engine:   eng,
			Config:   cfgs,
			Recorder: rec,
			Metrics:  m.Handler(),
			Username: cfg.Web.Username,
			Password: cfg.Web.Password,
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("control surface listening on %s", cfg.Web.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	if cfg.AutoStart {
		log.Info("autostart enabled, starting engine")
		eng.Start()
	}

	log.Info("Canada28Bot is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping...")
	eng.Stop()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
	cancel()
	log.Info("Canada28Bot stopped")
}
