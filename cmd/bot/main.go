package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"lead_bot/internal/accounts"
	"lead_bot/internal/bot"
	"lead_bot/internal/config"
	"lead_bot/internal/listener"
	"lead_bot/internal/metrics"
	"lead_bot/internal/notify"
	"lead_bot/internal/pipeline"
	"lead_bot/internal/scheduler"
	"lead_bot/internal/storage"
	"lead_bot/internal/supervisor"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel, cfg.LogFile)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	accs := accounts.NewStore(cfg.AccountsFile)

	b, err := bot.New(cfg.TelegramBotToken, store, accs, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	notifier := notify.New(b, cfg.DispatchPerSecond)
	pipe := pipeline.New(store, notifier, log,
		pipeline.WithDuplicateWindow(cfg.DuplicateWindow()),
		pipeline.WithRecorder(m),
	)

	sched := scheduler.New(store, pipe, log)
	sched.SetTickInterval(cfg.FeedPollInterval())
	sched.SetRecorder(m)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot")

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { sched.Run(ctx) })

	if cfg.HasMTProto() {
		lcfg := listener.Config{
			APIID:      cfg.TelegramAPIID,
			APIHash:    cfg.TelegramAPIHash,
			SessionDir: cfg.SessionDir,
		}
		sup := supervisor.New(accs, func(acc accounts.Account) supervisor.Runner {
			return listener.New(acc, lcfg, pipe, log)
		}, m, log)
		run(func() { sup.Run(ctx) })
	} else {
		log.Warn("TELEGRAM_API_ID or TELEGRAM_API_HASH not set, account listeners disabled")
	}

	if cfg.MetricsAddr != "" {
		run(func() {
			log.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error("metrics server", "error", err)
			}
		})
	}

	b.Run(ctx)
	cancel()
	wg.Wait()

	log.Info("bot stopped")
}

func newLogger(level, file string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl}))
}
