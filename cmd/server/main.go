package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/bot"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/config"
	apihttp "github.com/kg46sp8kps-web/gestima-sub002/internal/infra/http"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/infra/logger"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/infra/metrics"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/notify"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/snapshot"
)

func main() {
	cfgPath := flag.String("config", "config/example.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env, cfg.App.LogFormat)

	// workbook names and notification timestamps are shown in the shop's zone
	if loc, err := time.LoadLocation(cfg.App.Timezone); err != nil {
		log.Warn("unknown timezone, keeping local", "timezone", cfg.App.Timezone, "err", err)
	} else {
		time.Local = loc
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
	log.Info("graceful shutdown complete")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	m := metrics.New(prometheus.DefaultRegisterer)
	cache := pricing.NewCache(be.materials)
	writer := pricing.NewCatalogWriter(cache, be.materials)
	pricer := pricing.NewPricer(pricing.Catalog{
		Parts:       be.parts,
		WorkCenters: be.workCenters,
		Materials:   cache,
		Config:      be.config,
	}, pricing.Options{
		Parallelism:   cfg.Pricing.SeriesParallelism,
		MaxQuantities: cfg.Pricing.MaxQuantities,
		Observer:      m,
	}, log)

	var tg *tgbotapi.BotAPI
	var notifier snapshot.Notifier = notify.Nop{}
	if cfg.Telegram.Token != "" {
		tg, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		notifier = notify.NewTelegram(tg, cfg.Telegram.AdminChatID, log)
		log.Info("telegram authorized", "bot", tg.Self.UserName)
	}

	engine := snapshot.New(be.batches, pricer, be.workCenters, snapshot.Options{Notifier: notifier, Recorder: m}, log)

	if tg != nil {
		b := bot.New(tg, log, cfg.Telegram.AdminChatID, bot.Deps{
			Quoter:     pricer,
			Lifecycle:  engine,
			Parts:      be.parts,
			Categories: cache,
			TierWriter: writer,
		})
		go func() {
			if err := b.Run(ctx, 30); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped", "err", err)
			}
		}()
	}

	api := apihttp.NewAPI(apihttp.Deps{
		Pricer:       pricer,
		Engine:       engine,
		Parts:        be.parts,
		Categories:   cache,
		TierWriter:   writer,
		WorkCenters:  be.workCenters,
		SystemConfig: be.config,
	}, log)
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.Handler()
	}
	srv := apihttp.New(cfg.HTTP.Addr, api, metricsHandler)

	errc := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr, "store", cfg.App.Store)

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}
	if tg != nil {
		tg.StopReceivingUpdates()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
