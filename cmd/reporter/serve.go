package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thatguy/facility-reports/internal/bot"
	"github.com/thatguy/facility-reports/internal/httpapi"
	"github.com/thatguy/facility-reports/internal/logger"
	"github.com/thatguy/facility-reports/internal/metrics"
	"github.com/thatguy/facility-reports/internal/reports"
	"github.com/thatguy/facility-reports/internal/sheet"
	"github.com/thatguy/facility-reports/internal/storage"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the report API, metrics server and Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return err
	}

	log.Info("Starting facility reports service")
	log.Infof("Configuration loaded: %s", cfg)

	if parent == nil {
		parent = context.Background()
	}
	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := cfg.Registry()
	if err != nil {
		log.WithError(err).Error("Invalid facility registry")
		return err
	}

	store, err := storage.New(cfg.DBPath, log.WithComponent("storage"))
	if err != nil {
		log.WithError(err).Error("Failed to initialize storage")
		return err
	}
	defer store.Close()

	subscriberCount, reportCount, err := store.GetStats()
	if err != nil {
		log.WithError(err).Warn("Failed to get startup statistics")
	} else {
		log.InfoWithFields("Database statistics", logger.Fields{
			"subscribers": subscriberCount,
			"reports":     reportCount,
		})
	}

	m := metrics.New()
	m.SetFacilities(float64(registry.Len()))
	m.SetSubscribers(float64(subscriberCount))

	opts := []reports.Option{
		reports.WithLogger(log.WithComponent("reports")),
		reports.WithMetrics(m),
	}

	if cfg.MirrorEnabled {
		mirror, err := sheet.New(cfg.Endpoint, log.WithComponent("sheet_client"))
		if err != nil {
			log.WithError(err).Error("Failed to initialize endpoint client")
			return err
		}
		st := mirror.GetStatus()
		log.InfoWithFields("Endpoint mirror enabled", logger.Fields{
			"endpoint": st.Endpoint,
			"sheet":    st.Sheet,
			"timeout":  st.Timeout.String(),
		})
		opts = append(opts, reports.WithMirror(mirror))
	}

	var tg *bot.Bot
	var svc *reports.Service
	if cfg.TelegramToken != "" {
		// the bot needs the service and the service broadcasts through the bot
		svcRef := &lazyService{}
		tg, err = bot.New(cfg.TelegramToken, store, svcRef, log.WithComponent("telegram_bot"))
		if err != nil {
			log.WithError(err).Error("Failed to initialize Telegram bot")
			return err
		}
		tg.SetMetrics(m)
		opts = append(opts, reports.WithBroadcaster(tg))
		svc = reports.NewService(registry, store, opts...)
		svcRef.Service = svc
	} else {
		log.Warn("TELEGRAM_TOKEN not set, Telegram bot disabled")
		svc = reports.NewService(registry, store, opts...)
	}
	svc.Messages().SetLogger(log.WithComponent("messages"))

	api := httpapi.New(svc, httpapi.Options{
		Endpoint:    cfg.Endpoint,
		UploadDir:   cfg.UploadDir,
		MaxUploadMB: cfg.MaxUploadMB,
		Metrics:     m,
	}, log.WithComponent("http"))

	apiServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	for _, s := range []struct {
		name string
		srv  *http.Server
	}{{"API", apiServer}, {"Metrics", metricsServer}} {
		wg.Add(1)
		go func(name string, srv *http.Server) {
			defer wg.Done()
			log.InfoWithFields("Starting "+name+" server", logger.Fields{"addr": srv.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("%s server failed: %v", name, err)
				stop()
			}
		}(s.name, s.srv)
	}

	if tg != nil {
		log.Info("Starting Telegram bot")
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Error("Telegram bot panicked")
				}
			}()
			tg.Run(ctx)
			log.Info("Telegram bot stopped")
		}()
	}

	log.Info("Facility reports service started successfully")
	<-ctx.Done()
	log.Info("Received shutdown signal, stopping gracefully...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{apiServer, metricsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).WithField("addr", srv.Addr).Warn("Server shutdown failed")
		}
	}

	// Wait for all goroutines to finish or timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("All components stopped gracefully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}
	return nil
}

// lazyService lets the bot be built before the service it queries.
type lazyService struct {
	*reports.Service
}
