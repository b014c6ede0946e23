// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/geoffreykithuku/books-crawler/internal/api"
	"github.com/geoffreykithuku/books-crawler/internal/books"
	"github.com/geoffreykithuku/books-crawler/internal/clock/system"
	"github.com/geoffreykithuku/books-crawler/internal/config"
	"github.com/geoffreykithuku/books-crawler/internal/crawl"
	"github.com/geoffreykithuku/books-crawler/internal/detect"
	"github.com/geoffreykithuku/books-crawler/internal/extract"
	"github.com/geoffreykithuku/books-crawler/internal/fetch"
	"github.com/geoffreykithuku/books-crawler/internal/fingerprint"
	"github.com/geoffreykithuku/books-crawler/internal/logging"
	"github.com/geoffreykithuku/books-crawler/internal/metrics"
	"github.com/geoffreykithuku/books-crawler/internal/notify"
	"github.com/geoffreykithuku/books-crawler/internal/report"
	"github.com/geoffreykithuku/books-crawler/internal/scheduler"
	"github.com/geoffreykithuku/books-crawler/internal/store/memory"
	"github.com/geoffreykithuku/books-crawler/internal/store/postgres"
)

// App holds the wired service components.
type App struct {
	Cfg          config.Config
	Logger       *zap.Logger
	Store        books.Store
	Notifier     books.Notifier
	Orchestrator *crawl.Orchestrator
	Detector     *detect.Detector
	Reports      *report.Aggregator

	closers []func()
}

// New builds the full component graph from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics.Init()
	a := &App{Cfg: cfg, Logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := a.buildStore(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildNotifier(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	clk := system.Clock{}
	hasher := fingerprint.New()
	parser := extract.NewParser(logger)
	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		Retry: fetch.RetryPolicy{
			MaxAttempts: cfg.HTTP.MaxAttempts,
			BaseDelay:   time.Duration(cfg.HTTP.BackoffInitialSeconds) * time.Second,
			MaxDelay:    time.Duration(cfg.HTTP.BackoffMaxSeconds) * time.Second,
		},
	}, logger)

	a.Orchestrator, err = crawl.New(crawl.Config{
		RootURL:        cfg.Crawler.RootURL,
		CrawlerID:      cfg.Crawler.CrawlerID,
		Concurrency:    cfg.Crawler.Concurrency,
		ItemAttempts:   cfg.Crawler.ItemAttempts,
		ItemRetryDelay: cfg.ItemRetryDelay(),
		FailFast:       cfg.Crawler.FailFast,
	}, fetcher, hasher, parser, a.Store, a.Notifier, clk, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	a.Detector, err = detect.New(detect.Config{
		AlertPriceDeltaPct: cfg.Detector.AlertPriceDeltaPct,
		InStockMarker:      cfg.Detector.InStockMarker,
	}, fetcher, hasher, parser, a.Store, a.Notifier, clk, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build detector: %w", err)
	}

	a.Reports, err = report.New(a.Store, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build report aggregator: %w", err)
	}

	return a, nil
}

func (a *App) buildStore(ctx context.Context, cfg config.Config) error {
	switch cfg.DB.Provider {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("build postgres store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
	default:
		a.Store = memory.New()
	}
	return nil
}

func (a *App) buildNotifier(ctx context.Context, cfg config.Config) error {
	switch cfg.Notify.Provider {
	case "telegram":
		n, err := notify.NewTelegramNotifier(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("build telegram notifier: %w", err)
		}
		a.Notifier = n
	case "pubsub":
		n, err := notify.NewPubSubNotifier(ctx, cfg.Notify.PubSub.ProjectID, cfg.Notify.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("build pubsub notifier: %w", err)
		}
		a.Notifier = n
		a.closers = append(a.closers, func() { _ = n.Close() })
	default:
		a.Notifier = notify.NewLogNotifier(a.Logger)
	}
	return nil
}

// Serve runs the HTTP API and the cron schedules until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	server := api.NewServer(a.Store, a.Reports, system.Clock{}, a.Cfg, a.Logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := scheduler.New(a.Logger)
	if spec := a.Cfg.Schedule.CrawlCron; spec != "" {
		if err := sched.Add(spec, "crawl", a.Orchestrator.Run); err != nil {
			return err
		}
	}
	if spec := a.Cfg.Schedule.DetectCron; spec != "" {
		if err := sched.Add(spec, "detect", a.Detector.Run); err != nil {
			return err
		}
	}
	sched.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", zap.Int("port", a.Cfg.Server.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
