// cmd/licensed/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"builder-licensing/internal/api"
	"builder-licensing/internal/audit"
	"builder-licensing/internal/cache"
	"builder-licensing/internal/common/aws"
	"builder-licensing/internal/common/config"
	"builder-licensing/internal/common/database"
	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/common/observability"
	"builder-licensing/internal/lifecycle"
	"builder-licensing/internal/notify"
	"builder-licensing/internal/store"
	"builder-licensing/pkg/tiers"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting licensed...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("licensed")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if err := store.Migrate(ctx, pg.DB); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	// --- Init Redis with retry (validation cache) ---
	var validationCache *cache.ValidationCache
	if cfg.Database.Redis.Address != "" {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")

		ttl := time.Duration(cfg.Database.Redis.CacheTTL) * time.Second
		validationCache = cache.NewValidationCache(redis, ttl, log)
	} else {
		zapLog.Info("Redis not configured, validation cache disabled")
	}

	// --- Init Elasticsearch (audit trail, optional) ---
	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		recorder = audit.NewESRecorder(esClient, cfg.Database.Elasticsearch.AuditIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Stores ---
	licenses := store.NewLicenseStore(pg.DB, log)
	queue := store.NewQueue(pg.DB, log)

	// --- Delivery pipeline ---
	sender, err := notify.NewSender(ctx, cfg.Email)
	if err != nil {
		zapLog.Fatal("email sender init failed", zap.Error(err))
	}

	var alerter notify.Alerter
	if cfg.Alerts.SNSTopicARN != "" {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Alerts.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		alerter = notify.NewSNSAlerter(snsClient, cfg.Alerts.SNSTopicARN, log)
	}

	renderer := &notify.Renderer{
		AppURL:     cfg.App.URL,
		PaymentURL: cfg.App.PaymentURL,
	}
	drainer := notify.NewDrainer(queue, sender, renderer, alerter, obs, log, notify.DrainerConfig{
		BatchSize:   cfg.Lifecycle.DrainBatchSize,
		MaxRetries:  cfg.Lifecycle.MaxRetries,
		ClaimLease:  time.Duration(cfg.Lifecycle.ClaimLease) * time.Minute,
		SendTimeout: time.Duration(cfg.Email.Timeout) * time.Millisecond,
	})

	// --- Lifecycle ---
	windows := lifecycle.WindowsFromDays(
		cfg.Lifecycle.WarnWindowDays,
		cfg.Lifecycle.GraceDays,
		cfg.Lifecycle.FinalWindowDays,
	)
	sweeper := lifecycle.NewSweeper(licenses, windows, recorder, validationCache, obs, log)

	// --- Tier catalog ---
	catalog, err := tiers.Load(cfg.App.TiersPath)
	if err != nil {
		zapLog.Fatal("tier catalog load failed", zap.Error(err))
	}

	// --- HTTP server ---
	server := api.NewServer(api.ServerDeps{
		Config:   cfg,
		Licenses: licenses,
		Queue:    queue,
		Sweeper:  sweeper,
		Cache:    validationCache,
		Audit:    recorder,
		DB:       pg.DB,
		Obs:      obs,
		Logger:   log,
		Tiers:    catalog,
	})
	httpServer := server.NewHTTPServer(fmt.Sprintf(":%d", cfg.HTTP.Port))

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Background sweep + drain ticker ---
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if cfg.Lifecycle.SweepInterval > 0 {
		interval := time.Duration(cfg.Lifecycle.SweepInterval) * time.Minute
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
					now := time.Now().UTC()
					if _, err := sweeper.Sweep(runCtx, now); err != nil {
						log.WithError(err).Error("scheduled sweep failed", nil)
					}
					if _, err := drainer.Drain(runCtx, now); err != nil {
						log.WithError(err).Error("scheduled drain failed", nil)
					}
				}
			}
		}()
		zapLog.Info("lifecycle ticker started", zap.Duration("interval", interval))
	} else {
		zapLog.Info("lifecycle ticker disabled, relying on POST /lifecycle/run")
	}

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zapLog.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancelRun()
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.HTTP.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}
	zapLog.Info("licensed stopped")
}
