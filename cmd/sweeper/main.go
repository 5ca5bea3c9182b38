// cmd/sweeper/main.go
//
// One-shot lifecycle pass for cron or manual operation: sweep every
// license, then drain the notification queue once, then exit. The long
// running service does the same work on its ticker; this binary exists for
// deployments that prefer external scheduling.
package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

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
)

func main() {
	skipDrain := flag.Bool("skip-drain", false, "run the lifecycle sweep without delivering notifications")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("sweeper")
	defer obs.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		zapLog.Fatal("postgres unreachable", zap.Error(err))
	}
	if err := store.Migrate(ctx, pg.DB); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Database.Elasticsearch.Enabled {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch init failed", zap.Error(err))
		}
		recorder = audit.NewESRecorder(esClient, cfg.Database.Elasticsearch.AuditIndex, log)
	}

	var invalidator lifecycle.Invalidator
	if cfg.Database.Redis.Address != "" {
		redis, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			zapLog.Fatal("redis init failed", zap.Error(err))
		}
		defer redis.Close()
		ttl := time.Duration(cfg.Database.Redis.CacheTTL) * time.Second
		invalidator = cache.NewValidationCache(redis, ttl, log)
	}

	licenses := store.NewLicenseStore(pg.DB, log)
	windows := lifecycle.WindowsFromDays(
		cfg.Lifecycle.WarnWindowDays,
		cfg.Lifecycle.GraceDays,
		cfg.Lifecycle.FinalWindowDays,
	)
	sweeper := lifecycle.NewSweeper(licenses, windows, recorder, invalidator, obs, log)

	now := time.Now().UTC()
	result, err := sweeper.Sweep(ctx, now)
	if err != nil {
		zapLog.Fatal("sweep failed", zap.Error(err))
	}
	zapLog.Info("sweep done",
		zap.Int("scanned", result.Scanned),
		zap.Int("transitioned", result.Transitioned),
		zap.Int("enqueued", result.Enqueued),
		zap.Int("purged", result.Purged),
		zap.Int("conflicts", result.Conflicts),
	)

	if *skipDrain {
		return
	}

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

	queue := store.NewQueue(pg.DB, log)
	renderer := &notify.Renderer{AppURL: cfg.App.URL, PaymentURL: cfg.App.PaymentURL}
	drainer := notify.NewDrainer(queue, sender, renderer, alerter, obs, log, notify.DrainerConfig{
		BatchSize:   cfg.Lifecycle.DrainBatchSize,
		MaxRetries:  cfg.Lifecycle.MaxRetries,
		ClaimLease:  time.Duration(cfg.Lifecycle.ClaimLease) * time.Minute,
		SendTimeout: time.Duration(cfg.Email.Timeout) * time.Millisecond,
	})

	drained, err := drainer.Drain(ctx, time.Now().UTC())
	if err != nil {
		zapLog.Fatal("drain failed", zap.Error(err))
	}
	zapLog.Info("drain done",
		zap.Int("claimed", drained.Claimed),
		zap.Int("sent", drained.Sent),
		zap.Int("retried", drained.Retried),
		zap.Int("dead", drained.Dead),
	)
}
