// internal/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"builder-licensing/internal/audit"
	"builder-licensing/internal/cache"
	"builder-licensing/internal/common/config"
	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/common/observability"
	"builder-licensing/internal/lifecycle"
	"builder-licensing/internal/models"
	"builder-licensing/internal/store"
	"builder-licensing/pkg/tiers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LicenseStore is the store surface the HTTP handlers use.
type LicenseStore interface {
	Issue(ctx context.Context, p store.IssueParams) (*models.License, bool, error)
	GetByKey(ctx context.Context, key string) (*models.License, error)
	GetBySourcePaymentID(ctx context.Context, paymentID string) (*models.License, error)
	List(ctx context.Context) ([]*models.License, error)
	Extend(ctx context.Context, key string, days int, now time.Time) (*models.License, error)
	Revoke(ctx context.Context, key, reason string, now time.Time) (bool, error)
	Stats(ctx context.Context) (*store.LicenseStats, error)
}

// JobQueue is the queue surface the HTTP handlers use.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.NotificationJob) error
	PeekPending(ctx context.Context, limit, maxRetries int) ([]*models.NotificationJob, error)
	Resolve(ctx context.Context, id, outcome string, maxRetries int, now time.Time) (*models.NotificationJob, error)
	Stats(ctx context.Context) (*store.QueueStats, error)
}

// Sweeper runs one lifecycle pass on demand.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*lifecycle.SweepResult, error)
}

// Pinger reports storage health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server wires the HTTP surface. Construction is dependency injection all
// the way down; nothing here opens connections.
type Server struct {
	cfg      *config.Config
	licenses LicenseStore
	queue    JobQueue
	sweeper  Sweeper
	cache    *cache.ValidationCache
	audit    audit.Recorder
	db       Pinger
	obs      *observability.Observability
	logger   logger.Logger
	tiers    *tiers.Catalog
	clock    func() time.Time
}

type ServerDeps struct {
	Config   *config.Config
	Licenses LicenseStore
	Queue    JobQueue
	Sweeper  Sweeper
	Cache    *cache.ValidationCache // nil disables validation caching
	Audit    audit.Recorder
	DB       Pinger
	Obs      *observability.Observability
	Logger   logger.Logger
	Tiers    *tiers.Catalog   // nil means the built-in lineup
	Clock    func() time.Time // nil means time.Now
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		cfg:      deps.Config,
		licenses: deps.Licenses,
		queue:    deps.Queue,
		sweeper:  deps.Sweeper,
		cache:    deps.Cache,
		audit:    deps.Audit,
		db:       deps.DB,
		obs:      deps.Obs,
		logger:   deps.Logger.WithFields(map[string]interface{}{"component": "api"}),
		tiers:    deps.Tiers,
		clock:    deps.Clock,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.tiers == nil {
		s.tiers = tiers.Default()
	}
	if s.audit == nil {
		s.audit = audit.NopRecorder{}
	}
	return s
}

// Router assembles the route tree. Validation is the only public license
// endpoint; everything mutating is behind the internal key, and the Stripe
// webhook authenticates by signature instead.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/license/validate", s.handleValidate)
	r.Post("/webhooks/stripe", s.handleStripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.requireInternalKey)

		r.Post("/license/issue", s.handleIssue)
		r.Post("/license/extend", s.handleExtend)
		r.Post("/license/revoke", s.handleRevoke)

		r.Get("/admin/licenses", s.handleAdminLicenses)
		r.Get("/admin/stats", s.handleAdminStats)

		r.Post("/notify/enqueue", s.handleEnqueue)
		r.Get("/notify/pending", s.handlePending)
		r.Post("/notify/resolve/{id}", s.handleResolve)

		r.Post("/lifecycle/run", s.handleLifecycleRun)
	})

	return r
}

// NewHTTPServer wraps the router in an http.Server with configured timeouts.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.HTTP.WriteTimeout) * time.Second,
	}
}
