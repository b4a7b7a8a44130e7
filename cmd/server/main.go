package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"ledger/internal/attendance/handler"
	attendancemetrics "ledger/internal/attendance/metrics"
	"ledger/internal/attendance/models"
	"ledger/internal/attendance/service"
	"ledger/internal/attendance/store/directory"
	"ledger/internal/attendance/store/record"
	"ledger/internal/platform/auth"
	"ledger/internal/platform/config"
	"ledger/internal/platform/database"
	"ledger/internal/platform/httpserver"
	"ledger/internal/platform/logger"
	"ledger/internal/platform/metrics"
	"ledger/internal/platform/ratelimit"
	redisclient "ledger/internal/platform/redis"
	dErrors "ledger/pkg/domain-errors"
	"ledger/pkg/platform/audit/publisher"
	"ledger/pkg/platform/audit/relay"
	auditmemory "ledger/pkg/platform/audit/store/memory"
	auditpostgres "ledger/pkg/platform/audit/store/postgres"
	"ledger/pkg/platform/httputil"
	"ledger/pkg/platform/middleware/admin"
	authmw "ledger/pkg/platform/middleware/auth"
	"ledger/pkg/platform/middleware/metadata"
	"ledger/pkg/platform/middleware/request"
	"ledger/pkg/platform/middleware/requesttime"
)

// main wires dependencies, serves the API and runs the outbox relay until a
// signal arrives. Business logic lives in internal/attendance.
func main() {
	cfg, err := config.FromEnv(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("ledger stopped with error", "error", err)
		os.Exit(1)
	}
}

type infra struct {
	db       *sql.DB
	redis    *redisclient.Client
	producer *relay.KafkaProducer
	outbox   *auditpostgres.Store
	// pending counts audit events not yet handed to the broker.
	pending func(ctx context.Context) (int, error)
}

func (i *infra) close() {
	if i.producer != nil {
		i.producer.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)

	deps := &infra{}
	defer deps.close()

	svc, err := buildService(ctx, cfg, log, reg, deps)
	if err != nil {
		return err
	}

	limiter, err := buildLimiter(ctx, cfg, log, deps)
	if err != nil {
		return err
	}

	var verifier authmw.TokenValidator
	if cfg.Auth.Disabled {
		log.Warn("authentication disabled")
	} else {
		verifier = auth.NewVerifier(cfg.Auth.SigningKey, cfg.Auth.Issuer)
	}

	router := newRouter(routerDeps{
		handler:  handler.New(svc, log),
		metrics:  httpMetrics,
		limiter:  ratelimit.NewMiddleware(limiter, log, cfg.RateLimit.Requests, cfg.RateLimit.Window, ratelimit.WithDisabled(cfg.RateLimit.Disabled)),
		verifier: verifier,
		health:   healthCheck(deps),
		admin:    outboxStatus(deps),
		adminKey: cfg.Admin.Token,
		logger:   log,
	})
	srv := httpserver.New(cfg.Addr, router, cfg.HTTP, log)

	log.Info("starting ledger", "env", cfg.Environment)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if deps.producer != nil && deps.outbox != nil {
		r := relay.New(deps.outbox, deps.producer,
			relay.WithLogger(log),
			relay.WithInterval(cfg.Audit.PollInterval),
			relay.WithBatchSize(cfg.Audit.BatchSize),
		)
		g.Go(func() error {
			return r.Run(gctx)
		})
	}
	return g.Wait()
}

// buildService selects postgres or in-memory stores. The audit store always
// matches the record store so audit rows commit with the writes they describe.
func buildService(ctx context.Context, cfg config.Server, log *slog.Logger, reg prometheus.Registerer, deps *infra) (*service.Service, error) {
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(attendancemetrics.New(reg)),
	}

	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		records := record.NewInMemory()
		entities := directory.NewInMemory()
		seedDirectory(entities)
		auditStore := auditmemory.NewInMemoryStore()
		deps.pending = func(context.Context) (int, error) { return auditStore.Len(), nil }
		stores := service.Stores{Records: records, Entities: entities}
		opts = append(opts,
			service.WithAuditPublisher(publisher.NewPublisher(auditStore)),
			service.WithTx(service.NewInMemoryTx(stores, records, auditStore)),
		)
		return service.New(records, entities, opts...), nil
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	deps.db = db
	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return nil, err
		}
		log.Info("database migrations applied")
	}

	outbox := auditpostgres.New(db)
	deps.outbox = outbox
	deps.pending = outbox.Pending
	if err := connectBroker(ctx, cfg.Audit, log, deps); err != nil {
		return nil, err
	}

	opts = append(opts,
		service.WithAuditPublisher(publisher.NewPublisher(outbox)),
		service.WithTx(newAttendancePostgresTx(db, cfg.TxTimeout)),
	)
	return service.New(record.NewPostgres(db), directory.NewPostgres(db), opts...), nil
}

func connectBroker(ctx context.Context, cfg config.AuditConfig, log *slog.Logger, deps *infra) error {
	if len(cfg.Brokers) == 0 {
		log.Info("KAFKA_BROKERS not set, audit events stay in the outbox")
		return nil
	}
	producer, err := relay.NewKafkaProducer(cfg.Brokers, cfg.Topic)
	if err != nil {
		return err
	}
	deps.producer = producer
	// -1 lets the broker pick its default replication factor.
	if err := producer.EnsureTopic(ctx, cfg.Partitions, -1); err != nil {
		return err
	}
	log.Info("audit relay configured", "topic", cfg.Topic, "brokers", cfg.Brokers)
	return nil
}

func buildLimiter(ctx context.Context, cfg config.Server, log *slog.Logger, deps *infra) (ratelimit.Limiter, error) {
	client, err := redisclient.Connect(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info("REDIS_URL not set, rate limits are per process")
		return ratelimit.NewInMemory(), nil
	}
	deps.redis = client
	return ratelimit.NewRedis(client.Client), nil
}

// seedDirectory gives the in-memory mode something to register against.
func seedDirectory(dir *directory.InMemory) {
	for _, s := range []models.Subject{
		{ID: 1, DisplayName: "Ada Lovelace"},
		{ID: 2, DisplayName: "Alan Turing"},
		{ID: 3, DisplayName: "Grace Hopper"},
	} {
		dir.PutSubject(s)
	}
	for _, a := range []models.Activity{
		{ID: 1, Title: "Mathematics"},
		{ID: 2, Title: "Computing"},
	} {
		dir.PutActivity(a)
	}
}

type routerDeps struct {
	handler  *handler.Handler
	metrics  *metrics.Metrics
	limiter  *ratelimit.Middleware
	verifier authmw.TokenValidator
	health   http.HandlerFunc
	admin    http.HandlerFunc
	adminKey string
	logger   *slog.Logger
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(chimw.Recoverer)
	r.Use(d.metrics.Middleware)

	r.Get("/health", d.health)
	r.Handle("/metrics", d.metrics.Handler())

	if d.adminKey != "" {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(d.adminKey, d.logger))
			r.Get("/admin/outbox", d.admin)
		})
	}

	r.Group(func(r chi.Router) {
		if d.verifier != nil {
			r.Use(authmw.RequireAuth(d.verifier, d.logger))
		}
		r.Use(d.limiter.Limit)
		d.handler.Register(r)
	})
	return r
}

// healthCheck pings every configured backend.
func healthCheck(deps *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		check := func(name string, err error) {
			if err != nil {
				checks[name] = "unavailable"
				healthy = false
				return
			}
			checks[name] = "ok"
		}
		if deps.db != nil {
			check("database", deps.db.PingContext(ctx))
		}
		if deps.redis != nil {
			check("redis", deps.redis.Health(ctx))
		}
		if deps.producer != nil {
			check("kafka", deps.producer.Ping(ctx))
		}

		status := http.StatusOK
		body := map[string]any{"status": "ok", "checks": checks}
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}

// outboxStatus reports the audit backlog. In-memory mode has no relay, so
// every event counts as pending.
func outboxStatus(deps *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending := 0
		if deps.pending != nil {
			n, err := deps.pending(r.Context())
			if err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count outbox entries"))
				return
			}
			pending = n
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"pending":       pending,
			"relay_enabled": deps.producer != nil,
		})
	}
}
