package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"credify/internal/admin"
	auditqueue "credify/internal/audit"
	credentialhandler "credify/internal/credential/handler"
	credentialmetrics "credify/internal/credential/metrics"
	credentialservice "credify/internal/credential/service"
	credentialstore "credify/internal/credential/store"
	issuerhandler "credify/internal/issuer/handler"
	"credify/internal/issuer/keys"
	issuermetrics "credify/internal/issuer/metrics"
	issuerservice "credify/internal/issuer/service"
	issuerstore "credify/internal/issuer/store"
	"credify/internal/mailer"
	otpcode "credify/internal/otp/code"
	otphandler "credify/internal/otp/handler"
	otpmetrics "credify/internal/otp/metrics"
	otpservice "credify/internal/otp/service"
	otpstore "credify/internal/otp/store"
	"credify/internal/platform/config"
	"credify/internal/platform/httpserver"
	"credify/internal/platform/logger"
	"credify/internal/platform/metrics"
	"credify/internal/platform/postgres"
	platformredis "credify/internal/platform/redis"
	ratelimitmetrics "credify/internal/ratelimit/metrics"
	ratelimitmw "credify/internal/ratelimit/middleware"
	ratelimitmodels "credify/internal/ratelimit/models"
	"credify/internal/ratelimit/store/bucket"
	httptransport "credify/internal/transport/http"
	"credify/pkg/platform/audit/publishers/kafka"
	auditmemory "credify/pkg/platform/audit/store/memory"
	"credify/pkg/platform/circuit"
	txcontext "credify/pkg/platform/tx"
)

const (
	auditBufferCapacity = 1024
	auditQueueSize      = 4096
)

// main wires configuration, storage and services, then serves HTTP until
// SIGINT or SIGTERM. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type mail interface {
	otpservice.Mailer
	credentialservice.QRMailer
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	masterKey, err := keys.ParseMasterKey(cfg.Security.MasterKey)
	if err != nil {
		return fmt.Errorf("CREDIFY_MASTER_KEY: %w", err)
	}
	health := httptransport.NewHealth(log)

	auditBuffer := auditmemory.NewRingBuffer(auditBufferCapacity)
	sinks, closeAudit := auditSinks(ctx, cfg.Kafka, auditBuffer, log, health)
	defer closeAudit()
	emitter := auditqueue.NewQueue(auditQueueSize)
	auditWorker := auditqueue.NewWorker(sinks, emitter, log)

	var (
		issuers     issuerservice.Store
		txRunner    txcontext.Runner
		credentials credentialservice.Store
	)
	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(ctx, postgres.Config{
			URL:             cfg.Postgres.URL,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		issuers = issuerstore.NewPostgres(db)
		txRunner = txcontext.NewSQLRunner(db, 5*time.Second)
		credentials = credentialstore.NewPostgres(db)
		health.Add("postgres", pingDB(db))
		log.Info("using postgres stores")
	} else {
		mem := issuerstore.NewInMemory()
		issuers, txRunner = mem, mem
		credentials = credentialstore.NewInMemory()
		log.Warn("DATABASE_URL not set, issuers and credentials are kept in memory")
	}

	var (
		codes       otpservice.Store
		buckets     ratelimitmw.Store
		limiterOpts = []ratelimitmw.Option{
			ratelimitmw.WithMetrics(ratelimitmetrics.New()),
			ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		}
	)
	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
		codes = otpstore.NewRedis(rc.Client)
		buckets = bucket.NewRedis(rc.Client)
		limiterOpts = append(limiterOpts, ratelimitmw.WithFallback(bucket.New(), circuit.New("ratelimit-redis")))
		health.Add("redis", rc.Health)
		log.Info("using redis otp store")
	} else {
		codes = otpstore.NewInMemory()
		buckets = bucket.New()
		log.Warn("REDIS_URL not set, otp codes are kept in memory")
	}
	limiter := ratelimitmw.New(buckets, log, limiterOpts...)
	window := cfg.RateLimit.Window

	var (
		sender   mail
		qrMailer credentialservice.QRMailer
	)
	switch {
	case cfg.SMTP.Enabled():
		sender = mailer.New(cfg.SMTP, mailer.WithLogger(log))
		qrMailer = sender
	case cfg.Server.DemoMode:
		sender = mailer.NewLog(log)
		qrMailer = sender
		log.Warn("SMTP_HOST not set, demo mode logs one-time codes")
	default:
		sender = mailer.Disabled{}
		log.Warn("SMTP_HOST not set, email delivery is disabled")
	}

	hasher, err := otpcode.NewHasher(masterKey.Bytes())
	if err != nil {
		return err
	}

	issuerSvc, err := issuerservice.New(issuers, txRunner, masterKey,
		issuerservice.WithLogger(log),
		issuerservice.WithAuditEmitter(emitter),
		issuerservice.WithMetrics(issuermetrics.New()),
	)
	if err != nil {
		return err
	}
	credentialOpts := []credentialservice.Option{
		credentialservice.WithLogger(log),
		credentialservice.WithAuditEmitter(emitter),
		credentialservice.WithMetrics(credentialmetrics.New()),
	}
	if qrMailer != nil {
		credentialOpts = append(credentialOpts, credentialservice.WithMailer(qrMailer))
	}
	credentialSvc, err := credentialservice.New(issuerSvc, credentials, credentialOpts...)
	if err != nil {
		return err
	}
	otpSvc, err := otpservice.New(codes, sender, hasher,
		otpservice.WithLogger(log),
		otpservice.WithAuditEmitter(emitter),
		otpservice.WithMetrics(otpmetrics.New()),
		otpservice.WithTTL(cfg.OTP.TTL),
		otpservice.WithMaxAttempts(cfg.OTP.MaxAttempts),
	)
	if err != nil {
		return err
	}

	issuerH := issuerhandler.New(issuerSvc, log)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:      log,
		AdminToken:  cfg.Security.AdminToken,
		Public: []httptransport.Mountable{
			issuerH,
			otphandler.New(otpSvc, log,
				otphandler.WithSendLimits(
					limiter.PerIP("otp_send", ratelimitmodels.Limit{Requests: cfg.RateLimit.OTPSendPerIP, Window: window}),
					limiter.PerEmail("otp_send", ratelimitmodels.Limit{Requests: cfg.RateLimit.OTPSendPerEmail, Window: window}),
				),
				otphandler.WithVerifyLimits(
					limiter.PerIP("otp_verify", ratelimitmodels.Limit{Requests: cfg.RateLimit.OTPVerifyPerIP, Window: window}),
				),
			),
		},
		Admin: []httptransport.AdminMountable{
			issuerH,
			credentialhandler.New(credentialSvc, log),
			admin.New(auditBuffer, log),
		},
		Health:      health,
		HTTPMetrics: metrics.New(prometheus.DefaultRegisterer),
	})
	srv := httpserver.New(cfg.Server, router)

	// The audit worker stops only after the HTTP server has shut down.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return auditWorker.Run(workerCtx) })
	g.Go(func() error {
		log.Info("starting credify", "addr", cfg.Server.Addr, "demo_mode", cfg.Server.DemoMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		defer stopWorker()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// auditSinks always keeps recent events in buf for the admin view and also
// publishes to Kafka when brokers are configured.
func auditSinks(ctx context.Context, cfg config.KafkaConfig, buf *auditmemory.RingBuffer, log *slog.Logger, health *httptransport.Health) (auditqueue.Fanout, func()) {
	if !cfg.Enabled() {
		return auditqueue.Fanout{buf}, func() {}
	}
	pub, err := kafka.New(cfg.Brokers, cfg.AuditTopic, kafka.WithLogger(log))
	if err != nil {
		log.Error("kafka audit publisher unavailable, keeping events in memory only", "error", err)
		return auditqueue.Fanout{buf}, func() {}
	}
	if err := pub.EnsureTopic(ctx, 3, 1); err != nil {
		log.Warn("could not ensure audit topic", "topic", cfg.AuditTopic, "error", err)
	}
	health.Add("kafka", pub.Ping)
	return auditqueue.Fanout{buf, pub}, pub.Close
}

func pingDB(db *sql.DB) httptransport.Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}
