package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	enrollmenthandler "proctor/internal/enrollment/handler"
	enrollmentservice "proctor/internal/enrollment/service"
	enrollmentstore "proctor/internal/enrollment/store"
	examhandler "proctor/internal/exam/handler"
	"proctor/internal/exam/lockout"
	exammetrics "proctor/internal/exam/metrics"
	examservice "proctor/internal/exam/service"
	examstore "proctor/internal/exam/store"
	jwttoken "proctor/internal/jwt_token"
	"proctor/internal/platform/config"
	"proctor/internal/platform/health"
	"proctor/internal/platform/httpserver"
	"proctor/internal/platform/logger"
	submissionhandler "proctor/internal/submission/handler"
	submissionservice "proctor/internal/submission/service"
	submissionstore "proctor/internal/submission/store"
	httptransport "proctor/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing proctor API",
		"addr", cfg.Addr,
		"catalog", cfg.CatalogPath,
		"admin_routes", cfg.AdminAPIToken != "",
	)
	if cfg.DevSigningKey() {
		log.Warn("using the development JWT signing key; set JWT_SIGNING_KEY in production")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tests := examstore.NewInMemoryTestStore()
	if cfg.CatalogPath != "" {
		n, err := examstore.LoadCatalog(ctx, tests, cfg.CatalogPath)
		if err != nil {
			return err
		}
		log.Info("catalog loaded", "path", cfg.CatalogPath, "tests", n)
	}

	limiter, err := lockout.New(lockout.NewInMemoryStore(),
		lockout.WithLogger(log),
		lockout.WithConfig(lockout.Config{MaxAttempts: cfg.OTP.MaxAttempts, Duration: cfg.OTP.Lockout}),
	)
	if err != nil {
		return err
	}
	exams, err := examservice.New(tests, limiter,
		examservice.WithLogger(log),
		examservice.WithMetrics(exammetrics.New(reg)),
		examservice.WithOTPTTL(cfg.OTP.TTL),
		examservice.WithBcryptCost(cfg.OTP.BcryptCost),
	)
	if err != nil {
		return err
	}
	enrollment, err := enrollmentservice.New(enrollmentstore.NewInMemoryStore(), enrollmentservice.WithLogger(log))
	if err != nil {
		return err
	}
	submissions, err := submissionservice.New(submissionstore.NewInMemoryStore(), submissionservice.WithLogger(log))
	if err != nil {
		return err
	}
	// The API only validates tokens; cmd/tokengen issues them.
	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, 0)

	probes := health.New()
	probes.RegisterCheck("catalog", func(context.Context) error {
		if cfg.CatalogPath != "" && tests.Count() == 0 {
			return errors.New("catalog is empty")
		}
		return nil
	})

	examH := examhandler.New(exams, log)
	enrollmentH := enrollmenthandler.New(enrollment, log)
	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Tokens:         tokens,
		AdminToken:     cfg.AdminAPIToken,
		TrustedProxies: cfg.TrustedProxies,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Gatherer:       reg,
		Health:         probes,
		Student:        []httptransport.RouteRegistrar{examH, enrollmentH, submissionhandler.New(submissions, log)},
		Admin:          []httptransport.AdminRouteRegistrar{examH, enrollmentH},
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		return httpserver.Serve(ctx, httpserver.New(cfg.Addr, router))
	})
	if cfg.CatalogPath != "" {
		reloader, err := examstore.NewReloader(tests, cfg.CatalogPath, log)
		if err != nil {
			return err
		}
		g.Go(func() error { return reloader.Run(ctx) })
	}
	return g.Wait()
}
