// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lesson-checkout/internal/config"
	"lesson-checkout/internal/domain/ports/adapter"
	"lesson-checkout/internal/infra/adapters/access"
	payAdapters "lesson-checkout/internal/infra/adapters/payment"
	"lesson-checkout/internal/infra/adapters/verify"
	pg "lesson-checkout/internal/infra/db/postgres"
	"lesson-checkout/internal/infra/logging"
	"lesson-checkout/internal/infra/metrics"
	red "lesson-checkout/internal/infra/redis"
	"lesson-checkout/internal/infra/sched"
	"lesson-checkout/internal/infra/web"
	"lesson-checkout/internal/reference"
	"lesson-checkout/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (sandbox gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	attemptRepo := pg.NewAttemptRepo(pool)
	grantRepo := pg.NewGrantRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Payment gateway (Paystack, sandbox in dev without a key) ----
	var gateway adapter.CheckoutGateway
	var verifier adapter.Verifier
	if cfg.Runtime.Dev && cfg.Payment.Paystack.SecretKey == "" {
		logger.Warn().Msg("no paystack secret key, using sandbox gateway")
		gateway = payAdapters.NewSandboxGateway()
		verifier = verify.NewStaticVerifier(true, "")
	} else {
		pgw, err := payAdapters.NewPaystackGateway(
			cfg.Payment.Paystack.SecretKey,
			cfg.Payment.Paystack.BaseURL,
			cfg.Payment.Paystack.CallbackURL,
			cfg.Payment.Paystack.CheckoutTTL,
			logger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("paystack gateway")
		}
		gateway = pgw

		verifier, err = verify.NewHTTPVerifier(
			cfg.Payment.Paystack.BaseURL,
			cfg.Payment.Paystack.SecretKey,
			cfg.Payment.Verification.Timeout,
			adapter.FallbackPolicy(cfg.Payment.Verification.FallbackPolicy),
			logger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("verifier")
		}
	}

	// ---- Outcome sink ----
	sink := access.NewRecordingSink(grantRepo, attemptRepo, txManager, logger)

	// ---- Checkout use case ----
	channels := make([]adapter.PaymentChannel, 0, len(cfg.Payment.Channels))
	for _, ch := range cfg.Payment.Channels {
		channels = append(channels, adapter.PaymentChannel(ch))
	}
	refs := reference.NewGenerator(cfg.Payment.Namespace)
	checkoutUC := usecase.NewCheckoutUseCase(gateway, verifier, sink, attemptRepo, refs, channels, cfg.Payment.Currency, logger)

	// ---- Reconciler ----
	reconciler := sched.NewAttemptReconciler(attemptRepo, verifier, sink, gateway.Name(), cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Admin.SessionSecret, cfg.Admin.SecureCookie, cfg.Admin.CookieDomain, cfg.Admin.SessionTTL)
	server := web.NewServer(ctx, checkoutUC, attemptRepo, grantRepo, gateway, auth, locker, rateLimiter, cfg, logger)
	go func() {
		if err := server.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
}
