// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesops-console/internal/config"
	"salesops-console/internal/domain/ports/adapter"
	"salesops-console/internal/domain/ports/repository"
	"salesops-console/internal/infra/api"
	"salesops-console/internal/infra/billing"
	pg "salesops-console/internal/infra/db/postgres"
	"salesops-console/internal/infra/logging"
	"salesops-console/internal/infra/metrics"
	"salesops-console/internal/infra/notify"
	red "salesops-console/internal/infra/redis"
	"salesops-console/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop notifier)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Redis (billing auth token) ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	tokens := red.NewTokenStore(redisClient, cfg.Redis.TokenKey)

	// ---- Postgres (payment audit trail, optional) ----
	var audits repository.PaymentAuditRepository
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		audits = pg.NewPaymentAuditRepo(pool)
	} else {
		logger.Warn().Msg("database.url not set, payment history disabled")
	}

	// ---- Billing gateway ----
	gateway := billing.NewGateway(cfg.Billing.AppURL, cfg.Billing.ManagerURL, cfg.Billing.Timeout, tokens, logger)

	// ---- Notifier (Telegram -> noop fallback) ----
	var notifier adapter.Notifier
	if cfg.Notify.TelegramToken != "" && !cfg.Runtime.Dev {
		notifier, err = notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.ChatID)
		if err != nil {
			log.Fatalf("telegram notifier: %v", err)
		}
	} else {
		notifier = notify.NewNoopNotifier(logger)
	}

	// ---- Catalog ----
	packages, err := cfg.Packages()
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	// ---- Use cases ----
	lookup := usecase.NewCustomerLookupController(gateway, logger)
	voucher := usecase.NewVoucherValidator(gateway, logger)
	initiator := usecase.NewTransactionInitiator(gateway, cfg.Bank, logger)
	session := usecase.NewPaymentSessionController(initiator, gateway, audits, notifier, lookup, logger)
	defer session.Close()
	defer voucher.Close()
	defer lookup.Close()

	// ---- HTTP server ----
	auth := api.NewAuthManager(cfg.Security.SessionSecret, !cfg.Runtime.Dev, cfg.Security.SessionTTL)
	srv := api.NewServer(lookup, voucher, session, gateway, audits, auth, packages, cfg.Security.OperatorKey, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("operator api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	cancel()
}
