package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/app"
	"github.com/noah-isme/credential-ledger-api/internal/service"
	"github.com/noah-isme/credential-ledger-api/pkg/cache"
	"github.com/noah-isme/credential-ledger-api/pkg/config"
	"github.com/noah-isme/credential-ledger-api/pkg/custody"
	"github.com/noah-isme/credential-ledger-api/pkg/database"
	"github.com/noah-isme/credential-ledger-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "issuance-worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis, cfg.Issuance.PollTimeout)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	contract, err := app.NewLedger(cfg.Ledger, logr)
	if err != nil {
		logr.Fatal("failed to init ledger", zap.Error(err))
	}

	repos := app.NewRepositories(db)
	metrics := service.NewMetricsService()
	audit := service.NewAuditEmitter(repos.Audit, logr.Named("audit"))

	custodyClient := custody.NewHTTPClient(custody.Config{
		BaseURL:   cfg.Custody.BaseURL,
		APIKey:    cfg.Custody.APIKey,
		RateLimit: cfg.Custody.RateLimit,
		Burst:     cfg.Custody.Burst,
		Timeout:   cfg.Custody.Timeout,
	}, nil)
	wallets := service.NewWalletService(repos.Students, custodyClient, audit, logr.Named("wallets"))
	chain := service.NewChainSyncService(repos.Students, repos.Results, repos.Credentials, contract, logr.Named("chain"))

	worker := service.NewIssuanceWorker(service.IssuanceWorkerDeps{
		Credentials: repos.Credentials,
		Students:    repos.Students,
		Proposals:   repos.Proposals,
		Records:     repos.JobRecords,
		Contract:    contract,
		Wallets:     wallets,
		ChainSync:   chain,
		Tx:          repos.Tx,
		Audit:       audit,
		Logger:      logr.Named("worker"),
	})

	queues := app.NewQueues(redisClient, cfg.Issuance, logr.Named("jobs"), app.QueueHooks{
		Observer:       metrics,
		OnExhausted:    worker.HandleExhausted,
		RecoverOnStart: true,
	})
	worker.Register(queues.Ledger, queues.Wallets)

	dispatcher := service.NewJobDispatcher(logr.Named("dispatch"), queues.Ledger, queues.Wallets)
	credentials := service.NewCredentialService(repos.Credentials, repos.Students, repos.Proposals, repos.Results, repos.JobRecords,
		dispatcher, repos.Tx, nil, audit, logr.Named("credentials"),
		service.CredentialServiceConfig{RevokeReasonMin: cfg.Verification.RevokeReasonMin})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, q := range []interface {
		Start(context.Context) error
		Name() string
	}{queues.Ledger, queues.Wallets} {
		if err := q.Start(ctx); err != nil {
			logr.Fatal("failed to start queue", zap.String("queue", q.Name()), zap.Error(err))
		}
	}

	// Mint requests recorded but never enqueued, or lost with the broker state.
	if _, err := credentials.RecoverPendingMints(ctx, cfg.Issuance.RecoverBatch); err != nil {
		logr.Error("pending mint recovery failed", zap.Error(err))
	}

	var srv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.WorkerPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logr.Info("metrics server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logr.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	logr.Info("issuance worker running", zap.String("ledger_driver", cfg.Ledger.Driver))
	<-ctx.Done()

	queues.Ledger.Stop()
	queues.Wallets.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Error("metrics server shutdown failed", zap.Error(err))
		}
	}
	logr.Info("issuance worker stopped")
}
