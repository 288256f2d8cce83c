package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/credential-ledger-api/api/swagger"
	"github.com/noah-isme/credential-ledger-api/internal/app"
	"github.com/noah-isme/credential-ledger-api/internal/handler"
	"github.com/noah-isme/credential-ledger-api/internal/router"
	"github.com/noah-isme/credential-ledger-api/internal/service"
	"github.com/noah-isme/credential-ledger-api/pkg/cache"
	"github.com/noah-isme/credential-ledger-api/pkg/config"
	"github.com/noah-isme/credential-ledger-api/pkg/database"
	"github.com/noah-isme/credential-ledger-api/pkg/ledger"
	"github.com/noah-isme/credential-ledger-api/pkg/logger"
	"github.com/noah-isme/credential-ledger-api/pkg/storage"
)

// @title Credential Ledger API
// @version 1.0.0
// @description Approval workflows, credential issuance and public verification backed by a ledger token registry.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api-gateway")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(context.Background(), db); err != nil {
			logr.Fatal("failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis, cfg.Issuance.PollTimeout)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	repos := app.NewRepositories(db)
	queues := app.NewQueues(redisClient, cfg.Issuance, logr.Named("jobs"), app.QueueHooks{})
	metrics := service.NewMetricsService()
	audit := service.NewAuditEmitter(repos.Audit, logr.Named("audit"))
	dispatcher := service.NewJobDispatcher(logr.Named("dispatch"), queues.Ledger, queues.Wallets)

	// The API never signs; a memory ledger would be a private copy, so the
	// ledger-backed features are only enabled with the gateway driver.
	var contract ledger.Contract
	if cfg.Ledger.Driver == app.LedgerDriverGateway {
		readOnly := cfg.Ledger
		readOnly.SignerSeedHex = ""
		contract, err = app.NewLedger(readOnly, logr)
		if err != nil {
			logr.Fatal("failed to init ledger client", zap.Error(err))
		}
	}

	authSvc := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: firstOrEmpty(cfg.JWT.Audience),
		Leeway:   cfg.JWT.Leeway,
	}, logr.Named("auth"))
	approvalSvc := service.NewApprovalService(repos.Approvals, nil, audit, logr.Named("approvals"))
	degreeSvc := service.NewDegreeService(repos.Proposals, repos.Students, approvalSvc, nil, audit, logr.Named("degrees"))
	resultSvc := service.NewSemesterResultService(repos.Results, approvalSvc, dispatcher, audit, logr.Named("results"))
	credentialSvc := service.NewCredentialService(repos.Credentials, repos.Students, repos.Proposals, repos.Results, repos.JobRecords,
		dispatcher, repos.Tx, nil, audit, logr.Named("credentials"),
		service.CredentialServiceConfig{RevokeReasonMin: cfg.Verification.RevokeReasonMin})
	verificationSvc := service.NewVerificationService(repos.Credentials, repos.ShareLinks,
		storage.NewShareTokenSigner(cfg.Verification.ShareTokenSecret), contract, audit, logr.Named("verification"),
		service.VerificationConfig{ShareLinkTTL: cfg.Verification.ShareLinkTTL, LedgerCheck: cfg.Verification.LedgerCheck})
	jobSvc := service.NewJobService(repos.JobRecords, queues.Broker)

	credentialHandler := handler.NewCredentialHandler(credentialSvc, verificationSvc, nil)
	if contract != nil {
		chainSvc := service.NewChainSyncService(repos.Students, repos.Results, repos.Credentials, contract, logr.Named("chain"))
		credentialHandler = handler.NewCredentialHandler(credentialSvc, verificationSvc, chainSvc)
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler()
	}

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         logr,
		Tokens:         authSvc,
		Observer:       metrics,
		Approvals:      handler.NewApprovalHandler(approvalSvc),
		Degrees:        handler.NewDegreeHandler(degreeSvc),
		Results:        handler.NewSemesterResultHandler(resultSvc),
		Credentials:    credentialHandler,
		Verification:   handler.NewVerificationHandler(verificationSvc, metrics),
		Jobs:           handler.NewJobHandler(jobSvc),
		Metrics: handler.NewMetricsHandler(metricsHandler, map[string]handler.HealthChecker{
			"database": db.PingContext,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
