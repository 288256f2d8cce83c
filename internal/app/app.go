// Package app assembles the handles shared by the API and worker binaries.
package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/internal/repository"
	"github.com/noah-isme/credential-ledger-api/pkg/config"
	"github.com/noah-isme/credential-ledger-api/pkg/jobs"
	"github.com/noah-isme/credential-ledger-api/pkg/ledger"
)

// Ledger drivers accepted by LEDGER_DRIVER.
const (
	LedgerDriverMemory  = "memory"
	LedgerDriverGateway = "gateway"
)

// Repositories groups the sqlx repositories over one pool.
type Repositories struct {
	Approvals   *repository.ApprovalRepository
	Audit       *repository.AuditRepository
	Credentials *repository.CredentialRepository
	Proposals   *repository.DegreeProposalRepository
	JobRecords  *repository.JobRecordRepository
	Results     *repository.SemesterResultRepository
	ShareLinks  *repository.ShareLinkRepository
	Students    *repository.StudentRepository
	Tx          *repository.TxManager
}

// NewRepositories builds every repository over db.
func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Approvals:   repository.NewApprovalRepository(db),
		Audit:       repository.NewAuditRepository(db),
		Credentials: repository.NewCredentialRepository(db),
		Proposals:   repository.NewDegreeProposalRepository(db),
		JobRecords:  repository.NewJobRecordRepository(db),
		Results:     repository.NewSemesterResultRepository(db),
		ShareLinks:  repository.NewShareLinkRepository(db),
		Students:    repository.NewStudentRepository(db),
		Tx:          repository.NewTxManager(db),
	}
}

// NewLedger selects the contract driver. The memory driver lives inside one
// process and is only meant for local runs of the worker.
func NewLedger(cfg config.LedgerConfig, logger *zap.Logger) (ledger.Contract, error) {
	switch cfg.Driver {
	case "", LedgerDriverMemory:
		logger.Warn("using in-memory ledger; tokens do not survive a restart")
		return ledger.NewMemoryLedger(), nil
	case LedgerDriverGateway:
		if cfg.ContractAddress == "" {
			return nil, fmt.Errorf("LEDGER_CONTRACT_ADDRESS is required for the gateway driver")
		}
		var signer ledger.Signer
		if cfg.SignerSeedHex != "" {
			s, err := ledger.NewEd25519Signer(cfg.SignerSeedHex)
			if err != nil {
				return nil, err
			}
			signer = s
		}
		return ledger.NewGatewayClient(ledger.GatewayConfig{
			BaseURL:         cfg.GatewayURL,
			ContractAddress: cfg.ContractAddress,
			ChainID:         cfg.ChainID,
			Timeout:         cfg.Timeout,
		}, signer, nil, logger.Named("ledger")), nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

// Queues holds the pipeline queues over one redis broker.
type Queues struct {
	Broker  *jobs.RedisBroker
	Ledger  *jobs.Queue
	Wallets *jobs.Queue
}

// QueueHooks are the worker-side callbacks; the API leaves them empty since it
// only enqueues.
type QueueHooks struct {
	Observer       jobs.Observer
	OnExhausted    jobs.ExhaustedFunc
	RecoverOnStart bool
}

// NewQueues builds the ledger and wallet queues. Ledger writes run one at a
// time so the signer nonce stays ordered.
func NewQueues(client redis.UniversalClient, cfg config.IssuanceConfig, logger *zap.Logger, hooks QueueHooks) *Queues {
	broker := jobs.NewRedisBroker(client, cfg.QueuePrefix)
	base := jobs.QueueConfig{
		MaxAttempts:    cfg.MaxAttempts,
		Backoff:        jobs.NewBackoff(cfg.BackoffStrategy, cfg.BackoffBase, cfg.BackoffMax),
		PollTimeout:    cfg.PollTimeout,
		Logger:         logger,
		Observer:       hooks.Observer,
		OnExhausted:    hooks.OnExhausted,
		RecoverOnStart: hooks.RecoverOnStart,
	}

	ledgerCfg := base
	ledgerCfg.Concurrency = 1
	if cfg.LedgerConcurrency > 1 {
		logger.Warn("ledger queue concurrency forced to 1", zap.Int("configured", cfg.LedgerConcurrency))
	}

	walletCfg := base
	walletCfg.Concurrency = cfg.WalletConcurrency

	return &Queues{
		Broker:  broker,
		Ledger:  jobs.NewQueue(models.QueueLedger, broker, ledgerCfg),
		Wallets: jobs.NewQueue(models.QueueWallets, broker, walletCfg),
	}
}
