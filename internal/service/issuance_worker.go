package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
	"github.com/noah-isme/credential-ledger-api/pkg/jobs"
	"github.com/noah-isme/credential-ledger-api/pkg/ledger"
)

var errWalletPending = errors.New("student wallet not provisioned yet")

type issuanceCredentialStore interface {
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	MarkIssuedTx(ctx context.Context, tx *sqlx.Tx, issued models.CredentialIssued) error
	MarkWithdrawnTx(ctx context.Context, tx *sqlx.Tx, withdrawn models.CredentialWithdrawn) error
}

type issuanceProposalStore interface {
	GetByID(ctx context.Context, id string) (*models.DegreeProposal, error)
	MarkIssuedTx(ctx context.Context, tx *sqlx.Tx, id, credentialID string) error
}

type jobRecordStore interface {
	Create(ctx context.Context, record *models.JobRecord) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, record *models.JobRecord) error
}

type walletEnsurer interface {
	EnsureWallet(ctx context.Context, studentID string) (*models.WalletRecord, error)
}

type chainSyncer interface {
	RegisterStudent(ctx context.Context, studentID string) error
	SubmitSemesterReport(ctx context.Context, resultID string) error
}

type jobRegistrar interface {
	Name() string
	Handle(jobType string, handler jobs.Handler)
}

// IssuanceWorkerDeps groups the collaborators of the worker.
type IssuanceWorkerDeps struct {
	Credentials issuanceCredentialStore
	Students    studentReader
	Proposals   issuanceProposalStore
	Records     jobRecordStore
	Contract    ledger.Contract
	Wallets     walletEnsurer
	ChainSync   chainSyncer
	Tx          transactor
	Audit       *AuditEmitter
	Logger      *zap.Logger
}

// IssuanceWorker executes pipeline jobs. Every handler re-reads its entity and
// treats an already-applied outcome as success, so redelivery is harmless.
type IssuanceWorker struct {
	credentials issuanceCredentialStore
	students    studentReader
	proposals   issuanceProposalStore
	records     jobRecordStore
	contract    ledger.Contract
	wallets     walletEnsurer
	chain       chainSyncer
	tx          transactor
	audit       *AuditEmitter
	logger      *zap.Logger
	now         func() time.Time
}

// NewIssuanceWorker constructs the worker.
func NewIssuanceWorker(deps IssuanceWorkerDeps) *IssuanceWorker {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssuanceWorker{
		credentials: deps.Credentials,
		students:    deps.Students,
		proposals:   deps.Proposals,
		records:     deps.Records,
		contract:    deps.Contract,
		wallets:     deps.Wallets,
		chain:       deps.ChainSync,
		tx:          deps.Tx,
		audit:       deps.Audit,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register binds handlers to the queues that own their job types.
func (w *IssuanceWorker) Register(queues ...jobRegistrar) {
	for _, q := range queues {
		switch q.Name() {
		case models.QueueLedger:
			q.Handle(string(models.JobTypeMint), w.HandleMint)
			q.Handle(string(models.JobTypeRevoke), w.HandleRevoke)
			q.Handle(string(models.JobTypeRegisterStudent), w.HandleRegisterStudent)
			q.Handle(string(models.JobTypeSubmitSemesterReport), w.HandleSemesterReport)
		case models.QueueWallets:
			q.Handle(string(models.JobTypeCreateStudentWallet), w.HandleCreateWallet)
		default:
			w.logger.Warn("no handlers for queue", zap.String("queue", q.Name()))
		}
	}
}

// HandleMint mints the token of a PENDING credential and marks it ISSUED.
func (w *IssuanceWorker) HandleMint(ctx context.Context, job jobs.Job) error {
	var payload models.MintPayload
	if err := job.Decode(&payload); err != nil || payload.CredentialID == "" {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mint payload")
	}
	credential, err := w.credentials.GetByID(ctx, payload.CredentialID)
	if err != nil {
		return loadErr(err, "credential")
	}
	if credential.Status != models.CredentialStatusPending {
		w.logger.Info("mint skipped, credential already handled",
			zap.String("credential_id", credential.ID),
			zap.String("status", string(credential.Status)),
		)
		return nil
	}
	student, err := w.students.GetByID(ctx, credential.StudentID)
	if err != nil {
		return loadErr(err, "student")
	}
	wallet := student.Wallet()
	if wallet == nil {
		return appErrors.External(errWalletPending, "student wallet not provisioned yet")
	}
	documentHash, err := ledger.EncodeHash(credential.DocumentHash)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrIntegrity.Code, appErrors.ErrIntegrity.Status, "stored document hash is malformed")
	}

	proposalID := ""
	if credential.Type == models.CredentialTypeDegree {
		proposalID, err = w.mintableProposal(ctx, credential)
		if err != nil {
			return err
		}
	}

	result, err := w.mintOnce(ctx, wallet.Address, documentHash)
	if err != nil {
		return err
	}

	issuedAt := w.now()
	output, _ := json.Marshal(map[string]string{"tokenId": result.TokenID, "txHash": result.TxHash})
	err = w.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := w.credentials.MarkIssuedTx(ctx, tx, models.CredentialIssued{
			CredentialID: credential.ID,
			TokenID:      result.TokenID,
			TxHash:       result.TxHash,
			IssuedAt:     issuedAt,
		}); err != nil {
			return err
		}
		if proposalID != "" {
			if err := w.proposals.MarkIssuedTx(ctx, tx, proposalID, credential.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}
		return w.records.CreateTx(ctx, tx, &models.JobRecord{
			JobID:       job.ID,
			Type:        models.JobTypeMint,
			Status:      models.JobRecordCompleted,
			EntityID:    credential.ID,
			Output:      output,
			Attempts:    job.Attempt + 1,
			CompletedAt: &issuedAt,
		})
	})
	if errors.Is(err, sql.ErrNoRows) {
		w.logger.Info("credential issued concurrently", zap.String("credential_id", credential.ID))
		return nil
	}
	if err != nil {
		return appErrors.Internal(err, "failed to record mint")
	}

	w.logger.Info("credential minted",
		zap.String("credential_id", credential.ID),
		zap.String("token_id", result.TokenID),
		zap.String("tx_hash", result.TxHash),
	)
	w.audit.Emit(ctx, models.SystemActor, models.AuditActionCredentialMinted, models.EntityCredential, credential.ID, map[string]interface{}{
		"tokenId": result.TokenID,
		"txHash":  result.TxHash,
		"jobId":   job.ID,
	})
	return nil
}

// mintableProposal returns the id of the APPROVED proposal a DEGREE credential
// will bind on mint. A proposal that is missing, not approved, or bound to
// another credential makes the mint fail for good.
func (w *IssuanceWorker) mintableProposal(ctx context.Context, credential *models.Credential) (string, error) {
	proposal, err := w.proposals.GetByID(ctx, credential.SourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrIntegrity, "degree credential has no proposal")
		}
		return "", appErrors.Internal(err, "failed to load degree proposal")
	}
	if proposal.CredentialID != nil && *proposal.CredentialID != credential.ID {
		return "", appErrors.Clone(appErrors.ErrInvalidState, "degree proposal is bound to another credential")
	}
	if proposal.Status != models.DegreeStatusApproved {
		return "", appErrors.Clone(appErrors.ErrInvalidState, "degree proposal is "+string(proposal.Status)+", expected "+string(models.DegreeStatusApproved))
	}
	return proposal.ID, nil
}

// mintOnce adopts a token already minted for the hash by an earlier attempt
// whose database update was lost; otherwise it mints.
func (w *IssuanceWorker) mintOnce(ctx context.Context, wallet string, documentHash [32]byte) (*ledger.MintResult, error) {
	tokenID, err := w.contract.TokenOfHash(ctx, documentHash)
	if err != nil {
		if !errors.Is(err, ledger.ErrTokenNotFound) {
			return nil, err
		}
		return w.contract.MintCredential(ctx, wallet, documentHash)
	}
	state, err := w.contract.GetCredential(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if state.MintTxHash == "" {
		return nil, appErrors.Clone(appErrors.ErrIntegrity, "ledger token exists without a mint transaction")
	}
	w.logger.Warn("adopting token minted by an earlier attempt", zap.String("token_id", tokenID))
	return &ledger.MintResult{TokenID: tokenID, TxHash: state.MintTxHash}, nil
}

// HandleRevoke revokes the token of an ISSUED credential and marks it REVOKED or REPLACED.
func (w *IssuanceWorker) HandleRevoke(ctx context.Context, job jobs.Job) error {
	var payload models.RevokePayload
	if err := job.Decode(&payload); err != nil || payload.CredentialID == "" {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revoke payload")
	}
	credential, err := w.credentials.GetByID(ctx, payload.CredentialID)
	if err != nil {
		return loadErr(err, "credential")
	}
	if credential.Status.Withdrawn() {
		w.logger.Info("revoke skipped, credential already withdrawn", zap.String("credential_id", credential.ID))
		return nil
	}
	if credential.Status != models.CredentialStatusIssued || credential.TokenID == nil {
		return appErrors.Clone(appErrors.ErrInvalidState, "credential is not ISSUED")
	}
	tokenID := *credential.TokenID

	state, err := w.contract.GetCredential(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ledger.ErrTokenNotFound) {
			return appErrors.Wrap(err, appErrors.ErrIntegrity.Code, appErrors.ErrIntegrity.Status, "issued credential token missing on ledger")
		}
		return err
	}
	txHash := ""
	if !state.Revoked {
		txHash, err = w.contract.RevokeCredential(ctx, tokenID, payload.Reason)
		if err != nil {
			return err
		}
	}

	status := models.CredentialStatusRevoked
	if payload.Replace {
		status = models.CredentialStatusReplaced
	}
	revokedAt := w.now()
	output, _ := json.Marshal(map[string]string{"tokenId": tokenID, "txHash": txHash, "status": string(status)})
	err = w.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := w.credentials.MarkWithdrawnTx(ctx, tx, models.CredentialWithdrawn{
			CredentialID: credential.ID,
			Status:       status,
			Reason:       payload.Reason,
			RevokedAt:    revokedAt,
		}); err != nil {
			return err
		}
		return w.records.CreateTx(ctx, tx, &models.JobRecord{
			JobID:       job.ID,
			Type:        models.JobTypeRevoke,
			Status:      models.JobRecordCompleted,
			EntityID:    credential.ID,
			Output:      output,
			Attempts:    job.Attempt + 1,
			CompletedAt: &revokedAt,
		})
	})
	if errors.Is(err, sql.ErrNoRows) {
		w.logger.Info("credential withdrawn concurrently", zap.String("credential_id", credential.ID))
		return nil
	}
	if err != nil {
		return appErrors.Internal(err, "failed to record revoke")
	}

	w.logger.Info("credential revoked",
		zap.String("credential_id", credential.ID),
		zap.String("token_id", tokenID),
		zap.String("status", string(status)),
	)
	w.audit.Emit(ctx, models.SystemActor, models.AuditActionCredentialVoided, models.EntityCredential, credential.ID, map[string]interface{}{
		"tokenId":       tokenID,
		"txHash":        txHash,
		"status":        status,
		"replacementId": payload.ReplacementID,
	})
	return nil
}

// HandleCreateWallet provisions the student's custodial wallet.
func (w *IssuanceWorker) HandleCreateWallet(ctx context.Context, job jobs.Job) error {
	var payload models.WalletPayload
	if err := job.Decode(&payload); err != nil || payload.StudentID == "" {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid wallet payload")
	}
	_, err := w.wallets.EnsureWallet(ctx, payload.StudentID)
	return err
}

// HandleRegisterStudent writes the student record to the ledger.
func (w *IssuanceWorker) HandleRegisterStudent(ctx context.Context, job jobs.Job) error {
	var payload models.RegisterStudentPayload
	if err := job.Decode(&payload); err != nil || payload.StudentID == "" {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}
	return w.chain.RegisterStudent(ctx, payload.StudentID)
}

// HandleSemesterReport anchors a published semester result.
func (w *IssuanceWorker) HandleSemesterReport(ctx context.Context, job jobs.Job) error {
	var payload models.SemesterReportPayload
	if err := job.Decode(&payload); err != nil || payload.ResultID == "" {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester report payload")
	}
	return w.chain.SubmitSemesterReport(ctx, payload.ResultID)
}

// HandleExhausted appends the FAILED outcome of a job that will not be retried.
// The entity keeps its prior status for manual remediation.
func (w *IssuanceWorker) HandleExhausted(ctx context.Context, job jobs.Job, cause error) {
	message := cause.Error()
	failedAt := w.now()
	entityID := jobEntityID(job)
	record := &models.JobRecord{
		JobID:       job.ID,
		Type:        models.JobType(job.Type),
		Status:      models.JobRecordFailed,
		EntityID:    entityID,
		Attempts:    job.Attempt,
		Error:       &message,
		CompletedAt: &failedAt,
	}
	if err := w.records.Create(ctx, record); err != nil {
		w.logger.Error("failed to record exhausted job",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Error(err),
		)
	}
	w.audit.Emit(ctx, models.SystemActor, models.AuditActionJobFailed, "job", job.ID, map[string]interface{}{
		"type":     job.Type,
		"entityId": entityID,
		"attempts": job.Attempt,
		"error":    message,
	})
}

func jobEntityID(job jobs.Job) string {
	var ref struct {
		CredentialID string `json:"credentialId"`
		StudentID    string `json:"studentId"`
		ResultID     string `json:"resultId"`
	}
	if err := job.Decode(&ref); err != nil {
		return ""
	}
	switch {
	case ref.CredentialID != "":
		return ref.CredentialID
	case ref.ResultID != "":
		return ref.ResultID
	default:
		return ref.StudentID
	}
}
