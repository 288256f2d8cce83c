package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/internal/repository"
	"github.com/noah-isme/credential-ledger-api/pkg/canonical"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
	"github.com/noah-isme/credential-ledger-api/pkg/jobs"
)

const defaultRevokeReasonMin = 10

type credentialStore interface {
	Create(ctx context.Context, credential *models.Credential) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, credential *models.Credential) error
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	List(ctx context.Context, filter models.CredentialFilter) ([]models.Credential, error)
	HasActiveForSource(ctx context.Context, t models.CredentialType, sourceID string) (bool, error)
	ListAwaitingMint(ctx context.Context, limit int) ([]models.MintRequest, error)
	SetReplacedByTx(ctx context.Context, tx *sqlx.Tx, id, replacementID string) error
}

type studentReader interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

type degreeProposalReader interface {
	GetByID(ctx context.Context, id string) (*models.DegreeProposal, error)
}

type semesterResultReader interface {
	GetByID(ctx context.Context, id string) (*models.SemesterResult, error)
}

type jobRecordWriter interface {
	Create(ctx context.Context, record *models.JobRecord) error
}

type requestDispatcher interface {
	jobDispatcher
	DispatchAs(ctx context.Context, jobID, entityID string, payload models.JobPayload) (models.JobReceipt, error)
}

// CredentialServiceConfig holds issuance policy.
type CredentialServiceConfig struct {
	RevokeReasonMin int
}

// CredentialService owns credential creation and the asynchronous issue/revoke requests.
type CredentialService struct {
	credentials credentialStore
	students    studentReader
	proposals   degreeProposalReader
	results     semesterResultReader
	records     jobRecordWriter
	dispatcher  requestDispatcher
	tx          transactor
	validator   *validator.Validate
	audit       *AuditEmitter
	logger      *zap.Logger
	cfg         CredentialServiceConfig
}

// NewCredentialService constructs the service.
func NewCredentialService(
	credentials credentialStore,
	students studentReader,
	proposals degreeProposalReader,
	results semesterResultReader,
	records jobRecordWriter,
	dispatcher requestDispatcher,
	tx transactor,
	validate *validator.Validate,
	audit *AuditEmitter,
	logger *zap.Logger,
	cfg CredentialServiceConfig,
) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RevokeReasonMin <= 0 {
		cfg.RevokeReasonMin = defaultRevokeReasonMin
	}
	return &CredentialService{
		credentials: credentials,
		students:    students,
		proposals:   proposals,
		results:     results,
		records:     records,
		dispatcher:  dispatcher,
		tx:          tx,
		validator:   newValidator(validate),
		audit:       audit,
		logger:      logger,
		cfg:         cfg,
	}
}

// CreateCredential creates a PENDING credential and fixes its document hash.
func (s *CredentialService) CreateCredential(ctx context.Context, req dto.CreateCredentialRequest, actorID string) (*models.Credential, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid credential payload")
	}
	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		return nil, loadErr(err, "student")
	}

	attributes := make(map[string]string, len(req.Attributes)+4)
	for k, v := range req.Attributes {
		attributes[k] = v
	}
	issuedFor := ""
	switch req.Type {
	case models.CredentialTypeDegree:
		proposal, err := s.proposals.GetByID(ctx, req.SourceID)
		if err != nil {
			return nil, loadErr(err, "degree proposal")
		}
		if proposal.StudentID != student.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "degree proposal belongs to another student")
		}
		if proposal.Status != models.DegreeStatusApproved {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("degree proposal is %s, expected %s", proposal.Status, models.DegreeStatusApproved))
		}
		issuedFor = fmt.Sprintf("%d", proposal.ExpectedYear)
	case models.CredentialTypeSemester:
		result, err := s.results.GetByID(ctx, req.SourceID)
		if err != nil {
			return nil, loadErr(err, "semester result")
		}
		if result.StudentID != student.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "semester result belongs to another student")
		}
		if result.Status != models.ResultStatusPublished {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("semester result is %s, expected %s", result.Status, models.ResultStatusPublished))
		}
		attributes["semester"] = fmt.Sprintf("%d", result.Semester)
		attributes["academicYear"] = fmt.Sprintf("%d", result.AcademicYear)
		attributes["gpa"] = fmt.Sprintf("%.2f", result.GPA)
		attributes["credits"] = fmt.Sprintf("%.1f", result.Credits)
		issuedFor = fmt.Sprintf("%d-S%d", result.AcademicYear, result.Semester)
	}
	if req.Type == models.CredentialTypeDegree || req.Type == models.CredentialTypeSemester {
		exists, err := s.credentials.HasActiveForSource(ctx, req.Type, req.SourceID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check existing credentials")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("an active %s credential already exists for %s", req.Type, req.SourceID))
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle(req.Type)
	}
	credential, err := newCredential(models.CredentialPayload{
		CredentialID: uuid.NewString(),
		Type:         req.Type,
		StudentID:    student.ID,
		StudentName:  student.FullName,
		ProgramID:    student.ProgramID,
		SourceID:     req.SourceID,
		Title:        title,
		Attributes:   attributes,
		IssuedFor:    issuedFor,
	}, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.credentials.Create(ctx, credential); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active credential already exists for this source")
		}
		return nil, appErrors.Internal(err, "failed to create credential")
	}
	s.audit.Emit(ctx, actorID, models.AuditActionCredentialCreate, models.EntityCredential, credential.ID, map[string]interface{}{
		"type":         credential.Type,
		"documentHash": credential.DocumentHash,
	})
	return credential, nil
}

// Get returns one credential.
func (s *CredentialService) Get(ctx context.Context, id string) (*models.Credential, error) {
	credential, err := s.credentials.GetByID(ctx, id)
	if err != nil {
		return nil, loadErr(err, "credential")
	}
	return credential, nil
}

// List returns credentials matching the filter.
func (s *CredentialService) List(ctx context.Context, filter models.CredentialFilter) ([]models.Credential, error) {
	credentials, err := s.credentials.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list credentials")
	}
	if credentials == nil {
		credentials = []models.Credential{}
	}
	return credentials, nil
}

// IssueCredential enqueues the mint of a PENDING credential, provisioning the
// student wallet first when needed. The status flips only when the worker succeeds.
func (s *CredentialService) IssueCredential(ctx context.Context, id, actorID string) (*dto.IssueCredentialResponse, error) {
	credential, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if credential.Status != models.CredentialStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("credential is %s, expected %s", credential.Status, models.CredentialStatusPending))
	}
	student, err := s.students.GetByID(ctx, credential.StudentID)
	if err != nil {
		return nil, loadErr(err, "student")
	}

	receipts := make([]models.JobReceipt, 0, 2)
	mint := models.MintPayload{
		CredentialID: credential.ID,
		DocumentHash: credential.DocumentHash,
		Metadata:     map[string]string{"type": string(credential.Type), "studentId": credential.StudentID},
	}
	if wallet := student.Wallet(); wallet != nil {
		mint.StudentWallet = wallet.Address
	} else {
		receipt, err := s.dispatcher.Dispatch(ctx, student.ID, models.WalletPayload{
			StudentID:          student.ID,
			UserID:             student.UserID,
			ExternalIdentityID: student.ExternalIdentityID,
		})
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}

	receipt, err := s.dispatchRecorded(ctx, credential.ID, mint)
	if err != nil {
		return nil, err
	}
	receipts = append(receipts, receipt)

	s.audit.Emit(ctx, actorID, models.AuditActionCredentialIssue, models.EntityCredential, credential.ID, map[string]interface{}{
		"jobId": receipt.JobID,
	})
	return &dto.IssueCredentialResponse{Credential: credential, Jobs: receipts}, nil
}

// RevokeCredential enqueues the revocation of an ISSUED credential.
func (s *CredentialService) RevokeCredential(ctx context.Context, id string, req dto.RevokeCredentialRequest, actorID string) (*models.JobReceipt, error) {
	reason := strings.TrimSpace(req.Reason)
	if len([]rune(reason)) < s.cfg.RevokeReasonMin {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("revocation reason must be at least %d characters", s.cfg.RevokeReasonMin))
	}
	credential, err := s.issued(ctx, id)
	if err != nil {
		return nil, err
	}
	receipt, err := s.dispatchRecorded(ctx, credential.ID, models.RevokePayload{
		CredentialID: credential.ID,
		TokenID:      *credential.TokenID,
		Reason:       reason,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Emit(ctx, actorID, models.AuditActionCredentialRevoke, models.EntityCredential, credential.ID, map[string]interface{}{
		"jobId":  receipt.JobID,
		"reason": reason,
	})
	return &receipt, nil
}

// ReplaceCredential creates a PENDING successor of an ISSUED credential and
// enqueues the revocation of the original, which ends as REPLACED.
func (s *CredentialService) ReplaceCredential(ctx context.Context, id string, req dto.RevokeCredentialRequest, actorID string) (*dto.ReplaceCredentialResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if len([]rune(reason)) < s.cfg.RevokeReasonMin {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("replacement reason must be at least %d characters", s.cfg.RevokeReasonMin))
	}
	original, err := s.issued(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.ReplacedBy != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "credential already has a replacement")
	}

	payload := original.Payload
	payload.CredentialID = uuid.NewString()
	payload.Attributes = make(map[string]string, len(original.Payload.Attributes)+1)
	for k, v := range original.Payload.Attributes {
		payload.Attributes[k] = v
	}
	payload.Attributes["replaces"] = original.ID
	replacement, err := newCredential(payload, actorID)
	if err != nil {
		return nil, err
	}

	// The original is linked first so it leaves the one-active-per-source index
	// before its successor is inserted.
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.credentials.SetReplacedByTx(ctx, tx, original.ID, replacement.ID); err != nil {
			return err
		}
		return s.credentials.CreateTx(ctx, tx, replacement)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "replacement already exists")
		}
		return nil, appErrors.Internal(err, "failed to create replacement credential")
	}

	receipt, err := s.dispatchRecorded(ctx, original.ID, models.RevokePayload{
		CredentialID:  original.ID,
		TokenID:       *original.TokenID,
		Reason:        reason,
		Replace:       true,
		ReplacementID: replacement.ID,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Emit(ctx, actorID, models.AuditActionCredentialRevoke, models.EntityCredential, original.ID, map[string]interface{}{
		"jobId":         receipt.JobID,
		"replacementId": replacement.ID,
	})
	return &dto.ReplaceCredentialResponse{Replacement: replacement, Job: receipt}, nil
}

// RecoverPendingMints re-enqueues recorded mint requests that never reached an
// outcome, under their recorded job ids. Requests still live in the queue are skipped.
func (s *CredentialService) RecoverPendingMints(ctx context.Context, limit int) (int, error) {
	requests, err := s.credentials.ListAwaitingMint(ctx, limit)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to list credentials awaiting mint")
	}
	recovered := 0
	for _, req := range requests {
		_, err := s.dispatcher.DispatchAs(ctx, req.JobID, req.CredentialID, models.MintPayload{
			CredentialID: req.CredentialID,
			DocumentHash: req.DocumentHash,
		})
		if errors.Is(err, jobs.ErrAlreadyQueued) {
			continue
		}
		if err != nil {
			return recovered, err
		}
		recovered++
	}
	if recovered > 0 {
		s.logger.Info("re-enqueued pending mints", zap.Int("count", recovered), zap.Int("outstanding", len(requests)))
	}
	return recovered, nil
}

func (s *CredentialService) issued(ctx context.Context, id string) (*models.Credential, error) {
	credential, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if credential.Status != models.CredentialStatusIssued || credential.TokenID == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("credential is %s, expected %s", credential.Status, models.CredentialStatusIssued))
	}
	return credential, nil
}

// dispatchRecorded writes the PENDING request row before enqueueing, so a
// request whose enqueue is lost is still found by RecoverPendingMints.
func (s *CredentialService) dispatchRecorded(ctx context.Context, entityID string, payload models.JobPayload) (models.JobReceipt, error) {
	jobID := uuid.NewString()
	if s.records != nil {
		err := s.records.Create(ctx, &models.JobRecord{
			JobID:    jobID,
			Type:     payload.JobType(),
			Status:   models.JobRecordPending,
			EntityID: entityID,
		})
		if err != nil {
			return models.JobReceipt{}, appErrors.Internal(err, "failed to record job request")
		}
	}
	return s.dispatcher.DispatchAs(ctx, jobID, entityID, payload)
}

func newCredential(payload models.CredentialPayload, actorID string) (*models.Credential, error) {
	hash, err := canonical.Hash(payload)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash credential payload")
	}
	now := time.Now().UTC()
	return &models.Credential{
		ID:           payload.CredentialID,
		StudentID:    payload.StudentID,
		Type:         payload.Type,
		Status:       models.CredentialStatusPending,
		SourceID:     payload.SourceID,
		DocumentHash: hash,
		Payload:      payload,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func defaultTitle(t models.CredentialType) string {
	switch t {
	case models.CredentialTypeDegree:
		return "Degree Certificate"
	case models.CredentialTypeSemester:
		return "Semester Result"
	default:
		return "Certificate"
	}
}
