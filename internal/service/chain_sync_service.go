package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/pkg/canonical"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
	"github.com/noah-isme/credential-ledger-api/pkg/ledger"
)

type chainStudentStore interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	SetLedgerTxHash(ctx context.Context, id, txHash string) error
}

type chainResultStore interface {
	GetByID(ctx context.Context, id string) (*models.SemesterResult, error)
	SetLedgerTxHash(ctx context.Context, id, txHash string) error
}

type credentialReader interface {
	GetByID(ctx context.Context, id string) (*models.Credential, error)
}

// ChainSyncService mirrors student records and published results onto the
// ledger and reports drift between stored credentials and their tokens.
type ChainSyncService struct {
	students    chainStudentStore
	results     chainResultStore
	credentials credentialReader
	contract    ledger.Contract
	logger      *zap.Logger
}

// NewChainSyncService constructs the service.
func NewChainSyncService(students chainStudentStore, results chainResultStore, credentials credentialReader, contract ledger.Contract, logger *zap.Logger) *ChainSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainSyncService{students: students, results: results, credentials: credentials, contract: contract, logger: logger}
}

// StudentArgs encodes the registerStudent arguments.
func StudentArgs(student models.Student) (ledger.StudentRecord, error) {
	if !student.HasWallet() {
		return ledger.StudentRecord{}, appErrors.Clone(appErrors.ErrValidation, "student wallet not provisioned")
	}
	year, err := ledger.EncodeYear(student.EnrollmentYear)
	if err != nil {
		return ledger.StudentRecord{}, validationError(err, "invalid enrollment year")
	}
	return ledger.StudentRecord{
		StudentID:      ledger.EncodeID(student.ID),
		Wallet:         *student.WalletAddress,
		ProgramID:      ledger.EncodeID(student.ProgramID),
		EnrollmentYear: year,
	}, nil
}

// SemesterReportArgs encodes the submitSemesterReport arguments. The report
// hash commits to the canonical result document.
func SemesterReportArgs(result models.SemesterResult) (ledger.SemesterReport, error) {
	semester, err := ledger.EncodeSemester(result.Semester)
	if err != nil {
		return ledger.SemesterReport{}, validationError(err, "invalid semester")
	}
	year, err := ledger.EncodeYear(result.AcademicYear)
	if err != nil {
		return ledger.SemesterReport{}, validationError(err, "invalid academic year")
	}
	gpa, err := ledger.EncodeGPA(result.GPA)
	if err != nil {
		return ledger.SemesterReport{}, validationError(err, "invalid gpa")
	}
	credits, err := ledger.EncodeCredits(result.Credits)
	if err != nil {
		return ledger.SemesterReport{}, validationError(err, "invalid credits")
	}
	digest, err := canonical.Hash(map[string]interface{}{
		"resultId":     result.ID,
		"studentId":    result.StudentID,
		"semester":     semester,
		"academicYear": year,
		"gpa":          gpa,
		"credits":      credits,
	})
	if err != nil {
		return ledger.SemesterReport{}, appErrors.Internal(err, "failed to hash semester report")
	}
	reportHash, err := ledger.EncodeHash(digest)
	if err != nil {
		return ledger.SemesterReport{}, appErrors.Internal(err, "failed to encode semester report hash")
	}
	return ledger.SemesterReport{
		StudentID:    ledger.EncodeID(result.StudentID),
		Semester:     semester,
		AcademicYear: year,
		GPA:          gpa,
		Credits:      credits,
		ReportHash:   reportHash,
	}, nil
}

// RegisterStudent writes the student record once. A student without a wallet
// yields a retryable external error.
func (s *ChainSyncService) RegisterStudent(ctx context.Context, studentID string) error {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return loadErr(err, "student")
	}
	if student.LedgerTxHash != nil {
		return nil
	}
	// Retryable: the wallet job runs on its own queue.
	if !student.HasWallet() {
		return appErrors.External(errWalletPending, "student wallet not provisioned yet")
	}
	args, err := StudentArgs(*student)
	if err != nil {
		return err
	}
	txHash, err := s.contract.RegisterStudent(ctx, args)
	if err != nil {
		return err
	}
	if err := s.students.SetLedgerTxHash(ctx, student.ID, txHash); err != nil {
		return appErrors.Internal(err, "failed to store student registration")
	}
	s.logger.Info("student registered on ledger", zap.String("student_id", student.ID), zap.String("tx_hash", txHash))
	return nil
}

// SubmitSemesterReport anchors a PUBLISHED result, registering its student first.
func (s *ChainSyncService) SubmitSemesterReport(ctx context.Context, resultID string) error {
	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return loadErr(err, "semester result")
	}
	if result.LedgerTxHash != nil {
		return nil
	}
	if result.Status != models.ResultStatusPublished {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("semester result is %s, expected %s", result.Status, models.ResultStatusPublished))
	}
	if err := s.RegisterStudent(ctx, result.StudentID); err != nil {
		return err
	}
	args, err := SemesterReportArgs(*result)
	if err != nil {
		return err
	}
	txHash, err := s.contract.SubmitSemesterReport(ctx, args)
	if err != nil {
		return err
	}
	if err := s.results.SetLedgerTxHash(ctx, result.ID, txHash); err != nil {
		return appErrors.Internal(err, "failed to store semester report transaction")
	}
	return nil
}

// Reconcile compares a credential row with the ledger's view of its token.
func (s *ChainSyncService) Reconcile(ctx context.Context, credentialID string) (*dto.ReconcileReport, error) {
	credential, err := s.credentials.GetByID(ctx, credentialID)
	if err != nil {
		return nil, loadErr(err, "credential")
	}
	report := &dto.ReconcileReport{CredentialID: credential.ID, Drift: []string{}, CheckedAt: time.Now().UTC()}

	hash, err := ledger.EncodeHash(credential.DocumentHash)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrIntegrity.Code, appErrors.ErrIntegrity.Status, "stored document hash is malformed")
	}

	if !credential.Status.HoldsToken() || credential.TokenID == nil {
		tokenID, err := s.contract.TokenOfHash(ctx, hash)
		switch {
		case err == nil:
			report.TokenID = tokenID
			report.Drift = append(report.Drift, fmt.Sprintf("ledger holds token %s for a credential stored as %s", tokenID, credential.Status))
		case !errors.Is(err, ledger.ErrTokenNotFound):
			return nil, err
		}
		report.InSync = len(report.Drift) == 0
		return report, nil
	}

	report.TokenID = *credential.TokenID
	state, err := s.contract.GetCredential(ctx, *credential.TokenID)
	if err != nil {
		if errors.Is(err, ledger.ErrTokenNotFound) {
			report.Drift = append(report.Drift, "token missing on ledger")
			return report, nil
		}
		return nil, err
	}
	if !canonical.EqualHash(state.DocumentHash, credential.DocumentHash) {
		report.Drift = append(report.Drift, "ledger document hash differs from stored hash")
	}
	if credential.Status.Withdrawn() && !state.Revoked {
		report.Drift = append(report.Drift, fmt.Sprintf("credential is %s but token is active on ledger", credential.Status))
	}
	if credential.Status == models.CredentialStatusIssued && state.Revoked {
		report.Drift = append(report.Drift, "token revoked on ledger but credential is ISSUED")
	}
	report.InSync = len(report.Drift) == 0
	return report, nil
}
