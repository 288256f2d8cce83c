package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/pkg/custody"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

type walletStudentStore interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	SetWallet(ctx context.Context, wallet models.WalletRecord) (bool, error)
}

// WalletService provisions one custodial wallet per student.
type WalletService struct {
	students walletStudentStore
	custody  custody.Client
	audit    *AuditEmitter
	logger   *zap.Logger

	inflight singleflight.Group
}

// NewWalletService constructs the service.
func NewWalletService(students walletStudentStore, client custody.Client, audit *AuditEmitter, logger *zap.Logger) *WalletService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{
		students: students,
		custody:  client,
		audit:    audit,
		logger:   logger,
	}
}

// EnsureWallet returns the student's wallet, creating it at the custodian when
// absent. Concurrent calls for the same student share one provisioning run and
// the store only accepts the first wallet, so at most one wallet is ever recorded.
func (s *WalletService) EnsureWallet(ctx context.Context, studentID string) (*models.WalletRecord, error) {
	value, err, _ := s.inflight.Do(studentID, func() (interface{}, error) {
		return s.provision(ctx, studentID)
	})
	if err != nil {
		return nil, err
	}
	wallet := *value.(*models.WalletRecord)
	return &wallet, nil
}

func (s *WalletService) provision(ctx context.Context, studentID string) (*models.WalletRecord, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, loadErr(err, "student")
	}
	if wallet := student.Wallet(); wallet != nil {
		return wallet, nil
	}
	if student.ExternalIdentityID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student has no external identity for wallet provisioning")
	}

	created, err := s.custody.CreateWallet(ctx, student.ExternalIdentityID, student.ID)
	if err != nil {
		return nil, err
	}
	record := models.WalletRecord{
		StudentID: student.ID,
		Address:   created.Address,
		WalletID:  created.ID,
		CreatedAt: created.CreatedAt,
	}
	stored, err := s.students.SetWallet(ctx, record)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store student wallet")
	}
	if !stored {
		s.logger.Warn("student wallet set concurrently, discarding custodial wallet",
			zap.String("student_id", student.ID),
			zap.String("wallet_id", created.ID),
		)
		current, err := s.students.GetByID(ctx, studentID)
		if err != nil {
			return nil, loadErr(err, "student")
		}
		if wallet := current.Wallet(); wallet != nil {
			return wallet, nil
		}
		return nil, appErrors.Clone(appErrors.ErrInternal, "student wallet missing after concurrent update")
	}

	s.logger.Info("student wallet provisioned", zap.String("student_id", student.ID), zap.String("address", record.Address))
	s.audit.Emit(ctx, models.SystemActor, models.AuditActionWalletCreated, models.EntityStudent, student.ID, map[string]interface{}{
		"walletAddress": record.Address,
		"walletId":      record.WalletID,
	})
	return &record, nil
}
