package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

type semesterResultStore interface {
	GetByID(ctx context.Context, id string) (*models.SemesterResult, error)
	Transition(ctx context.Context, id string, from, to models.SemesterResultStatus) error
}

type jobDispatcher interface {
	Dispatch(ctx context.Context, entityID string, payload models.JobPayload) (models.JobReceipt, error)
}

// SemesterResultService publishes semester results through SEMESTER_RESULT approvals.
// Published results are anchored on the ledger when a dispatcher is configured.
type SemesterResultService struct {
	results    semesterResultStore
	approvals  *ApprovalService
	dispatcher jobDispatcher
	audit      *AuditEmitter
	logger     *zap.Logger
}

// NewSemesterResultService registers the service as the SEMESTER_RESULT decision handler.
func NewSemesterResultService(results semesterResultStore, approvals *ApprovalService, dispatcher jobDispatcher, audit *AuditEmitter, logger *zap.Logger) *SemesterResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SemesterResultService{
		results:    results,
		approvals:  approvals,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
	}
	if approvals != nil {
		approvals.RegisterDecisionHandler(models.ApprovalTypeSemesterResult, svc)
	}
	return svc
}

// SubmitForApproval moves a DRAFT result into review.
func (s *SemesterResultService) SubmitForApproval(ctx context.Context, resultID, actorID string) (*models.SemesterResult, error) {
	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return nil, loadErr(err, "semester result")
	}
	if err := s.transition(ctx, result, models.ResultStatusDraft, models.ResultStatusPendingApproval); err != nil {
		return nil, err
	}
	if _, err := s.approvals.pendingApproval(ctx, models.ApprovalTypeSemesterResult, models.EntitySemesterResult, result.ID, 1, actorID); err != nil {
		return nil, err
	}
	return result, nil
}

// HandleDecision publishes or rejects the result under review.
func (s *SemesterResultService) HandleDecision(ctx context.Context, event DecisionEvent) error {
	result, err := s.results.GetByID(ctx, event.Approval.EntityID)
	if err != nil {
		return loadErr(err, "semester result")
	}
	next := models.ResultStatusRejected
	if event.Decision == models.DecisionApprove {
		next = models.ResultStatusPublished
	}
	if err := s.transition(ctx, result, models.ResultStatusPendingApproval, next); err != nil {
		return err
	}
	if next != models.ResultStatusPublished || s.dispatcher == nil {
		return nil
	}
	if _, err := s.dispatcher.Dispatch(ctx, result.ID, models.SemesterReportPayload{ResultID: result.ID}); err != nil {
		// The result stays published; anchoring can be re-requested.
		s.logger.Warn("failed to enqueue semester report", zap.String("result_id", result.ID), zap.Error(err))
	}
	return nil
}

func (s *SemesterResultService) transition(ctx context.Context, result *models.SemesterResult, from, to models.SemesterResultStatus) error {
	if result.Status != from {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("semester result is %s, expected %s", result.Status, from))
	}
	if err := s.results.Transition(ctx, result.ID, from, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "semester result changed concurrently")
		}
		return appErrors.Internal(err, "failed to update semester result")
	}
	result.Status = to
	return nil
}
