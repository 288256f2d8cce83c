package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

type approvalStore interface {
	Create(ctx context.Context, approval *models.Approval) error
	GetByID(ctx context.Context, id string) (*models.Approval, error)
	FindPending(ctx context.Context, entityType, entityID string, step int) (*models.Approval, error)
	Decide(ctx context.Context, params repository.DecideApprovalParams) error
	ListDecided(ctx context.Context, entityType, entityID string) ([]models.Approval, error)
	CountPending(ctx context.Context, approvalType models.ApprovalType) ([]models.PendingApprovalCount, error)
}

// DecisionEvent is emitted after a decision has been persisted.
type DecisionEvent struct {
	Approval models.Approval
	Decision models.ApprovalDecision
	ActorID  string
	Comments string
}

// DecisionHandler applies a decision to the workflow that owns the approval type.
type DecisionHandler interface {
	HandleDecision(ctx context.Context, event DecisionEvent) error
}

// DecisionHandlerFunc allows using plain functions.
type DecisionHandlerFunc func(ctx context.Context, event DecisionEvent) error

// HandleDecision implements DecisionHandler.
func (f DecisionHandlerFunc) HandleDecision(ctx context.Context, event DecisionEvent) error {
	return f(ctx, event)
}

// ApprovalService is the generic multi-step approval engine. It knows nothing
// about specific workflows; they register a DecisionHandler per approval type.
type ApprovalService struct {
	repo      approvalStore
	validator *validator.Validate
	audit     *AuditEmitter
	logger    *zap.Logger

	mu       sync.RWMutex
	handlers map[models.ApprovalType]DecisionHandler
	owned    map[models.ApprovalType]bool
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithDecisionHandler registers the handler for an approval type.
func WithDecisionHandler(approvalType models.ApprovalType, handler DecisionHandler) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.handlers[approvalType] = handler
	}
}

// NewApprovalService constructs the engine.
func NewApprovalService(repo approvalStore, validate *validator.Validate, audit *AuditEmitter, logger *zap.Logger, opts ...ApprovalServiceOption) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		repo:      repo,
		validator: newValidator(validate),
		audit:     audit,
		logger:    logger,
		handlers:  make(map[models.ApprovalType]DecisionHandler),
		owned:     make(map[models.ApprovalType]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// RegisterDecisionHandler registers a handler after construction.
func (s *ApprovalService) RegisterDecisionHandler(approvalType models.ApprovalType, handler DecisionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[approvalType] = handler
}

// RegisterWorkflowHandler registers a handler whose workflow decides the
// approvals itself. Review refuses those approvals.
func (s *ApprovalService) RegisterWorkflowHandler(approvalType models.ApprovalType, handler DecisionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[approvalType] = handler
	s.owned[approvalType] = true
}

// CreateApproval opens a PENDING approval for an entity step.
func (s *ApprovalService) CreateApproval(ctx context.Context, req dto.CreateApprovalRequest, actorID string) (*models.Approval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid approval payload")
	}
	if req.Step == 0 {
		req.Step = 1
	}

	existing, err := s.repo.FindPending(ctx, req.EntityType, req.EntityID, req.Step)
	switch {
	case err == nil && existing != nil:
		return nil, appErrors.Clone(appErrors.ErrConflict, "a pending approval already exists for this step")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to check pending approvals")
	}

	approval := &models.Approval{
		Type:       req.Type,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Step:       req.Step,
		Status:     models.ApprovalStatusPending,
		Note:       optionalString(req.Note),
	}
	if err := s.repo.Create(ctx, approval); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a pending approval already exists for this step")
		}
		return nil, appErrors.Internal(err, "failed to create approval")
	}
	s.audit.Emit(ctx, actorID, models.AuditActionApprovalCreate, approval.EntityType, approval.EntityID, map[string]interface{}{
		"approvalId": approval.ID,
		"type":       approval.Type,
		"step":       approval.Step,
	})
	return approval, nil
}

// Review records a decision on a PENDING approval and notifies the owning workflow.
// Handler errors are returned alongside the persisted approval. Approvals of
// workflow-owned types are refused with ErrForbidden.
func (s *ApprovalService) Review(ctx context.Context, id string, req dto.ReviewApprovalRequest, actorID string) (*models.Approval, error) {
	return s.decide(ctx, id, req, actorID, false)
}

func (s *ApprovalService) decide(ctx context.Context, id string, req dto.ReviewApprovalRequest, actorID string, viaWorkflow bool) (*models.Approval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid review payload")
	}
	approval, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, loadErr(err, "approval")
	}
	if !viaWorkflow && s.isOwned(approval.Type) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s approvals are decided through their workflow", approval.Type))
	}
	if approval.Status != models.ApprovalStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("approval already %s", approval.Status))
	}
	if err := s.ensureNewApprover(ctx, approval, actorID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	params := repository.DecideApprovalParams{
		ID:         approval.ID,
		Status:     req.Decision.Status(),
		ApproverID: actorID,
		DecidedAt:  now,
		Comments:   optionalString(req.Comments),
	}
	if err := s.repo.Decide(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "approval already decided")
		}
		return nil, appErrors.Internal(err, "failed to record decision")
	}
	approval.Status = params.Status
	approval.ApproverID = &actorID
	approval.DecidedAt = &now
	approval.Comments = params.Comments

	s.audit.Emit(ctx, actorID, models.AuditActionApprovalReview, approval.EntityType, approval.EntityID, map[string]interface{}{
		"approvalId": approval.ID,
		"decision":   req.Decision,
		"step":       approval.Step,
	})

	s.mu.RLock()
	handler := s.handlers[approval.Type]
	s.mu.RUnlock()
	if handler == nil {
		return approval, nil
	}
	event := DecisionEvent{Approval: *approval, Decision: req.Decision, ActorID: actorID, Comments: req.Comments}
	if err := handler.HandleDecision(ctx, event); err != nil {
		s.logger.Error("decision handler failed",
			zap.String("approval_id", approval.ID),
			zap.String("type", string(approval.Type)),
			zap.Error(err),
		)
		return approval, err
	}
	return approval, nil
}

func (s *ApprovalService) isOwned(approvalType models.ApprovalType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned[approvalType]
}

// ensureNewApprover refuses a reviewer who already approved an earlier step
// of the same entity.
func (s *ApprovalService) ensureNewApprover(ctx context.Context, approval *models.Approval, actorID string) error {
	if approval.Step <= 1 {
		return nil
	}
	decided, err := s.repo.ListDecided(ctx, approval.EntityType, approval.EntityID)
	if err != nil {
		return appErrors.Internal(err, "failed to load earlier decisions")
	}
	for _, prior := range decided {
		if prior.Step < approval.Step && prior.ApproverID != nil && *prior.ApproverID == actorID {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("reviewer already decided step %d", prior.Step))
		}
	}
	return nil
}

// Get returns one approval.
func (s *ApprovalService) Get(ctx context.Context, id string) (*models.Approval, error) {
	approval, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, loadErr(err, "approval")
	}
	return approval, nil
}

// ListPending returns open approvals grouped by type and step.
func (s *ApprovalService) ListPending(ctx context.Context, approvalType models.ApprovalType) ([]models.PendingApprovalCount, error) {
	if approvalType != "" && !approvalType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval type")
	}
	counts, err := s.repo.CountPending(ctx, approvalType)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count pending approvals")
	}
	if counts == nil {
		counts = []models.PendingApprovalCount{}
	}
	return counts, nil
}

// pendingApproval finds the open approval for an entity step, opening one when absent.
func (s *ApprovalService) pendingApproval(ctx context.Context, approvalType models.ApprovalType, entityType, entityID string, step int, actorID string) (*models.Approval, error) {
	approval, err := s.repo.FindPending(ctx, entityType, entityID, step)
	if err == nil {
		return approval, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load pending approval")
	}
	return s.CreateApproval(ctx, dto.CreateApprovalRequest{Type: approvalType, EntityType: entityType, EntityID: entityID, Step: step}, actorID)
}
