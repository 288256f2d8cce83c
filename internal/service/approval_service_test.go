package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

func newTestApprovalService(store *approvalMemStore, audit *auditMemStore, opts ...ApprovalServiceOption) *ApprovalService {
	return NewApprovalService(store, nil, NewAuditEmitter(audit, zap.NewNop()), zap.NewNop(), opts...)
}

func TestApprovalCreateRejectsSecondPendingForSameStep(t *testing.T) {
	store := newApprovalMemStore()
	svc := newTestApprovalService(store, &auditMemStore{})
	ctx := context.Background()
	req := dto.CreateApprovalRequest{Type: models.ApprovalTypeCurriculum, EntityType: models.EntityCurriculum, EntityID: "cur-1"}

	approval, err := svc.CreateApproval(ctx, req, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, approval.Step)
	assert.Equal(t, models.ApprovalStatusPending, approval.Status)

	_, err = svc.CreateApproval(ctx, req, "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	req.Step = 2
	_, err = svc.CreateApproval(ctx, req, "user-1")
	require.NoError(t, err)
}

func TestApprovalCreateValidatesType(t *testing.T) {
	svc := newTestApprovalService(newApprovalMemStore(), &auditMemStore{})
	_, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{Type: "BUDGET", EntityType: "x", EntityID: "1"}, "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestApprovalReviewIsMonotonic(t *testing.T) {
	store := newApprovalMemStore()
	audit := &auditMemStore{}
	var events []DecisionEvent
	svc := newTestApprovalService(store, audit, WithDecisionHandler(models.ApprovalTypeCorrection, DecisionHandlerFunc(func(ctx context.Context, event DecisionEvent) error {
		events = append(events, event)
		return nil
	})))
	ctx := context.Background()

	approval, err := svc.CreateApproval(ctx, dto.CreateApprovalRequest{Type: models.ApprovalTypeCorrection, EntityType: models.EntityCredential, EntityID: "cred-1"}, "user-1")
	require.NoError(t, err)

	decided, err := svc.Review(ctx, approval.ID, dto.ReviewApprovalRequest{Decision: models.DecisionApprove, Comments: "ok"}, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, decided.Status)
	require.NotNil(t, decided.ApproverID)
	assert.Equal(t, "reviewer-1", *decided.ApproverID)
	require.NotNil(t, decided.DecidedAt)
	require.Len(t, events, 1)
	assert.Equal(t, models.DecisionApprove, events[0].Decision)

	_, err = svc.Review(ctx, approval.ID, dto.ReviewApprovalRequest{Decision: models.DecisionReject}, "reviewer-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))

	stored, err := store.GetByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, stored.Status)
	assert.Len(t, events, 1)
	assert.Contains(t, audit.actions(), models.AuditActionApprovalReview)
}

func TestApprovalReviewRejectsUnknownDecision(t *testing.T) {
	store := newApprovalMemStore()
	svc := newTestApprovalService(store, &auditMemStore{})
	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{Type: models.ApprovalTypeCurriculum, EntityType: models.EntityCurriculum, EntityID: "cur-1"}, "u")
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), approval.ID, dto.ReviewApprovalRequest{Decision: "MAYBE"}, "r")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestApprovalReviewReturnsHandlerErrorAfterPersisting(t *testing.T) {
	store := newApprovalMemStore()
	handlerErr := appErrors.Clone(appErrors.ErrInvalidState, "entity moved on")
	svc := newTestApprovalService(store, &auditMemStore{}, WithDecisionHandler(models.ApprovalTypeCurriculum, DecisionHandlerFunc(func(ctx context.Context, event DecisionEvent) error {
		return handlerErr
	})))
	ctx := context.Background()
	approval, err := svc.CreateApproval(ctx, dto.CreateApprovalRequest{Type: models.ApprovalTypeCurriculum, EntityType: models.EntityCurriculum, EntityID: "cur-9"}, "u")
	require.NoError(t, err)

	decided, err := svc.Review(ctx, approval.ID, dto.ReviewApprovalRequest{Decision: models.DecisionReject}, "r")
	require.ErrorIs(t, err, handlerErr)
	require.NotNil(t, decided)
	assert.Equal(t, models.ApprovalStatusRejected, decided.Status)
}

func TestApprovalReviewMissing(t *testing.T) {
	svc := newTestApprovalService(newApprovalMemStore(), &auditMemStore{})
	_, err := svc.Review(context.Background(), "missing", dto.ReviewApprovalRequest{Decision: models.DecisionApprove}, "r")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestApprovalListPending(t *testing.T) {
	store := newApprovalMemStore()
	svc := newTestApprovalService(store, &auditMemStore{})
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := svc.CreateApproval(ctx, dto.CreateApprovalRequest{Type: models.ApprovalTypeSemesterResult, EntityType: models.EntitySemesterResult, EntityID: id}, "u")
		require.NoError(t, err)
	}
	counts, err := svc.ListPending(ctx, models.ApprovalTypeSemesterResult)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].Count)

	_, err = svc.ListPending(ctx, "NOPE")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestApprovalReviewRefusesApproverOfEarlierStep(t *testing.T) {
	store := newApprovalMemStore()
	svc := newTestApprovalService(store, &auditMemStore{})
	ctx := context.Background()
	approve := dto.ReviewApprovalRequest{Decision: models.DecisionApprove}

	first, err := svc.CreateApproval(ctx, dto.CreateApprovalRequest{Type: models.ApprovalTypeCurriculum, EntityType: models.EntityCurriculum, EntityID: "cur-2"}, "u")
	require.NoError(t, err)
	_, err = svc.Review(ctx, first.ID, approve, "reviewer-1")
	require.NoError(t, err)

	second, err := svc.CreateApproval(ctx, dto.CreateApprovalRequest{Type: models.ApprovalTypeCurriculum, EntityType: models.EntityCurriculum, EntityID: "cur-2", Step: 2}, "u")
	require.NoError(t, err)
	_, err = svc.Review(ctx, second.ID, approve, "reviewer-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	decided, err := svc.Review(ctx, second.ID, approve, "reviewer-2")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, decided.Status)
}
