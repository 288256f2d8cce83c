package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

type degreeProposalStore interface {
	Create(ctx context.Context, proposal *models.DegreeProposal) error
	GetByID(ctx context.Context, id string) (*models.DegreeProposal, error)
	Transition(ctx context.Context, id string, from, to models.DegreeProposalStatus) error
}

type academicRecordReader interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetAcademicSummary(ctx context.Context, studentID string) (*models.AcademicSummary, error)
}

// DegreeService runs the two-stage degree ratification on top of the approval engine.
type DegreeService struct {
	proposals degreeProposalStore
	students  academicRecordReader
	approvals *ApprovalService
	validator *validator.Validate
	audit     *AuditEmitter
	logger    *zap.Logger
}

// NewDegreeService constructs the workflow and registers it as the
// DEGREE_PROPOSAL decision handler.
func NewDegreeService(proposals degreeProposalStore, students academicRecordReader, approvals *ApprovalService, validate *validator.Validate, audit *AuditEmitter, logger *zap.Logger) *DegreeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DegreeService{
		proposals: proposals,
		students:  students,
		approvals: approvals,
		validator: newValidator(validate),
		audit:     audit,
		logger:    logger,
	}
	if approvals != nil {
		approvals.RegisterWorkflowHandler(models.ApprovalTypeDegreeProposal, svc)
	}
	return svc
}

// CreateProposal drafts a proposal for an existing student.
func (s *DegreeService) CreateProposal(ctx context.Context, req dto.CreateDegreeProposalRequest, actorID string) (*models.DegreeProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid degree proposal payload")
	}
	if _, err := s.students.GetByID(ctx, req.StudentID); err != nil {
		return nil, loadErr(err, "student")
	}
	proposal := &models.DegreeProposal{
		StudentID:    req.StudentID,
		ExpectedYear: req.ExpectedYear,
		Status:       models.DegreeStatusDraft,
		CreatedBy:    actorID,
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, appErrors.Internal(err, "failed to create degree proposal")
	}
	s.audit.Emit(ctx, actorID, models.AuditActionProposalCreate, models.EntityDegreeProposal, proposal.ID, map[string]interface{}{
		"studentId": proposal.StudentID,
	})
	return proposal, nil
}

// Get returns one proposal.
func (s *DegreeService) Get(ctx context.Context, id string) (*models.DegreeProposal, error) {
	proposal, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return nil, loadErr(err, "degree proposal")
	}
	return proposal, nil
}

// CheckDegreeEligibility evaluates the student's record against program requirements.
func (s *DegreeService) CheckDegreeEligibility(ctx context.Context, studentID string) (*models.EligibilityReport, error) {
	summary, err := s.students.GetAcademicSummary(ctx, studentID)
	if err != nil {
		return nil, loadErr(err, "student")
	}
	return evaluateEligibility(*summary), nil
}

// Submit moves a DRAFT proposal of an eligible student into academic review.
func (s *DegreeService) Submit(ctx context.Context, id, actorID string) (*models.DegreeProposal, error) {
	proposal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.DegreeStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("degree proposal is %s, expected %s", proposal.Status, models.DegreeStatusDraft))
	}
	report, err := s.CheckDegreeEligibility(ctx, proposal.StudentID)
	if err != nil {
		return nil, err
	}
	if !report.Eligible {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not eligible: "+strings.Join(report.Issues, "; "))
	}
	if err := s.transition(ctx, proposal, models.DegreeStatusPendingAcademic); err != nil {
		return nil, err
	}
	if _, err := s.approvals.pendingApproval(ctx, models.ApprovalTypeDegreeProposal, models.EntityDegreeProposal, proposal.ID, 1, actorID); err != nil {
		return nil, err
	}
	s.audit.Emit(ctx, actorID, models.AuditActionProposalSubmit, models.EntityDegreeProposal, proposal.ID, nil)
	return proposal, nil
}

// AcademicReview decides the first review stage.
func (s *DegreeService) AcademicReview(ctx context.Context, id string, req dto.DegreeReviewRequest, actorID string) (*models.DegreeProposal, error) {
	return s.review(ctx, id, 1, req, actorID)
}

// AdminReview decides the second review stage.
func (s *DegreeService) AdminReview(ctx context.Context, id string, req dto.DegreeReviewRequest, actorID string) (*models.DegreeProposal, error) {
	return s.review(ctx, id, 2, req, actorID)
}

func (s *DegreeService) review(ctx context.Context, id string, step int, req dto.DegreeReviewRequest, actorID string) (*models.DegreeProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid review payload")
	}
	proposal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status.ReviewStep() != step {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("degree proposal is %s, not awaiting review step %d", proposal.Status, step))
	}
	approval, err := s.approvals.pendingApproval(ctx, models.ApprovalTypeDegreeProposal, models.EntityDegreeProposal, proposal.ID, step, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.approvals.decide(ctx, approval.ID, req, actorID, true); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// HandleDecision applies a persisted DEGREE_PROPOSAL decision.
func (s *DegreeService) HandleDecision(ctx context.Context, event DecisionEvent) error {
	if event.Approval.EntityType != models.EntityDegreeProposal {
		return appErrors.Clone(appErrors.ErrValidation, "approval does not reference a degree proposal")
	}
	proposal, err := s.Get(ctx, event.Approval.EntityID)
	if err != nil {
		return err
	}
	step := event.Approval.Step
	if proposal.Status.ReviewStep() != step {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("degree proposal is %s, not awaiting review step %d", proposal.Status, step))
	}

	next := models.DegreeStatusRejected
	if event.Decision == models.DecisionApprove {
		next = models.DegreeStatusApproved
		if step == 1 {
			next = models.DegreeStatusPendingAdmin
		}
	}
	if err := s.transition(ctx, proposal, next); err != nil {
		return err
	}
	s.audit.Emit(ctx, event.ActorID, models.AuditActionProposalReview, models.EntityDegreeProposal, proposal.ID, map[string]interface{}{
		"step":     step,
		"decision": event.Decision,
		"status":   next,
	})
	if next == models.DegreeStatusPendingAdmin {
		if _, err := s.approvals.pendingApproval(ctx, models.ApprovalTypeDegreeProposal, models.EntityDegreeProposal, proposal.ID, 2, event.ActorID); err != nil {
			return err
		}
	}
	return nil
}

func (s *DegreeService) transition(ctx context.Context, proposal *models.DegreeProposal, next models.DegreeProposalStatus) error {
	if !proposal.Status.CanTransitionTo(next) {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("degree proposal cannot move from %s to %s", proposal.Status, next))
	}
	if err := s.proposals.Transition(ctx, proposal.ID, proposal.Status, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "degree proposal changed concurrently")
		}
		return appErrors.Internal(err, "failed to update degree proposal")
	}
	s.logger.Info("degree proposal transitioned",
		zap.String("proposal_id", proposal.ID),
		zap.String("from", string(proposal.Status)),
		zap.String("to", string(next)),
	)
	proposal.Status = next
	return nil
}

func evaluateEligibility(summary models.AcademicSummary) *models.EligibilityReport {
	report := &models.EligibilityReport{
		StudentID:          summary.StudentID,
		CompletedCredits:   summary.CompletedCredits,
		RequiredCredits:    summary.RequiredCredits,
		CGPA:               summary.CGPA,
		MinCGPA:            summary.MinCGPA,
		CompletedSemesters: summary.CompletedSemesters,
		RequiredSemesters:  summary.RequiredSemesters,
		PendingResults:     summary.PendingResults,
		FailedCourses:      summary.FailedCourses,
		MaxFailedCourses:   summary.MaxFailedCourses,
		Issues:             []string{},
	}
	if summary.CompletedCredits < summary.RequiredCredits {
		report.Issues = append(report.Issues, fmt.Sprintf("completed credits %.1f below required %.1f", summary.CompletedCredits, summary.RequiredCredits))
	}
	if summary.CGPA < summary.MinCGPA {
		report.Issues = append(report.Issues, fmt.Sprintf("CGPA %.2f below minimum %.2f", summary.CGPA, summary.MinCGPA))
	}
	if summary.CompletedSemesters < summary.RequiredSemesters {
		report.Issues = append(report.Issues, fmt.Sprintf("completed semesters %d below required %d", summary.CompletedSemesters, summary.RequiredSemesters))
	}
	if summary.PendingResults > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d semester results awaiting publication", summary.PendingResults))
	}
	if summary.FailedCourses > summary.MaxFailedCourses {
		report.Issues = append(report.Issues, fmt.Sprintf("failed courses %d exceed allowed %d", summary.FailedCourses, summary.MaxFailedCourses))
	}
	report.Eligible = len(report.Issues) == 0
	return report
}
