package dto

import "github.com/noah-isme/credential-ledger-api/internal/models"

// CreateApprovalRequest opens a review step for an entity.
type CreateApprovalRequest struct {
	Type       models.ApprovalType `json:"type" validate:"required,approval_type"`
	EntityType string              `json:"entityType" validate:"required,max=64"`
	EntityID   string              `json:"entityId" validate:"required,max=64"`
	Step       int                 `json:"step" validate:"omitempty,min=1,max=10"`
	Note       string              `json:"note" validate:"max=1000"`
}

// ReviewApprovalRequest captures a reviewer decision.
type ReviewApprovalRequest struct {
	Decision models.ApprovalDecision `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Comments string                  `json:"comments" validate:"max=2000"`
}

// PendingApprovalsQuery filters the pending summary.
type PendingApprovalsQuery struct {
	Type models.ApprovalType `form:"type"`
}
