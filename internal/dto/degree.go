package dto

// CreateDegreeProposalRequest drafts a degree proposal.
type CreateDegreeProposalRequest struct {
	StudentID    string `json:"studentId" validate:"required"`
	ExpectedYear int    `json:"expectedYear" validate:"required,min=1900,max=2200"`
}

// DegreeReviewRequest is the body of academic and admin reviews.
type DegreeReviewRequest = ReviewApprovalRequest
