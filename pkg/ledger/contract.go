// Package ledger adapts backend entities to the credential registry contract and
// issues register, mint, revoke and query calls through a pluggable signer.
package ledger

import (
	"context"
	"errors"
)

// Contract method signatures, used for selectors and receipt events.
const (
	MethodRegisterStudent      = "registerStudent(bytes32,address,bytes32,uint16)"
	MethodSubmitSemesterReport = "submitSemesterReport(bytes32,uint8,uint16,uint64,uint64,bytes32)"
	MethodMintCredential       = "mintCredential(address,bytes32)"
	MethodRevokeCredential     = "revokeCredential(uint256,string)"
	MethodGetCredential        = "getCredential(uint256)"
	MethodTokenOfHash          = "tokenOfHash(bytes32)"

	EventCredentialMinted  = "CredentialMinted"
	EventCredentialRevoked = "CredentialRevoked"
)

var (
	// ErrTokenNotFound is returned by getters when the ledger has no such token.
	ErrTokenNotFound = errors.New("ledger: token not found")
	// ErrReverted marks a transaction the contract rejected.
	ErrReverted = errors.New("ledger: transaction reverted")
)

// StudentRecord is the argument set of registerStudent.
type StudentRecord struct {
	StudentID      [32]byte
	Wallet         string
	ProgramID      [32]byte
	EnrollmentYear uint16
}

// SemesterReport is the argument set of submitSemesterReport.
type SemesterReport struct {
	StudentID    [32]byte
	Semester     uint8
	AcademicYear uint16
	GPA          uint64
	Credits      uint64
	ReportHash   [32]byte
}

// MintResult carries the identifiers produced by a successful mint.
type MintResult struct {
	TokenID string
	TxHash  string
}

// TokenState is the ledger's view of a credential token.
type TokenState struct {
	TokenID      string `json:"tokenId"`
	Owner        string `json:"owner"`
	DocumentHash string `json:"documentHash"`
	Revoked      bool   `json:"revoked"`
	RevokeReason string `json:"revokeReason,omitempty"`
	MintTxHash   string `json:"mintTxHash,omitempty"`
}

// Contract is the registry surface consumed by workers and the verification service.
type Contract interface {
	RegisterStudent(ctx context.Context, rec StudentRecord) (string, error)
	SubmitSemesterReport(ctx context.Context, report SemesterReport) (string, error)
	MintCredential(ctx context.Context, wallet string, documentHash [32]byte) (*MintResult, error)
	RevokeCredential(ctx context.Context, tokenID, reason string) (string, error)
	GetCredential(ctx context.Context, tokenID string) (*TokenState, error)
	TokenOfHash(ctx context.Context, documentHash [32]byte) (string, error)
}
