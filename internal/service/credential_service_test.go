package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/pkg/canonical"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

const testWallet = "0x1111111111111111111111111111111111111111"

type credentialFixture struct {
	svc         *CredentialService
	credentials *credentialMemStore
	students    *studentMemStore
	proposals   *proposalMemStore
	results     *resultMemStore
	records     *jobRecordMemStore
	dispatcher  *dispatcherStub
}

func strPtr(s string) *string { return &s }

func newCredentialFixture() *credentialFixture {
	f := &credentialFixture{
		credentials: newCredentialMemStore(),
		students: newStudentMemStore(
			models.Student{ID: "stu-1", UserID: "user-1", ExternalIdentityID: "ext-1", FullName: "Ana Putri", ProgramID: "prog-1", EnrollmentYear: 2020},
			models.Student{ID: "stu-2", FullName: "Budi", ProgramID: "prog-1", EnrollmentYear: 2020, WalletAddress: strPtr(testWallet)},
		),
		proposals:  newProposalMemStore(),
		results:    newResultMemStore(models.SemesterResult{ID: "res-1", StudentID: "stu-2", Semester: 3, AcademicYear: 2022, GPA: 3.5, Credits: 21, Status: models.ResultStatusPublished}),
		records:    &jobRecordMemStore{},
		dispatcher: &dispatcherStub{},
	}
	f.proposals.items["prop-approved"] = &models.DegreeProposal{ID: "prop-approved", StudentID: "stu-1", ExpectedYear: 2024, Status: models.DegreeStatusApproved}
	f.proposals.items["prop-admin"] = &models.DegreeProposal{ID: "prop-admin", StudentID: "stu-1", ExpectedYear: 2024, Status: models.DegreeStatusPendingAdmin}
	f.credentials.records = f.records
	f.svc = NewCredentialService(f.credentials, f.students, f.proposals, f.results, f.records, f.dispatcher, noopTx{}, nil,
		NewAuditEmitter(&auditMemStore{}, zap.NewNop()), zap.NewNop(), CredentialServiceConfig{})
	return f
}

func issuedCredential(f *credentialFixture, id string) models.Credential {
	payload := models.CredentialPayload{CredentialID: id, Type: models.CredentialTypeCertificate, StudentID: "stu-2", StudentName: "Budi", SourceID: "course-1", Title: "Certificate"}
	hash, _ := canonical.Hash(payload)
	now := time.Now().UTC()
	c := models.Credential{
		ID: id, StudentID: "stu-2", Type: models.CredentialTypeCertificate, Status: models.CredentialStatusIssued,
		SourceID: "course-1", DocumentHash: hash, Payload: payload,
		TokenID: strPtr("7"), TxHash: strPtr("0xabc"), IssuedAt: &now,
	}
	f.credentials.put(c)
	return c
}

func TestCreateDegreeCredentialRequiresApprovedProposal(t *testing.T) {
	f := newCredentialFixture()
	ctx := context.Background()

	_, err := f.svc.CreateCredential(ctx, dto.CreateCredentialRequest{StudentID: "stu-1", Type: models.CredentialTypeDegree, SourceID: "prop-admin"}, "registrar-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))

	credential, err := f.svc.CreateCredential(ctx, dto.CreateCredentialRequest{StudentID: "stu-1", Type: models.CredentialTypeDegree, SourceID: "prop-approved"}, "registrar-1")
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusPending, credential.Status)
	assert.Nil(t, credential.TokenID)
	assert.Nil(t, credential.TxHash)
	assert.Equal(t, "2024", credential.Payload.IssuedFor)

	recomputed, err := canonical.Hash(credential.Payload)
	require.NoError(t, err)
	assert.Equal(t, recomputed, credential.DocumentHash)
}

func TestCreateSemesterCredentialCopiesResult(t *testing.T) {
	f := newCredentialFixture()
	credential, err := f.svc.CreateCredential(context.Background(), dto.CreateCredentialRequest{StudentID: "stu-2", Type: models.CredentialTypeSemester, SourceID: "res-1"}, "registrar-1")
	require.NoError(t, err)
	assert.Equal(t, "3.50", credential.Payload.Attributes["gpa"])
	assert.Equal(t, "2022-S3", credential.Payload.IssuedFor)

	_, err = f.svc.CreateCredential(context.Background(), dto.CreateCredentialRequest{StudentID: "stu-1", Type: models.CredentialTypeSemester, SourceID: "res-1"}, "registrar-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestIssueCredentialEnqueuesWalletThenMint(t *testing.T) {
	f := newCredentialFixture()
	ctx := context.Background()
	credential, err := f.svc.CreateCredential(ctx, dto.CreateCredentialRequest{StudentID: "stu-1", Type: models.CredentialTypeDegree, SourceID: "prop-approved"}, "registrar-1")
	require.NoError(t, err)

	resp, err := f.svc.IssueCredential(ctx, credential.ID, "registrar-1")
	require.NoError(t, err)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, []models.JobType{models.JobTypeCreateStudentWallet, models.JobTypeMint}, f.dispatcher.types())

	stored, err := f.credentials.GetByID(ctx, credential.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusPending, stored.Status)

	pending := f.records.withStatus(models.JobRecordPending)
	require.Len(t, pending, 1)
	assert.Equal(t, models.JobTypeMint, pending[0].Type)
	assert.Equal(t, credential.ID, pending[0].EntityID)
}

func TestIssueCredentialRequiresPending(t *testing.T) {
	f := newCredentialFixture()
	issued := issuedCredential(f, "cred-issued")
	_, err := f.svc.IssueCredential(context.Background(), issued.ID, "registrar-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
	assert.Empty(t, f.dispatcher.types())
}

func TestRevokeCredentialValidatesReasonAndStatus(t *testing.T) {
	f := newCredentialFixture()
	ctx := context.Background()
	issued := issuedCredential(f, "cred-issued")

	_, err := f.svc.RevokeCredential(ctx, issued.ID, dto.RevokeCredentialRequest{Reason: "typo"}, "registrar-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	receipt, err := f.svc.RevokeCredential(ctx, issued.ID, dto.RevokeCredentialRequest{Reason: "academic misconduct confirmed"}, "registrar-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeRevoke, receipt.Type)
	assert.Equal(t, models.QueueLedger, receipt.Queue)

	stored, err := f.credentials.GetByID(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusIssued, stored.Status)

	pendingCred, err := f.svc.CreateCredential(ctx, dto.CreateCredentialRequest{StudentID: "stu-2", Type: models.CredentialTypeCertificate, SourceID: "course-9"}, "registrar-1")
	require.NoError(t, err)
	_, err = f.svc.RevokeCredential(ctx, pendingCred.ID, dto.RevokeCredentialRequest{Reason: "academic misconduct confirmed"}, "registrar-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
}

func TestReplaceCredentialCreatesSuccessor(t *testing.T) {
	f := newCredentialFixture()
	ctx := context.Background()
	issued := issuedCredential(f, "cred-issued")

	resp, err := f.svc.ReplaceCredential(ctx, issued.ID, dto.RevokeCredentialRequest{Reason: "name spelling corrected"}, "registrar-1")
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusPending, resp.Replacement.Status)
	assert.Equal(t, issued.ID, resp.Replacement.Payload.Attributes["replaces"])
	assert.NotEqual(t, issued.DocumentHash, resp.Replacement.DocumentHash)

	original, err := f.credentials.GetByID(ctx, issued.ID)
	require.NoError(t, err)
	require.NotNil(t, original.ReplacedBy)
	assert.Equal(t, resp.Replacement.ID, *original.ReplacedBy)

	f.dispatcher.mu.Lock()
	payload := f.dispatcher.jobs[0].payload.(models.RevokePayload)
	f.dispatcher.mu.Unlock()
	assert.True(t, payload.Replace)
	assert.Equal(t, resp.Replacement.ID, payload.ReplacementID)

	_, err = f.svc.ReplaceCredential(ctx, issued.ID, dto.RevokeCredentialRequest{Reason: "name spelling corrected"}, "registrar-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestCreateCredentialRejectsSecondActiveDegree(t *testing.T) {
	f := newCredentialFixture()
	ctx := context.Background()
	req := dto.CreateCredentialRequest{StudentID: "stu-1", Type: models.CredentialTypeDegree, SourceID: "prop-approved"}

	_, err := f.svc.CreateCredential(ctx, req, "registrar-1")
	require.NoError(t, err)
	_, err = f.svc.CreateCredential(ctx, req, "registrar-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	list, err := f.svc.List(ctx, models.CredentialFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecoverPendingMintsReusesRecordedJobID(t *testing.T) {
	f := newCredentialFixture()
	ctx := context.Background()
	_, err := f.svc.CreateCredential(ctx, dto.CreateCredentialRequest{StudentID: "stu-2", Type: models.CredentialTypeCertificate, SourceID: "course-7"}, "r")
	require.NoError(t, err)

	n, err := f.svc.RecoverPendingMints(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n, "a credential never issued has no mint request")

	credential, err := f.svc.CreateCredential(ctx, dto.CreateCredentialRequest{StudentID: "stu-2", Type: models.CredentialTypeCertificate, SourceID: "course-1"}, "r")
	require.NoError(t, err)
	resp, err := f.svc.IssueCredential(ctx, credential.ID, "r")
	require.NoError(t, err)
	jobID := resp.Jobs[0].JobID

	n, err = f.svc.RecoverPendingMints(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n, "still queued")
	assert.Len(t, f.dispatcher.types(), 1)

	f.dispatcher.drain()
	n, err = f.svc.RecoverPendingMints(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.dispatcher.mu.Lock()
	assert.Equal(t, jobID, f.dispatcher.jobs[1].jobID)
	f.dispatcher.mu.Unlock()

	require.NoError(t, f.records.Create(ctx, &models.JobRecord{JobID: jobID, Type: models.JobTypeMint, Status: models.JobRecordCompleted, EntityID: credential.ID}))
	f.dispatcher.drain()
	n, err = f.svc.RecoverPendingMints(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIssueCredentialRecordsRequestBeforeEnqueue(t *testing.T) {
	f := newCredentialFixture()
	ctx := context.Background()
	credential, err := f.svc.CreateCredential(ctx, dto.CreateCredentialRequest{StudentID: "stu-2", Type: models.CredentialTypeCertificate, SourceID: "course-1"}, "r")
	require.NoError(t, err)
	f.dispatcher.err = appErrors.External(errors.New("redis down"), "failed to enqueue job")

	_, err = f.svc.IssueCredential(ctx, credential.ID, "r")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrExternalService))
	pending := f.records.withStatus(models.JobRecordPending)
	require.Len(t, pending, 1)

	f.dispatcher.err = nil
	n, err := f.svc.RecoverPendingMints(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.dispatcher.mu.Lock()
	assert.Equal(t, pending[0].JobID, f.dispatcher.jobs[0].jobID)
	f.dispatcher.mu.Unlock()
}
