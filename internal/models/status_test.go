package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDegreeProposalTransitions(t *testing.T) {
	require.True(t, DegreeStatusDraft.CanTransitionTo(DegreeStatusPendingAcademic))
	require.True(t, DegreeStatusPendingAcademic.CanTransitionTo(DegreeStatusRejected))
	require.True(t, DegreeStatusPendingAdmin.CanTransitionTo(DegreeStatusApproved))
	require.True(t, DegreeStatusApproved.CanTransitionTo(DegreeStatusIssued))

	require.False(t, DegreeStatusDraft.CanTransitionTo(DegreeStatusApproved))
	require.False(t, DegreeStatusPendingAcademic.CanTransitionTo(DegreeStatusApproved))
	require.False(t, DegreeStatusApproved.CanTransitionTo(DegreeStatusRejected))
	require.False(t, DegreeStatusRejected.CanTransitionTo(DegreeStatusPendingAcademic))
	require.False(t, DegreeStatusIssued.CanTransitionTo(DegreeStatusApproved))

	require.Equal(t, 1, DegreeStatusPendingAcademic.ReviewStep())
	require.Equal(t, 2, DegreeStatusPendingAdmin.ReviewStep())
	require.Zero(t, DegreeStatusApproved.ReviewStep())
}

func TestCredentialStatusTokenBinding(t *testing.T) {
	require.False(t, CredentialStatusPending.HoldsToken())
	require.True(t, CredentialStatusIssued.HoldsToken())
	require.True(t, CredentialStatusRevoked.HoldsToken())
	require.True(t, CredentialStatusReplaced.HoldsToken())

	require.True(t, CredentialStatusPending.CanTransitionTo(CredentialStatusIssued))
	require.False(t, CredentialStatusPending.CanTransitionTo(CredentialStatusRevoked))
	require.False(t, CredentialStatusRevoked.CanTransitionTo(CredentialStatusIssued))
	require.True(t, CredentialStatusIssued.CanTransitionTo(CredentialStatusReplaced))
}

func TestShareLinkActiveAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.True(t, ShareLink{}.ActiveAt(now))
	require.True(t, ShareLink{ExpiresAt: &future}.ActiveAt(now))
	require.False(t, ShareLink{ExpiresAt: &past}.ActiveAt(now))
	require.False(t, ShareLink{RevokedAt: &past, ExpiresAt: &future}.ActiveAt(now))
}

func TestJobTypeQueues(t *testing.T) {
	require.Equal(t, QueueLedger, MintPayload{}.JobType().Queue())
	require.Equal(t, QueueLedger, RevokePayload{}.JobType().Queue())
	require.Equal(t, QueueWallets, WalletPayload{}.JobType().Queue())
	require.Equal(t, QueueLedger, SemesterReportPayload{}.JobType().Queue())
	require.Empty(t, JobType("csvIngest").Queue())
}

func TestCredentialPayloadScan(t *testing.T) {
	var p CredentialPayload
	require.NoError(t, p.Scan([]byte(`{"credentialId":"c1","type":"DEGREE","studentId":"s1","studentName":"Ana","sourceId":"p1","title":"BSc"}`)))
	require.Equal(t, CredentialTypeDegree, p.Type)
	require.NoError(t, p.Scan(nil))
	require.Empty(t, p.CredentialID)
	require.Error(t, p.Scan(42))
}
