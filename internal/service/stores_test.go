package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
	"github.com/noah-isme/credential-ledger-api/pkg/jobs"
)

// In-memory stores honouring the same guarded-update contracts as the
// postgres repositories: a missed guard returns sql.ErrNoRows.

type noopTx struct{}

func (noopTx) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type approvalMemStore struct {
	mu    sync.Mutex
	items map[string]*models.Approval
}

func newApprovalMemStore() *approvalMemStore {
	return &approvalMemStore{items: make(map[string]*models.Approval)}
}

func (s *approvalMemStore) Create(ctx context.Context, approval *models.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		if a.EntityType == approval.EntityType && a.EntityID == approval.EntityID && a.Step == approval.Step && a.Status == models.ApprovalStatusPending {
			return repository.ErrDuplicate
		}
	}
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	approval.CreatedAt = time.Now().UTC()
	clone := *approval
	s.items[approval.ID] = &clone
	return nil
}

func (s *approvalMemStore) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *a
	return &clone, nil
}

func (s *approvalMemStore) FindPending(ctx context.Context, entityType, entityID string, step int) (*models.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		if a.EntityType == entityType && a.EntityID == entityID && a.Step == step && a.Status == models.ApprovalStatusPending {
			clone := *a
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *approvalMemStore) Decide(ctx context.Context, params repository.DecideApprovalParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[params.ID]
	if !ok || a.Status != models.ApprovalStatusPending {
		return sql.ErrNoRows
	}
	a.Status = params.Status
	a.ApproverID = &params.ApproverID
	decided := params.DecidedAt
	a.DecidedAt = &decided
	a.Comments = params.Comments
	return nil
}

func (s *approvalMemStore) ListDecided(ctx context.Context, entityType, entityID string) ([]models.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Approval
	for _, a := range s.items {
		if a.EntityType == entityType && a.EntityID == entityID && a.Status != models.ApprovalStatusPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *approvalMemStore) CountPending(ctx context.Context, approvalType models.ApprovalType) ([]models.PendingApprovalCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[[2]interface{}]int{}
	for _, a := range s.items {
		if a.Status != models.ApprovalStatusPending || (approvalType != "" && a.Type != approvalType) {
			continue
		}
		counts[[2]interface{}{a.Type, a.Step}]++
	}
	out := make([]models.PendingApprovalCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.PendingApprovalCount{Type: k[0].(models.ApprovalType), Step: k[1].(int), Count: n})
	}
	return out, nil
}

func (s *approvalMemStore) byEntity(entityID string) []models.Approval {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Approval
	for _, a := range s.items {
		if a.EntityID == entityID {
			out = append(out, *a)
		}
	}
	return out
}

type proposalMemStore struct {
	mu    sync.Mutex
	items map[string]*models.DegreeProposal
}

func newProposalMemStore() *proposalMemStore {
	return &proposalMemStore{items: make(map[string]*models.DegreeProposal)}
}

func (s *proposalMemStore) Create(ctx context.Context, proposal *models.DegreeProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	clone := *proposal
	s.items[proposal.ID] = &clone
	return nil
}

func (s *proposalMemStore) GetByID(ctx context.Context, id string) (*models.DegreeProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (s *proposalMemStore) Transition(ctx context.Context, id string, from, to models.DegreeProposalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok || p.Status != from {
		return sql.ErrNoRows
	}
	p.Status = to
	return nil
}

func (s *proposalMemStore) MarkIssuedTx(ctx context.Context, tx *sqlx.Tx, id, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok || p.Status != models.DegreeStatusApproved {
		return sql.ErrNoRows
	}
	p.Status = models.DegreeStatusIssued
	p.CredentialID = &credentialID
	return nil
}

type studentMemStore struct {
	mu        sync.Mutex
	items     map[string]*models.Student
	summaries map[string]*models.AcademicSummary
}

func newStudentMemStore(students ...models.Student) *studentMemStore {
	s := &studentMemStore{items: make(map[string]*models.Student), summaries: make(map[string]*models.AcademicSummary)}
	for i := range students {
		st := students[i]
		s.items[st.ID] = &st
	}
	return s
}

func (s *studentMemStore) GetByID(ctx context.Context, id string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *st
	return &clone, nil
}

func (s *studentMemStore) SetWallet(ctx context.Context, wallet models.WalletRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.items[wallet.StudentID]
	if !ok || st.WalletAddress != nil {
		return false, nil
	}
	address, id, created := wallet.Address, wallet.WalletID, wallet.CreatedAt
	st.WalletAddress, st.WalletID, st.WalletCreatedAt = &address, &id, &created
	return true, nil
}

func (s *studentMemStore) SetLedgerTxHash(ctx context.Context, id, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	st.LedgerTxHash = &txHash
	return nil
}

func (s *studentMemStore) GetAcademicSummary(ctx context.Context, studentID string) (*models.AcademicSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.summaries[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *summary
	return &clone, nil
}

type resultMemStore struct {
	mu    sync.Mutex
	items map[string]*models.SemesterResult
}

func newResultMemStore(results ...models.SemesterResult) *resultMemStore {
	s := &resultMemStore{items: make(map[string]*models.SemesterResult)}
	for i := range results {
		r := results[i]
		s.items[r.ID] = &r
	}
	return s
}

func (s *resultMemStore) GetByID(ctx context.Context, id string) (*models.SemesterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (s *resultMemStore) Transition(ctx context.Context, id string, from, to models.SemesterResultStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok || r.Status != from {
		return sql.ErrNoRows
	}
	r.Status = to
	return nil
}

func (s *resultMemStore) SetLedgerTxHash(ctx context.Context, id, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.LedgerTxHash = &txHash
	return nil
}

type credentialMemStore struct {
	mu      sync.Mutex
	items   map[string]*models.Credential
	records *jobRecordMemStore
}

func newCredentialMemStore() *credentialMemStore {
	return &credentialMemStore{items: make(map[string]*models.Credential)}
}

func (s *credentialMemStore) Create(ctx context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.items {
		if c.DocumentHash == credential.DocumentHash || activeForSource(c, credential.Type, credential.SourceID) {
			return repository.ErrDuplicate
		}
	}
	if credential.ID == "" {
		credential.ID = uuid.NewString()
	}
	credential.Status = models.CredentialStatusPending
	clone := *credential
	s.items[credential.ID] = &clone
	return nil
}

func (s *credentialMemStore) CreateTx(ctx context.Context, tx *sqlx.Tx, credential *models.Credential) error {
	return s.Create(ctx, credential)
}

func (s *credentialMemStore) get(match func(*models.Credential) bool) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.items {
		if match(c) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *credentialMemStore) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	return s.get(func(c *models.Credential) bool { return c.ID == id })
}

func (s *credentialMemStore) GetByHash(ctx context.Context, documentHash string) (*models.Credential, error) {
	return s.get(func(c *models.Credential) bool { return c.DocumentHash == documentHash })
}

func (s *credentialMemStore) GetByTokenID(ctx context.Context, tokenID string) (*models.Credential, error) {
	return s.get(func(c *models.Credential) bool { return c.TokenID != nil && *c.TokenID == tokenID })
}

func (s *credentialMemStore) List(ctx context.Context, filter models.CredentialFilter) ([]models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Credential
	for _, c := range s.items {
		if filter.StudentID == "" || c.StudentID == filter.StudentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *credentialMemStore) HasActiveForSource(ctx context.Context, t models.CredentialType, sourceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.items {
		if activeForSource(c, t, sourceID) {
			return true, nil
		}
	}
	return false, nil
}

// activeForSource mirrors the partial unique index on credentials.
func activeForSource(c *models.Credential, t models.CredentialType, sourceID string) bool {
	if t != models.CredentialTypeDegree && t != models.CredentialTypeSemester {
		return false
	}
	return c.Type == t && c.SourceID == sourceID && c.ReplacedBy == nil &&
		(c.Status == models.CredentialStatusPending || c.Status == models.CredentialStatusIssued)
}

func (s *credentialMemStore) ListAwaitingMint(ctx context.Context, limit int) ([]models.MintRequest, error) {
	if s.records == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records.mu.Lock()
	records := append([]models.JobRecord(nil), s.records.records...)
	s.records.mu.Unlock()

	var out []models.MintRequest
	for _, c := range s.items {
		if c.Status != models.CredentialStatusPending {
			continue
		}
		latest := -1
		for i, r := range records {
			if r.EntityID == c.ID && r.Type == models.JobTypeMint && r.Status == models.JobRecordPending {
				latest = i
			}
		}
		if latest < 0 {
			continue
		}
		settled := false
		for _, r := range records[latest+1:] {
			if r.EntityID == c.ID && r.Type == models.JobTypeMint && r.Status != models.JobRecordPending {
				settled = true
			}
		}
		if !settled {
			out = append(out, models.MintRequest{CredentialID: c.ID, DocumentHash: c.DocumentHash, JobID: records[latest].JobID})
		}
	}
	return out, nil
}

func (s *credentialMemStore) MarkIssuedTx(ctx context.Context, tx *sqlx.Tx, issued models.CredentialIssued) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[issued.CredentialID]
	if !ok || c.Status != models.CredentialStatusPending {
		return sql.ErrNoRows
	}
	token, txHash, at := issued.TokenID, issued.TxHash, issued.IssuedAt
	c.Status, c.TokenID, c.TxHash, c.IssuedAt = models.CredentialStatusIssued, &token, &txHash, &at
	return nil
}

func (s *credentialMemStore) MarkWithdrawnTx(ctx context.Context, tx *sqlx.Tx, withdrawn models.CredentialWithdrawn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[withdrawn.CredentialID]
	if !ok || c.Status != models.CredentialStatusIssued {
		return sql.ErrNoRows
	}
	reason, at := withdrawn.Reason, withdrawn.RevokedAt
	c.Status, c.RevokeReason, c.RevokedAt = withdrawn.Status, &reason, &at
	return nil
}

func (s *credentialMemStore) SetReplacedByTx(ctx context.Context, tx *sqlx.Tx, id, replacementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok || c.ReplacedBy != nil {
		return sql.ErrNoRows
	}
	c.ReplacedBy = &replacementID
	return nil
}

func (s *credentialMemStore) put(c models.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[c.ID] = &c
}

type jobRecordMemStore struct {
	mu      sync.Mutex
	records []models.JobRecord
}

func (s *jobRecordMemStore) Create(ctx context.Context, record *models.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	s.records = append(s.records, *record)
	return nil
}

func (s *jobRecordMemStore) CreateTx(ctx context.Context, tx *sqlx.Tx, record *models.JobRecord) error {
	return s.Create(ctx, record)
}

func (s *jobRecordMemStore) ListFailed(ctx context.Context, jobType models.JobType, limit int) ([]models.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobRecord
	for _, r := range s.records {
		if r.Status == models.JobRecordFailed && (jobType == "" || r.Type == jobType) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *jobRecordMemStore) withStatus(status models.JobRecordStatus) []models.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobRecord
	for _, r := range s.records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

type shareLinkMemStore struct {
	mu    sync.Mutex
	items map[string]*models.ShareLink
}

func newShareLinkMemStore() *shareLinkMemStore {
	return &shareLinkMemStore{items: make(map[string]*models.ShareLink)}
}

func (s *shareLinkMemStore) Create(ctx context.Context, link *models.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	clone := *link
	s.items[link.ID] = &clone
	return nil
}

func (s *shareLinkMemStore) GetByID(ctx context.Context, id string) (*models.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *l
	return &clone, nil
}

func (s *shareLinkMemStore) GetByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.items {
		if l.Token == token {
			clone := *l
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *shareLinkMemStore) Revoke(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.items[id]
	if !ok || l.RevokedAt != nil {
		return sql.ErrNoRows
	}
	l.RevokedAt = &at
	return nil
}

func (s *shareLinkMemStore) IncrementViews(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.items[id]
	if !ok || !l.ActiveAt(now) {
		return sql.ErrNoRows
	}
	l.ViewCount++
	return nil
}

type auditMemStore struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (s *auditMemStore) Create(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return nil
}

func (s *auditMemStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, l.Action)
	}
	return out
}

type dispatchedJob struct {
	jobID    string
	entityID string
	payload  models.JobPayload
}

type dispatcherStub struct {
	mu   sync.Mutex
	jobs []dispatchedJob
	live map[string]bool
	err  error
}

func (d *dispatcherStub) Dispatch(ctx context.Context, entityID string, payload models.JobPayload) (models.JobReceipt, error) {
	return d.DispatchAs(ctx, uuid.NewString(), entityID, payload)
}

// DispatchAs rejects ids still marked live, like the redis broker does.
func (d *dispatcherStub) DispatchAs(ctx context.Context, jobID, entityID string, payload models.JobPayload) (models.JobReceipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return models.JobReceipt{}, d.err
	}
	if d.live[jobID] {
		return models.JobReceipt{}, appErrors.External(jobs.ErrAlreadyQueued, "failed to enqueue job")
	}
	if d.live == nil {
		d.live = make(map[string]bool)
	}
	d.live[jobID] = true
	d.jobs = append(d.jobs, dispatchedJob{jobID: jobID, entityID: entityID, payload: payload})
	return models.JobReceipt{JobID: jobID, Type: payload.JobType(), Queue: payload.JobType().Queue(), EntityID: entityID}, nil
}

// drain forgets live ids, as if the worker had acked every job.
func (d *dispatcherStub) drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live = nil
}

func (d *dispatcherStub) types() []models.JobType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.JobType, 0, len(d.jobs))
	for _, j := range d.jobs {
		out = append(out, j.payload.JobType())
	}
	return out
}
