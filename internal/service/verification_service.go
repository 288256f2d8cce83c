package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	"github.com/noah-isme/credential-ledger-api/pkg/canonical"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
	"github.com/noah-isme/credential-ledger-api/pkg/ledger"
)

// Verification outcomes reported in VerificationResult.Reason.
const (
	ReasonCredentialNotFound = "credential not found"
	ReasonLinkNotFound       = "share link not found"
	ReasonLinkRevoked        = "share link revoked"
	ReasonLinkExpired        = "share link expired"
	ReasonNotIssued          = "credential not issued"
	ReasonRevoked            = "credential revoked"
	ReasonReplaced           = "credential replaced"
	ReasonIntegrity          = "document hash mismatch"
	ReasonLedgerMissing      = "token not found on ledger"
	ReasonLedgerRevoked      = "token revoked on ledger"
	ReasonLedgerHash         = "ledger document hash mismatch"
)

type verificationCredentialStore interface {
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	GetByHash(ctx context.Context, documentHash string) (*models.Credential, error)
	GetByTokenID(ctx context.Context, tokenID string) (*models.Credential, error)
}

type shareLinkStore interface {
	Create(ctx context.Context, link *models.ShareLink) error
	GetByID(ctx context.Context, id string) (*models.ShareLink, error)
	GetByToken(ctx context.Context, token string) (*models.ShareLink, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	IncrementViews(ctx context.Context, id string, now time.Time) error
}

type shareTokenSigner interface {
	Generate(credentialID string) (string, error)
	Parse(token string) (string, error)
}

// VerificationConfig tunes verification behaviour.
type VerificationConfig struct {
	ShareLinkTTL time.Duration
	LedgerCheck  bool
}

// VerificationService answers public verification lookups and manages share links.
type VerificationService struct {
	credentials verificationCredentialStore
	links       shareLinkStore
	tokens      shareTokenSigner
	contract    ledger.Contract
	audit       *AuditEmitter
	logger      *zap.Logger
	cfg         VerificationConfig
	now         func() time.Time
}

// NewVerificationService constructs the service. contract may be nil when
// ledger cross-checks are disabled.
func NewVerificationService(credentials verificationCredentialStore, links shareLinkStore, tokens shareTokenSigner, contract ledger.Contract, audit *AuditEmitter, logger *zap.Logger, cfg VerificationConfig) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if contract == nil {
		cfg.LedgerCheck = false
	}
	return &VerificationService{
		credentials: credentials,
		links:       links,
		tokens:      tokens,
		contract:    contract,
		audit:       audit,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// VerifyByShareToken resolves an active share link and verifies its credential.
// A valid read increments the link's view count. Revocation details of a
// withdrawn credential are returned whatever the state of the link.
func (s *VerificationService) VerifyByShareToken(ctx context.Context, token string) (*dto.VerificationResult, error) {
	credentialID, err := s.tokens.Parse(token)
	if err != nil {
		return &dto.VerificationResult{Reason: ReasonLinkNotFound}, nil
	}
	link, err := s.links.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.VerificationResult{Reason: ReasonLinkNotFound}, nil
		}
		return nil, appErrors.Internal(err, "failed to load share link")
	}
	if link.CredentialID != credentialID {
		return &dto.VerificationResult{Reason: ReasonLinkNotFound}, nil
	}
	credential, err := s.credentials.GetByID(ctx, link.CredentialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.VerificationResult{Reason: ReasonCredentialNotFound}, nil
		}
		return nil, appErrors.Internal(err, "failed to load credential")
	}
	// A withdrawn credential reports its revocation even through a dead link.
	if credential.Status.Withdrawn() {
		return s.evaluate(ctx, credential), nil
	}
	now := s.now()
	if link.RevokedAt != nil {
		return &dto.VerificationResult{Reason: ReasonLinkRevoked}, nil
	}
	if !link.ActiveAt(now) {
		return &dto.VerificationResult{Reason: ReasonLinkExpired}, nil
	}

	result := s.evaluate(ctx, credential)
	if !result.Valid {
		return result, nil
	}
	if err := s.links.IncrementViews(ctx, link.ID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.VerificationResult{Reason: ReasonLinkExpired}, nil
		}
		s.logger.Warn("failed to count share link view", zap.String("share_link_id", link.ID), zap.Error(err))
	}
	return result, nil
}

// VerifyByHash verifies the credential anchored by a document hash.
func (s *VerificationService) VerifyByHash(ctx context.Context, documentHash string) (*dto.VerificationResult, error) {
	hash, ok := canonical.NormalizeHash(documentHash)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document hash must be 32 bytes of hex")
	}
	credential, err := s.credentials.GetByHash(ctx, hash)
	return s.resolve(ctx, credential, err)
}

// VerifyByTokenID verifies the credential bound to a ledger token.
func (s *VerificationService) VerifyByTokenID(ctx context.Context, tokenID string) (*dto.VerificationResult, error) {
	id, err := ledger.NormalizeTokenID(tokenID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token id")
	}
	credential, err := s.credentials.GetByTokenID(ctx, id)
	return s.resolve(ctx, credential, err)
}

func (s *VerificationService) resolve(ctx context.Context, credential *models.Credential, err error) (*dto.VerificationResult, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.VerificationResult{Reason: ReasonCredentialNotFound}, nil
		}
		return nil, appErrors.Internal(err, "failed to load credential")
	}
	return s.evaluate(ctx, credential), nil
}

// evaluate applies the status, integrity and optional ledger checks shared by all lookups.
func (s *VerificationService) evaluate(ctx context.Context, credential *models.Credential) *dto.VerificationResult {
	result := &dto.VerificationResult{Credential: credential}
	switch {
	case credential.Status == models.CredentialStatusPending:
		result.Reason = ReasonNotIssued
		return result
	case credential.Status.Withdrawn():
		result.Reason = ReasonRevoked
		if credential.Status == models.CredentialStatusReplaced {
			result.Reason = ReasonReplaced
		}
		result.RevokedAt = credential.RevokedAt
		result.RevokeReason = credential.RevokeReason
		return result
	}

	recomputed, err := canonical.Hash(credential.Payload)
	if err != nil || !canonical.EqualHash(recomputed, credential.DocumentHash) {
		s.logger.Error("credential failed integrity check",
			zap.String("credential_id", credential.ID),
			zap.String("stored_hash", credential.DocumentHash),
			zap.String("computed_hash", recomputed),
		)
		result.Reason = ReasonIntegrity
		return result
	}
	result.Valid = true

	if !s.cfg.LedgerCheck || credential.TokenID == nil {
		return result
	}
	state, err := s.contract.GetCredential(ctx, *credential.TokenID)
	if err != nil {
		if errors.Is(err, ledger.ErrTokenNotFound) {
			result.Valid = false
			result.Reason = ReasonLedgerMissing
			return result
		}
		s.logger.Warn("ledger cross-check unavailable", zap.String("credential_id", credential.ID), zap.Error(err))
		return result
	}
	result.Ledger = &dto.LedgerStatus{
		TokenID:  state.TokenID,
		Owner:    state.Owner,
		Revoked:  state.Revoked,
		HashSeen: canonical.EqualHash(state.DocumentHash, credential.DocumentHash),
	}
	switch {
	case state.Revoked:
		result.Valid = false
		result.Reason = ReasonLedgerRevoked
	case !result.Ledger.HashSeen:
		result.Valid = false
		result.Reason = ReasonLedgerHash
	}
	return result
}

// CreateShareLink issues a public link for an ISSUED credential. A zero TTL
// in the request creates a link without expiry.
func (s *VerificationService) CreateShareLink(ctx context.Context, credentialID string, req dto.CreateShareLinkRequest, actorID string) (*models.ShareLink, error) {
	credential, err := s.credentials.GetByID(ctx, credentialID)
	if err != nil {
		return nil, loadErr(err, "credential")
	}
	if credential.Status != models.CredentialStatusIssued {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only ISSUED credentials can be shared")
	}
	ttl := s.cfg.ShareLinkTTL
	if req.TTL != nil {
		if req.TTL.Duration < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "ttl must not be negative")
		}
		ttl = req.TTL.Duration
	}
	token, err := s.tokens.Generate(credential.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate share token")
	}
	now := s.now()
	link := &models.ShareLink{
		Token:        token,
		CredentialID: credential.ID,
		CreatedBy:    actorID,
		CreatedAt:    now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		link.ExpiresAt = &expires
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, appErrors.Internal(err, "failed to create share link")
	}
	s.audit.Emit(ctx, actorID, models.AuditActionShareLinkCreate, models.EntityShareLink, link.ID, map[string]interface{}{
		"credentialId": credential.ID,
	})
	return link, nil
}

// RevokeShareLink disables a link.
func (s *VerificationService) RevokeShareLink(ctx context.Context, id, actorID string) error {
	if err := s.links.Revoke(ctx, id, s.now()); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to revoke share link")
		}
		if _, getErr := s.links.GetByID(ctx, id); getErr != nil {
			return loadErr(getErr, "share link")
		}
		return appErrors.Clone(appErrors.ErrInvalidState, "share link already revoked")
	}
	s.audit.Emit(ctx, actorID, models.AuditActionShareLinkRevoke, models.EntityShareLink, id, nil)
	return nil
}
