package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
	"github.com/noah-isme/credential-ledger-api/pkg/response"
)

type credentialService interface {
	CreateCredential(ctx context.Context, req dto.CreateCredentialRequest, actorID string) (*models.Credential, error)
	Get(ctx context.Context, id string) (*models.Credential, error)
	List(ctx context.Context, filter models.CredentialFilter) ([]models.Credential, error)
	IssueCredential(ctx context.Context, id, actorID string) (*dto.IssueCredentialResponse, error)
	RevokeCredential(ctx context.Context, id string, req dto.RevokeCredentialRequest, actorID string) (*models.JobReceipt, error)
	ReplaceCredential(ctx context.Context, id string, req dto.RevokeCredentialRequest, actorID string) (*dto.ReplaceCredentialResponse, error)
}

type shareLinkService interface {
	CreateShareLink(ctx context.Context, credentialID string, req dto.CreateShareLinkRequest, actorID string) (*models.ShareLink, error)
	RevokeShareLink(ctx context.Context, id, actorID string) error
}

type reconciler interface {
	Reconcile(ctx context.Context, credentialID string) (*dto.ReconcileReport, error)
}

// CredentialHandler exposes the credential lifecycle.
type CredentialHandler struct {
	credentials credentialService
	links       shareLinkService
	chain       reconciler
}

// NewCredentialHandler builds a new handler. chain may be nil when no shared
// ledger is reachable from the API.
func NewCredentialHandler(credentials credentialService, links shareLinkService, chain reconciler) *CredentialHandler {
	return &CredentialHandler{credentials: credentials, links: links, chain: chain}
}

// Create godoc
// @Summary Create a PENDING credential
// @Tags Credentials
// @Accept json
// @Produce json
// @Param payload body dto.CreateCredentialRequest true "Credential"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /credentials [post]
func (h *CredentialHandler) Create(c *gin.Context) {
	var req dto.CreateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid credential payload"))
		return
	}
	credential, err := h.credentials.CreateCredential(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, credential)
}

// List godoc
// @Summary List credentials
// @Tags Credentials
// @Produce json
// @Param studentId query string false "Student ID"
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Credential type"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /credentials [get]
func (h *CredentialHandler) List(c *gin.Context) {
	var query dto.CredentialListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query"))
		return
	}
	filter := models.CredentialFilter{StudentID: query.StudentID, Limit: query.Limit}
	if query.Type != "" {
		filter.Type = models.CredentialType(strings.ToUpper(query.Type))
		if !filter.Type.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown credential type"))
			return
		}
	}
	if query.Status != "" {
		for _, raw := range strings.Split(query.Status, ",") {
			status := models.CredentialStatus(strings.ToUpper(strings.TrimSpace(raw)))
			if !status.Valid() {
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown credential status"))
				return
			}
			filter.Status = append(filter.Status, status)
		}
	}
	credentials, err := h.credentials.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credentials, map[string]interface{}{"count": len(credentials)})
}

// Get godoc
// @Summary Get a credential
// @Tags Credentials
// @Produce json
// @Param id path string true "Credential ID"
// @Success 200 {object} response.Envelope
// @Router /credentials/{id} [get]
func (h *CredentialHandler) Get(c *gin.Context) {
	credential, err := h.credentials.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credential)
}

// Issue godoc
// @Summary Request minting of a PENDING credential
// @Tags Credentials
// @Produce json
// @Param id path string true "Credential ID"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /credentials/{id}/issue [post]
func (h *CredentialHandler) Issue(c *gin.Context) {
	result, err := h.credentials.IssueCredential(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// Revoke godoc
// @Summary Request revocation of an ISSUED credential
// @Tags Credentials
// @Accept json
// @Produce json
// @Param id path string true "Credential ID"
// @Param payload body dto.RevokeCredentialRequest true "Reason"
// @Success 202 {object} response.Envelope
// @Router /credentials/{id}/revoke [post]
func (h *CredentialHandler) Revoke(c *gin.Context) {
	var req dto.RevokeCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid revoke payload"))
		return
	}
	receipt, err := h.credentials.RevokeCredential(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, receipt)
}

// Replace godoc
// @Summary Replace an ISSUED credential with a corrected one
// @Tags Credentials
// @Accept json
// @Produce json
// @Param id path string true "Credential ID"
// @Param payload body dto.RevokeCredentialRequest true "Reason"
// @Success 202 {object} response.Envelope
// @Router /credentials/{id}/replace [post]
func (h *CredentialHandler) Replace(c *gin.Context) {
	var req dto.RevokeCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid replace payload"))
		return
	}
	result, err := h.credentials.ReplaceCredential(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// Reconcile godoc
// @Summary Compare a credential with its ledger token
// @Tags Credentials
// @Produce json
// @Param id path string true "Credential ID"
// @Success 200 {object} response.Envelope
// @Router /credentials/{id}/reconcile [get]
func (h *CredentialHandler) Reconcile(c *gin.Context) {
	if h.chain == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrExternalService, "ledger reconciliation is not configured"))
		return
	}
	report, err := h.chain.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// CreateShareLink godoc
// @Summary Create a public verification link
// @Tags Credentials
// @Accept json
// @Produce json
// @Param id path string true "Credential ID"
// @Param payload body dto.CreateShareLinkRequest false "Link options"
// @Success 201 {object} response.Envelope
// @Router /credentials/{id}/share-links [post]
func (h *CredentialHandler) CreateShareLink(c *gin.Context) {
	var req dto.CreateShareLinkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid share link payload"))
			return
		}
	}
	link, err := h.links.CreateShareLink(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// RevokeShareLink godoc
// @Summary Disable a share link
// @Tags Credentials
// @Param id path string true "Share link ID"
// @Success 204
// @Router /share-links/{id} [delete]
func (h *CredentialHandler) RevokeShareLink(c *gin.Context) {
	if err := h.links.RevokeShareLink(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
