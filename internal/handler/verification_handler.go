package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credential-ledger-api/internal/dto"
	"github.com/noah-isme/credential-ledger-api/pkg/response"
)

type verificationService interface {
	VerifyByShareToken(ctx context.Context, token string) (*dto.VerificationResult, error)
	VerifyByHash(ctx context.Context, documentHash string) (*dto.VerificationResult, error)
	VerifyByTokenID(ctx context.Context, tokenID string) (*dto.VerificationResult, error)
}

type verificationRecorder interface {
	RecordVerification(method string, valid bool)
}

// VerificationHandler serves the public verification endpoints. An invalid
// credential is a normal 200 answer with valid=false.
type VerificationHandler struct {
	service  verificationService
	recorder verificationRecorder
}

// NewVerificationHandler builds a new handler. recorder may be nil.
func NewVerificationHandler(service verificationService, recorder verificationRecorder) *VerificationHandler {
	return &VerificationHandler{service: service, recorder: recorder}
}

// ByShareToken godoc
// @Summary Verify a credential through a share link
// @Tags Verification
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} response.Envelope
// @Router /verify/share/{token} [get]
func (h *VerificationHandler) ByShareToken(c *gin.Context) {
	h.verify(c, "share", c.Param("token"), h.service.VerifyByShareToken)
}

// ByHash godoc
// @Summary Verify a credential by document hash
// @Tags Verification
// @Produce json
// @Param hash path string true "0x-prefixed document hash"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /verify/hash/{hash} [get]
func (h *VerificationHandler) ByHash(c *gin.Context) {
	h.verify(c, "hash", c.Param("hash"), h.service.VerifyByHash)
}

// ByTokenID godoc
// @Summary Verify a credential by ledger token id
// @Tags Verification
// @Produce json
// @Param tokenId path string true "Token ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /verify/token/{tokenId} [get]
func (h *VerificationHandler) ByTokenID(c *gin.Context) {
	h.verify(c, "token", c.Param("tokenId"), h.service.VerifyByTokenID)
}

func (h *VerificationHandler) verify(c *gin.Context, method, key string, fn func(context.Context, string) (*dto.VerificationResult, error)) {
	result, err := fn(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.recorder != nil {
		h.recorder.RecordVerification(method, result.Valid)
	}
	response.JSON(c, http.StatusOK, result)
}
