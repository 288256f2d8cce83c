package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credential-ledger-api/internal/middleware"
	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorID returns the authenticated subject, or "" on public routes.
func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func queryLimit(c *gin.Context, fallback, max int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		return 0, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and "+strconv.Itoa(max))
	}
	return limit, nil
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
