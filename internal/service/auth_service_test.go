package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Issuer: "idp", Audience: "credentials"}, nil)

	token, err := svc.IssueToken("user-1", models.RoleRegistrar, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleRegistrar, claims.Role)

	identity := svc.Identity(claims)
	assert.Equal(t, "user-1", identity.SubjectID)
	assert.Equal(t, "idp", identity.Issuer)
	assert.False(t, identity.Expiry.IsZero())
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Issuer: "idp"}, nil)

	expired, err := svc.IssueToken("user-1", models.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	other := NewAuthService(AuthConfig{Secret: "other", Issuer: "idp"}, nil)
	forged, err := other.IssueToken("user-1", models.RoleAdmin, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer := NewAuthService(AuthConfig{Secret: "secret", Issuer: "elsewhere"}, nil)
	foreign, err := wrongIssuer.IssueToken("user-1", models.RoleAdmin, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRequiresRole(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret"}, nil)
	claims := models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceFallsBackToSubject(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret"}, nil)
	claims := models.JWTClaims{Role: models.RoleStudent, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "stu-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	parsed, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "stu-user", parsed.UserID)
}
