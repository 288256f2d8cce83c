package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleAcademic   UserRole = "ACADEMIC"
	RoleRegistrar  UserRole = "REGISTRAR"
	RoleStudent    UserRole = "STUDENT"
)

// JWTClaims represents the payload of identity-provider access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified subject of an access token.
type Identity struct {
	SubjectID string    `json:"subjectId"`
	Role      UserRole  `json:"role"`
	Issuer    string    `json:"issuer"`
	IssuedAt  time.Time `json:"issuedAt"`
	Expiry    time.Time `json:"expiry"`
}
