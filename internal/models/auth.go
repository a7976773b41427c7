package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates roles recognised by the admin guard. Tokens are
// issued by the external identity service; this API only verifies them.
type UserRole string

// Recognised roles.
const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStaff   UserRole = "STAFF"
	RoleStudent UserRole = "STUDENT"
)

// JWTClaims is the access-token payload minted by the identity service.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
