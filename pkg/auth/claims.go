package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Role is the staff role carried by operator tokens.
type Role string

const (
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleOperator || r == RoleAdmin
}

// OperatorClaims is the JWT payload issued to warehouse and support staff by
// the identity service.
type OperatorClaims struct {
	OperatorID string `json:"operator_id"`
	Role       Role   `json:"role"`
	BranchID   *int64 `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}
