package middleware

import (
	"veritax/internal/platform/token"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

// TokenServiceValidator adapts the token service to the TokenValidator
// interface, parsing claim strings into typed IDs at the trust boundary.
type TokenServiceValidator struct {
	Tokens *token.Service
}

func (v TokenServiceValidator) Validate(tokenString string) (*TokenIdentity, error) {
	claims, err := v.Tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	orgID, err := id.ParseOrgID(claims.OrgID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries no organization")
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries no user")
	}
	return &TokenIdentity{OrgID: orgID, UserID: userID, Role: claims.Role}, nil
}
