// Package modelclaims provides types for token authorization.

package modelclaims

import "github.com/golang-jwt/jwt"

// LedgerClaims is the claim set minted by the auth service for ledger callers.
type LedgerClaims struct {
	UserID   string `json:"userID"`
	IsStaff  bool   `json:"isStaff"`
	IsTrader bool   `json:"isTrader"`
	jwt.StandardClaims
}

// Actor is the authenticated identity every ledger operation receives.
type Actor struct {
	UserID   string
	IsStaff  bool
	IsTrader bool
}
