package graph

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/Jeevan-04/Invariant/pkg/errs"
)

// identityClaims is the bearer-token shape IdentityFromJWT expects:
// the registered "sub" claim plus three custom claims naming the
// caller's role, org, and env.
type identityClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Org  string `json:"org"`
	Env  string `json:"env"`
}

// IdentityFromJWT parses and validates tokenString with keyFunc, then
// derives an Identity from its claims (sub -> user_id, plus role/org/
// env). It is a convenience constructor for callers sitting behind
// JWT-authenticated ingress; nothing in the boundary itself parses
// tokens.
func IdentityFromJWT(tokenString string, keyFunc jwt.Keyfunc) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, keyFunc)
	if err != nil {
		return Identity{}, errs.Input("jwt: %s", err)
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid {
		return Identity{}, errs.Input("jwt: token invalid")
	}

	return NewIdentity(claims.Subject, claims.Role, claims.Org, claims.Env)
}
