// Package identity resolves the acting operator from a session token.
//
// The engine is the authority that verifies tokens; the client only reads
// claims to label acknowledgments, so tokens are parsed without verification.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// ErrNoToken is returned for an empty token.
var ErrNoToken = errors.New("no session token")

// SessionClaims are the claims read from an engine session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Name  string   `json:"name,omitempty"`
}

// ParseRole maps a claim value to an actor role. Unknown values are operators.
func ParseRole(s string) contracts.ActorRole {
	if strings.EqualFold(strings.TrimSpace(s), string(contracts.RoleAdmin)) {
		return contracts.RoleAdmin
	}
	return contracts.RoleOperator
}

// ActorFromToken reads the actor from token claims. The name falls back to
// the subject; the role to the first entry of "roles", then to OPERADOR.
func ActorFromToken(token string) (contracts.Actor, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return contracts.Actor{}, ErrNoToken
	}

	claims := &SessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return contracts.Actor{}, fmt.Errorf("parse session token: %w", err)
	}

	role := claims.Role
	if role == "" && len(claims.Roles) > 0 {
		role = claims.Roles[0]
	}
	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = claims.Subject
	}
	return contracts.Actor{Role: ParseRole(role), Name: name}, nil
}

// Resolve prefers the token when one is set, and falls back to the given actor.
func Resolve(token string, fallback contracts.Actor) contracts.Actor {
	if token == "" {
		return fallback
	}
	actor, err := ActorFromToken(token)
	if err != nil {
		return fallback
	}
	if actor.Name == "" {
		actor.Name = fallback.Name
	}
	return actor
}
