package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

func sign(t *testing.T, claims SessionClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestActorFromToken(t *testing.T) {
	tok := sign(t, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-17"},
		Role:             "admin",
		Name:             "Marina Souza",
	})

	actor, err := ActorFromToken("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, contracts.RoleAdmin, actor.Role)
	assert.Equal(t, "Marina Souza", actor.Name)
}

func TestActorFromTokenFallbacks(t *testing.T) {
	tok := sign(t, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-17"},
		Roles:            []string{"SUPERVISOR"},
	})

	actor, err := ActorFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, contracts.RoleOperator, actor.Role)
	assert.Equal(t, "u-17", actor.Name)
}

func TestActorFromTokenErrors(t *testing.T) {
	_, err := ActorFromToken("  ")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = ActorFromToken("not-a-jwt")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	fallback := contracts.Actor{Role: contracts.RoleOperator, Name: "Caixa 1"}
	assert.Equal(t, fallback, Resolve("", fallback))
	assert.Equal(t, fallback, Resolve("garbage", fallback))

	tok := sign(t, SessionClaims{Role: "ADMIN"})
	assert.Equal(t, contracts.Actor{Role: contracts.RoleAdmin, Name: "Caixa 1"}, Resolve(tok, fallback))
}
