package authorization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestSatisfiesFollowsHierarchy(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		actor    Role
		required Role
		want     bool
	}{
		{RoleDiretor, RoleGerente, true},
		{RoleGerente, RoleGerente, true},
		{RoleCoordenador, RoleGerente, false},
		{RoleAdmin, RoleDiretor, true},
		{RoleVendedor, RoleCoordenador, false},
	}
	for _, tc := range cases {
		got, err := svc.Satisfies(tc.actor, tc.required)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s vs %s", tc.actor, tc.required)
	}
}

func TestSatisfiesRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Satisfies(Role("intern"), RoleGerente)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestAuthorizeInheritsGrants(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, "gerente", ObjectQuote, ActionQuoteEdit))
	assert.NoError(t, svc.Authorize(ctx, "admin", ObjectConfiguration, ActionConfigManage))
	assert.ErrorIs(t, svc.Authorize(ctx, "diretor", ObjectConfiguration, ActionConfigManage), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, "vendedor", ObjectApproval, ActionApprovalView), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, "", ObjectQuote, ActionQuoteView), ErrInvalidActor)
}

func TestRoleHelpers(t *testing.T) {
	assert.Equal(t, RoleDiretor, MaxRole(RoleGerente, RoleDiretor, RoleVendedor))
	assert.Equal(t, RoleAdmin, RoleAdmin.Next())
	assert.Equal(t, RoleGerente, RoleCoordenador.Next())

	role, err := ParseRole(" Gerente ")
	require.NoError(t, err)
	assert.Equal(t, RoleGerente, role)

	_, err = ParseRole("boss")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
