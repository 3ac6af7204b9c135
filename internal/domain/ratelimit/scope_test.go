package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey_DistinguishesScopes(t *testing.T) {
	id := Identity{Tenant: "acme", User: "u1", Tool: "GetUser"}

	require.Equal(t, "scope:global", Key(ScopeGlobal, id))
	require.Equal(t, "scope:tenant:acme", Key(ScopeTenant, id))
	require.Equal(t, "scope:user:u1", Key(ScopeUser, id))
	require.Equal(t, "scope:tool:GetUser", Key(ScopeTool, id))
	require.Equal(t, "scope:tenantTool:acme:GetUser", Key(ScopeTenantTool, id))
	require.Equal(t, "scope:userTool:u1:GetUser", Key(ScopeUserTool, id))
}

func TestKey_MissingDimensionUsesDash(t *testing.T) {
	require.Equal(t, "scope:tenant:-", Key(ScopeTenant, Identity{}))
	require.Equal(t, "scope:tenantTool:-:-", Key(ScopeTenantTool, Identity{}))
}
