package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToolPolicy_PrefixWildcard(t *testing.T) {
	tp := NewToolPolicy(ToolPolicyConfig{AllowedPatterns: []string{"weather*"}, DenyByDefault: true})
	require.True(t, tp.Decide("weather.forecast"))
	require.False(t, tp.Decide("news.latest"))
}

func TestToolPolicy_SuffixWildcard(t *testing.T) {
	tp := NewToolPolicy(ToolPolicyConfig{AllowedPatterns: []string{"*.read"}, DenyByDefault: true})
	require.True(t, tp.Decide("ns1.users.read"))
	require.False(t, tp.Decide("ns1.users.write"))
}

func TestToolPolicy_InfixWildcard(t *testing.T) {
	tp := NewToolPolicy(ToolPolicyConfig{AllowedPatterns: []string{"weather*cast"}, DenyByDefault: true})
	require.True(t, tp.Decide("weather.broadcast"))
	require.False(t, tp.Decide("weather.report"))
}

func TestToolPolicy_DenyAlwaysWins(t *testing.T) {
	tp := NewToolPolicy(ToolPolicyConfig{AllowedPatterns: []string{"*"}, DeniedPatterns: []string{"*.internal"}})
	require.True(t, tp.Decide("ns1.tool"))
	require.False(t, tp.Decide("ns1.tool.internal"))
}

func TestToolPolicy_AllowsEverythingWhenNoRulesAndNotDenyByDefault(t *testing.T) {
	tp := NewToolPolicy(ToolPolicyConfig{})
	require.True(t, tp.Decide("anything.at.all"))
	require.False(t, tp.IsActive())
}

func TestToolPolicy_IsActiveWhenDenyByDefaultOrPatternsExist(t *testing.T) {
	require.True(t, NewToolPolicy(ToolPolicyConfig{DenyByDefault: true}).IsActive())
	require.True(t, NewToolPolicy(ToolPolicyConfig{DeniedPatterns: []string{"x*"}}).IsActive())
}
