package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salzamar/openclaw-mission-control/internal/config"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

var testAgents = []models.Agent{
	{Name: "Pixel Hart", Role: "ui/ux"},
	{Name: "Sage Monroe", Role: "qa"},
	{Name: "Cliff Ops", Role: "devops"},
	{Name: "Quill Page", Role: "writer"},
	{Name: "Isla Query", Role: "research"},
	{Name: "Nova Sterling", Role: "engineer"},
	{Name: "Atlas Prime", Role: "lead"},
}

func TestRoute_firstMatchWins(t *testing.T) {
	e := MustDefault("lead")

	// Matches both the ui/ux rule ("ui") and the engineer rule ("build");
	// the earlier rule must win.
	name, role, ok := e.Route("Build the settings UI", "", nil, testAgents)
	require.True(t, ok)
	assert.Equal(t, "ui/ux", role)
	assert.Equal(t, "Pixel Hart", name)
}

func TestRoute_matchesDescriptionAndTags(t *testing.T) {
	e := MustDefault("lead")

	name, role, ok := e.Route("Untitled", "set up the deploy pipeline", nil, testAgents)
	require.True(t, ok)
	assert.Equal(t, "devops", role)
	assert.Equal(t, "Cliff Ops", name)

	name, role, ok = e.Route("Untitled", "", []string{"regression"}, testAgents)
	require.True(t, ok)
	assert.Equal(t, "qa", role)
	assert.Equal(t, "Sage Monroe", name)
}

func TestRoute_deterministic(t *testing.T) {
	e := MustDefault("lead")
	first, _, ok := e.Route("fix the login api", "", nil, testAgents)
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		name, _, ok := e.Route("fix the login api", "", nil, testAgents)
		require.True(t, ok)
		assert.Equal(t, first, name)
	}
}

func TestRoute_fallbackWhenNoRuleMatches(t *testing.T) {
	e := MustDefault("lead")
	name, role, ok := e.Route("ponder the meaning of clouds", "", nil, testAgents)
	require.True(t, ok)
	assert.Empty(t, role, "fallback routing reports no matched role")
	assert.Equal(t, "Atlas Prime", name)
}

func TestRoute_matchedRoleUnstaffedFallsBack(t *testing.T) {
	// No qa agent in the directory: the qa rule fires but cannot resolve, and
	// routing goes to the fallback rather than trying weaker rules. The task
	// also contains "fix", which would match the engineer rule, so this
	// guards against falling through.
	agents := []models.Agent{
		{Name: "Nova Sterling", Role: "engineer"},
		{Name: "Atlas Prime", Role: "lead"},
	}
	e := MustDefault("lead")
	name, role, ok := e.Route("test and fix the checkout flow", "", nil, agents)
	require.True(t, ok)
	assert.Empty(t, role)
	assert.Equal(t, "Atlas Prime", name)
}

func TestRoute_noFallbackAgent(t *testing.T) {
	e := MustDefault("lead")
	name, role, ok := e.Route("ponder the meaning of clouds", "", nil, []models.Agent{
		{Name: "Nova Sterling", Role: "engineer"},
	})
	assert.False(t, ok)
	assert.Empty(t, name)
	assert.Empty(t, role)
}

func TestNew_preservesOrder(t *testing.T) {
	rules := []config.AssignmentRule{
		{Role: "second", Patterns: []string{"alpha"}},
		{Role: "first", Patterns: []string{"alpha"}},
	}
	e, err := New(rules, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, e.Rules())

	agents := []models.Agent{
		{Name: "A", Role: "first"},
		{Name: "B", Role: "second"},
	}
	name, role, ok := e.Route("alpha", "", nil, agents)
	require.True(t, ok)
	assert.Equal(t, "second", role)
	assert.Equal(t, "B", name)
}

func TestNew_badPattern(t *testing.T) {
	_, err := New([]config.AssignmentRule{{Role: "broken", Patterns: []string{"("}}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rule "broken"`)
}

func TestRoute_caseInsensitive(t *testing.T) {
	e := MustDefault("lead")
	name, role, ok := e.Route("DEPLOY TO STAGING", "", nil, testAgents)
	require.True(t, ok)
	assert.Equal(t, "devops", role)
	assert.Equal(t, "Cliff Ops", name)
}
