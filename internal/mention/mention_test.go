package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

var directory = []models.Agent{
	{Name: "Nova Sterling", Role: "engineer"},
	{Name: "Pixel Hart", Role: "ui/ux"},
	{Name: "Sage Monroe", Role: "qa"},
}

func TestResolve_twoWordNamePreferred(t *testing.T) {
	res := Resolve("@Nova Sterling please take a look", "Pixel Hart", directory)
	assert.Equal(t, []string{"Nova Sterling"}, res.Targets)
	assert.False(t, res.MentionedAll)
}

func TestResolve_singleWordFallback(t *testing.T) {
	// "nova please" is not a known name; the single-word reading resolves.
	res := Resolve("@nova please review", "Pixel Hart", directory)
	assert.Equal(t, []string{"Nova Sterling"}, res.Targets)
}

func TestResolve_byRole(t *testing.T) {
	res := Resolve("flagging @qa on this one", "Nova Sterling", directory)
	assert.Equal(t, []string{"Sage Monroe"}, res.Targets)
}

func TestResolve_roleWithSlash(t *testing.T) {
	res := Resolve("needs eyes from @ui/ux before merge", "Nova Sterling", directory)
	assert.Equal(t, []string{"Pixel Hart"}, res.Targets)
}

func TestResolve_all(t *testing.T) {
	res := Resolve("@all standup in five", "Sage Monroe", directory)
	assert.True(t, res.MentionedAll)
	assert.Equal(t, []string{"Nova Sterling", "Pixel Hart"}, res.Targets,
		"sender is excluded from the @all expansion")
}

func TestResolve_senderNeverTargeted(t *testing.T) {
	res := Resolve("@Nova Sterling talking to myself", "Nova Sterling", directory)
	assert.Empty(t, res.Targets)
}

func TestResolve_unknownAndAmbiguousDropped(t *testing.T) {
	two := append(directory, models.Agent{Name: "Echo Reyes", Role: "engineer"})
	res := Resolve("@nobody and @engineer should see this", "Sage Monroe", two)
	assert.Empty(t, res.Targets, "unknown and ambiguous mentions resolve to nothing")
}

func TestResolve_deduplicates(t *testing.T) {
	res := Resolve("@Nova Sterling and again @nova sterling and @engineer", "Pixel Hart", directory)
	assert.Equal(t, []string{"Nova Sterling"}, res.Targets)
}

func TestResolve_firstMentionOrder(t *testing.T) {
	res := Resolve("@Sage Monroe then @Pixel Hart then @Nova Sterling", "someone", directory)
	assert.Equal(t, []string{"Sage Monroe", "Pixel Hart", "Nova Sterling"}, res.Targets)
}

func TestResolve_noMentions(t *testing.T) {
	res := Resolve("plain message, email me at x@example.com excluded? no:", "Nova Sterling", directory)
	assert.False(t, res.MentionedAll)
	assert.Empty(t, res.Targets)
}

func TestSubscriptions(t *testing.T) {
	res := Resolution{Targets: []string{"Nova Sterling", "Sage Monroe"}}
	subs := Subscriptions(42, "Pixel Hart", res)
	assert.Equal(t, []models.Subscription{
		{AgentName: "Pixel Hart", TaskID: 42},
		{AgentName: "Nova Sterling", TaskID: 42},
		{AgentName: "Sage Monroe", TaskID: 42},
	}, subs)
}
