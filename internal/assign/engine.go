// Package assign routes unowned tasks to agents by matching task text
// against an ordered rule table.
package assign

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/salzamar/openclaw-mission-control/internal/config"
	"github.com/salzamar/openclaw-mission-control/internal/roster"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// rule is one compiled entry of the table: a role name and the patterns that
// select it. Patterns are case-insensitive regexps; plain words act as
// substring matches.
type rule struct {
	Role     string
	Patterns []*regexp.Regexp
}

// Engine picks an owning agent for tasks that arrive with no assignee.
//
// The rule table is ordered most-specific first and evaluation is strictly
// first-match-wins: rules are not mutually exclusive (a task mentioning
// "build the settings UI" matches both the design rule and the generic
// implementation rule), so reordering rules changes routing for ambiguous
// tasks. Keep new rules above the catch-all entries.
type Engine struct {
	rules    []rule
	fallback string
}

// DefaultRules is the built-in routing table, in evaluation order.
var DefaultRules = []config.AssignmentRule{
	{Role: "ui/ux", Patterns: []string{"ui", "ux", "design", "wireframe", "mockup", "figma", "styling", "css", "layout"}},
	{Role: "qa", Patterns: []string{"test", "qa", "verify", "regression", "validation", "bug"}},
	{Role: "devops", Patterns: []string{"deploy", "docker", "kubernetes", "infra", "pipeline", "ci/cd", "terraform"}},
	{Role: "writer", Patterns: []string{"docs", "documentation", "readme", "guide", "changelog"}},
	{Role: "research", Patterns: []string{"research", "investigate", "analysis", "explore", "benchmark"}},
	{Role: "engineer", Patterns: []string{"implement", "build", "code", "fix", "api", "backend", "refactor", "integrate"}},
}

// New compiles the given rule table. Order is preserved exactly.
func New(rules []config.AssignmentRule, fallback string) (*Engine, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	e := &Engine{fallback: fallback}
	for _, r := range rules {
		cr := rule{Role: r.Role}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, fmt.Errorf("rule %q pattern %q: %w", r.Role, p, err)
			}
			cr.Patterns = append(cr.Patterns, re)
		}
		e.rules = append(e.rules, cr)
	}
	return e, nil
}

// MustDefault returns an engine over DefaultRules; the built-in patterns
// always compile.
func MustDefault(fallback string) *Engine {
	e, err := New(nil, fallback)
	if err != nil {
		panic(err)
	}
	return e
}

// Rules returns the role names in evaluation order, for diagnostics.
func (e *Engine) Rules() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Role
	}
	return out
}

// Route returns the agent that should own a task with the given text, or
// ok=false when neither a rule nor the fallback resolves to a live agent.
// matchedRole is the rule that fired, or "" for the fallback path.
func (e *Engine) Route(title, description string, tags []string, agents []models.Agent) (agentName, matchedRole string, ok bool) {
	haystack := strings.ToLower(title + " " + description + " " + strings.Join(tags, " "))
	for _, r := range e.rules {
		if !r.matches(haystack) {
			continue
		}
		if a, _ := roster.Find(agents, r.Role); a != nil {
			return a.Name, r.Role, true
		}
		// The rule fired but no agent fills the role; fall back rather
		// than trying weaker rules.
		break
	}
	if a, _ := roster.Find(agents, e.fallback); a != nil {
		return a.Name, "", true
	}
	return "", "", false
}

func (r rule) matches(haystack string) bool {
	for _, re := range r.Patterns {
		if re.MatchString(haystack) {
			return true
		}
	}
	return false
}
