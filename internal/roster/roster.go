// Package roster provides tolerant agent-name matching shared by the
// auto-assignment engine, the mention resolver, and the webhook handlers.
// Names are compared after lowercasing and stripping spaces and slashes, so
// "@uiux" still finds an agent named "UI/UX Expert".
package roster

import (
	"strings"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// Normalize lowercases s and removes spaces, tabs, and slashes.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '/':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Find resolves token against agent names and roles using normalized
// equality. It returns the match only when exactly one agent qualifies;
// ambiguous reports whether more than one did.
func Find(agents []models.Agent, token string) (match *models.Agent, ambiguous bool) {
	want := Normalize(token)
	if want == "" {
		return nil, false
	}
	var candidates []*models.Agent
	for i := range agents {
		a := &agents[i]
		if Normalize(a.Name) == want || Normalize(a.Role) == want {
			candidates = append(candidates, a)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, false
	case 1:
		return candidates[0], false
	default:
		return nil, true
	}
}

// Contains reports whether name is in names using normalized comparison.
func Contains(names []string, name string) bool {
	want := Normalize(name)
	for _, n := range names {
		if Normalize(n) == want {
			return true
		}
	}
	return false
}
