// Package mention parses @mention tokens out of message text and resolves
// them to directory agents.
package mention

import (
	"regexp"

	"github.com/salzamar/openclaw-mission-control/internal/roster"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// All is the wildcard token selecting every agent in the directory.
const All = "all"

// A token is "@" followed by one word, optionally whitespace and a second
// word, so two-word names like "@Nova Sterling" resolve. Word characters
// include the punctuation that appears in role-style names ("UI/UX").
var tokenRe = regexp.MustCompile(`@([\w./-]+)(?:[ \t]+([\w./-]+))?`)

// Resolution is the outcome of parsing one message.
type Resolution struct {
	// Targets are the resolved agent names, in first-mention order, with
	// duplicates removed. The sender is never a target.
	Targets []string
	// MentionedAll is true when the message contained "@all".
	MentionedAll bool
}

// Resolve extracts every mention from content and matches it against the
// directory. A mention counts only when exactly one agent's name or role
// matches after normalization; ambiguous or unknown tokens are dropped
// without error. "@all" expands to the whole directory minus the sender.
func Resolve(content, sender string, agents []models.Agent) Resolution {
	var res Resolution
	seen := make(map[string]bool)
	add := func(name string) {
		key := roster.Normalize(name)
		if key == roster.Normalize(sender) || seen[key] {
			return
		}
		seen[key] = true
		res.Targets = append(res.Targets, name)
	}

	for _, m := range tokenRe.FindAllStringSubmatch(content, -1) {
		first, second := m[1], m[2]
		if roster.Normalize(first) == All {
			res.MentionedAll = true
			for _, a := range agents {
				add(a.Name)
			}
			continue
		}
		// Prefer the two-word reading; fall back to the single word so
		// "@nova please review" still resolves when "nova please" does not.
		if second != "" {
			if a, _ := roster.Find(agents, first+" "+second); a != nil {
				add(a.Name)
				continue
			}
		}
		if a, _ := roster.Find(agents, first); a != nil {
			add(a.Name)
		}
	}
	return res
}

// Subscriptions returns the idempotent subscription rows a message implies:
// the sender plus every resolved target (the resolver already excluded the
// sender from targets).
func Subscriptions(taskID int64, sender string, res Resolution) []models.Subscription {
	subs := []models.Subscription{{AgentName: sender, TaskID: taskID}}
	for _, t := range res.Targets {
		subs = append(subs, models.Subscription{AgentName: t, TaskID: taskID})
	}
	return subs
}
