// Package fanout turns one posted message into the set of per-recipient
// notification rows to insert.
package fanout

import (
	"fmt"
	"unicode/utf8"

	"github.com/salzamar/openclaw-mission-control/internal/roster"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

const snippetLen = 120

// Input is everything Compute needs; it reads nothing else, so the
// precedence rules are testable in isolation.
type Input struct {
	Sender     string
	Owner      string // admin identity whose comments demand a response
	TaskID     int64
	TaskTitle  string
	Content    string
	Assignees  []string // current task assignees
	Mentioned  []string // resolved mention targets, sender already excluded
	Subscribed []string // current subscriber set for the task
}

// Compute returns at most one notification per recipient, never the sender.
//
// Precedence is a three-tier merge, most urgent content first:
//  1. the owner commented: every assignee gets "awaiting your response";
//  2. explicit mentions get "mentioned you";
//  3. remaining subscribers get the generic "posted (subscribed)" line.
// A recipient claimed by an earlier tier is skipped by later ones, so a
// mentioned assignee still receives exactly one notification.
func Compute(in Input) []models.Notification {
	var out []models.Notification
	notified := make(map[string]bool)
	senderKey := roster.Normalize(in.Sender)

	claim := func(name string) bool {
		key := roster.Normalize(name)
		if key == "" || key == senderKey || notified[key] {
			return false
		}
		notified[key] = true
		return true
	}

	if roster.Normalize(in.Sender) == roster.Normalize(in.Owner) {
		for _, a := range in.Assignees {
			if claim(a) {
				out = append(out, models.Notification{
					AgentName: a,
					TaskID:    &in.TaskID,
					Content:   fmt.Sprintf("%s commented on %q, awaiting your response", in.Sender, in.TaskTitle),
				})
			}
		}
	}

	for _, m := range in.Mentioned {
		if claim(m) {
			out = append(out, models.Notification{
				AgentName: m,
				TaskID:    &in.TaskID,
				Content:   fmt.Sprintf("%s mentioned you on %q: %s", in.Sender, in.TaskTitle, snippet(in.Content)),
			})
		}
	}

	for _, s := range in.Subscribed {
		if claim(s) {
			out = append(out, models.Notification{
				AgentName: s,
				TaskID:    &in.TaskID,
				Content:   fmt.Sprintf("%s posted on %q (subscribed)", in.Sender, in.TaskTitle),
			})
		}
	}
	return out
}

// snippet truncates s to at most snippetLen bytes, backing up so the cut
// never lands inside a multi-byte rune.
func snippet(s string) string {
	if len(s) <= snippetLen {
		return s
	}
	cut := snippetLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
