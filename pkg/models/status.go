package models

import "strings"

// Task statuses used throughout the codebase. Archived is a terminal
// side-state reachable from any other status.
const (
	StatusInbox      = "inbox"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
	StatusArchived   = "archived"
)

// Task priorities.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
	PriorityLow      = "low"
)

// Agent statuses.
const (
	AgentIdle    = "idle"
	AgentActive  = "active"
	AgentBlocked = "blocked"
)

// Activity type tags.
const (
	ActivityTaskCreated   = "task_created"
	ActivityTaskUpdated   = "task_updated"
	ActivityTaskAssigned  = "task_assigned"
	ActivityTaskArchived  = "task_archived"
	ActivityTaskDeleted   = "task_deleted"
	ActivityBulkUpdate    = "bulk_update"
	ActivityMessagePosted = "message_posted"
	ActivityAgentStatus   = "agent_status"
	ActivityDocumentAdded = "document_added"
	ActivitySync          = "sync"
)

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultTaskListLimit       = 1000
	DefaultActivityListLimit   = 200
	DefaultSSEChannelBuffer    = 256
)

var validStatuses = map[string]bool{
	StatusInbox:      true,
	StatusAssigned:   true,
	StatusInProgress: true,
	StatusReview:     true,
	StatusDone:       true,
	StatusArchived:   true,
}

var validPriorities = map[string]bool{
	PriorityCritical: true,
	PriorityHigh:     true,
	PriorityNormal:   true,
	PriorityLow:      true,
}

var validAgentStatuses = map[string]bool{
	AgentIdle:    true,
	AgentActive:  true,
	AgentBlocked: true,
}

// NormalizeStatus lowercases a task status so callers may send either the
// canonical form or upper-snake (e.g. "IN_PROGRESS"). Returns ok=false for
// values outside the status set.
func NormalizeStatus(s string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	return n, validStatuses[n]
}

// ValidStatus reports whether s is a canonical task status.
func ValidStatus(s string) bool { return validStatuses[s] }

// ValidPriority reports whether s is a known priority.
func ValidPriority(s string) bool { return validPriorities[s] }

// ValidAgentStatus reports whether s is a known agent status.
func ValidAgentStatus(s string) bool { return validAgentStatuses[s] }
