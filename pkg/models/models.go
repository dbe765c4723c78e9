// Package models provides shared types for the Mission Control HTTP API and
// external tools. These types mirror the API JSON and are stable for use by
// pkg/client and other consumers.
package models

import "time"

// Agent is a directory entry for a person or automated worker that can own tasks.
type Agent struct {
	AgentID       string    `json:"agent_id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Level         string    `json:"level,omitempty"`
	Status        string    `json:"status"`
	CurrentTaskID *int64    `json:"current_task_id,omitempty"`
	SystemPrompt  string    `json:"system_prompt,omitempty"`
	Character     string    `json:"character,omitempty"`
	Lore          string    `json:"lore,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Task is a unit of work tracked through the board lifecycle.
type Task struct {
	TaskID      int64     `json:"task_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	Assignees   []string  `json:"assignees"`
	Tags        []string  `json:"tags,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
	ObjectiveID *string   `json:"objective_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// TaskPatch is an optional-field update for a task. Nil fields are left
// unchanged; non-nil fields are applied. Assignees and Tags replace the
// whole set when present.
type TaskPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Assignees   *[]string `json:"assignees,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
	ObjectiveID *string   `json:"objective_id,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p TaskPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Assignees == nil && p.Tags == nil &&
		p.ProjectID == nil && p.ObjectiveID == nil
}

// Message is a post on a task's thread. Append-only.
type Message struct {
	MessageID   int64     `json:"message_id"`
	TaskID      int64     `json:"task_id"`
	Sender      string    `json:"sender"`
	Content     string    `json:"content"`
	DocumentIDs []string  `json:"document_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Subscription marks a standing interest: the agent is notified of future
// activity on the task. At most one per (agent, task) pair.
type Subscription struct {
	AgentName string    `json:"agent_name"`
	TaskID    int64     `json:"task_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Notification is a per-recipient alert produced by message fanout.
type Notification struct {
	NotificationID int64     `json:"notification_id"`
	AgentName      string    `json:"agent_name"`
	Content        string    `json:"content"`
	TaskID         *int64    `json:"task_id,omitempty"`
	Delivered      bool      `json:"delivered"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// Activity is an immutable audit record describing one completed mutation.
type Activity struct {
	ActivityID int64     `json:"activity_id"`
	Type       string    `json:"type"`
	AgentName  string    `json:"agent_name,omitempty"`
	Message    string    `json:"message"`
	TaskID     *int64    `json:"task_id,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Document is an uploaded artifact, attached to the review task created for it.
type Document struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	TaskID     *int64    `json:"task_id,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Objective mirrors an externally-owned objective, keyed by its external id.
type Objective struct {
	ObjectiveID string    `json:"objective_id,omitempty"`
	ExternalID  string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Progress    int       `json:"progress,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Project mirrors an externally-owned project, keyed by its external id.
type Project struct {
	ProjectID   string    `json:"project_id,omitempty"`
	ExternalID  string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	ObjectiveID string    `json:"objective_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// PlannerState is the singleton status row pushed by the external planner.
type PlannerState struct {
	Status         string    `json:"status"`
	LastRun        string    `json:"last_run"`
	IterationCount int64     `json:"iteration_count"`
	CostToday      float64   `json:"cost_today"`
	CostResetDate  string    `json:"cost_reset_date"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Bootstrap is the /bootstrap API response: one consistent snapshot for the board.
type Bootstrap struct {
	Agents     []Agent       `json:"agents"`
	Tasks      []Task        `json:"tasks"`
	Objectives []Objective   `json:"objectives,omitempty"`
	Projects   []Project     `json:"projects,omitempty"`
	Planner    *PlannerState `json:"planner,omitempty"`
	Activities []Activity    `json:"activities,omitempty"`
}
