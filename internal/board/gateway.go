package board

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/salzamar/openclaw-mission-control/internal/otel"
	"github.com/salzamar/openclaw-mission-control/internal/roster"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// SyncReport is the result of one objectives or projects upsert call.
type SyncReport struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	IDs     []string `json:"ids"`
}

// SyncObjectives upserts externally-owned objectives by external id.
// Calling it twice with the same payload converges: the second call reports
// zero created.
func (s *Service) SyncObjectives(ctx context.Context, objs []models.Objective) (*SyncReport, error) {
	for _, o := range objs {
		if o.ExternalID == "" {
			return nil, fmt.Errorf("%w: objective missing id", ErrValidation)
		}
	}
	created, updated, ids, err := s.Store.UpsertObjectives(ctx, objs, models.Activity{
		Type:      models.ActivitySync,
		AgentName: "planner",
		Message:   fmt.Sprintf("planner synced %d objectives", len(objs)),
	})
	if err != nil {
		return nil, err
	}
	otel.RecordSyncUpsert(ctx, "objective", created, updated)
	s.Events.PublishJSON(map[string]any{"type": "sync", "kind": "objectives"})
	return &SyncReport{Created: created, Updated: updated, IDs: ids}, nil
}

// SyncProjects mirrors SyncObjectives for project records.
func (s *Service) SyncProjects(ctx context.Context, projs []models.Project) (*SyncReport, error) {
	for _, p := range projs {
		if p.ExternalID == "" {
			return nil, fmt.Errorf("%w: project missing id", ErrValidation)
		}
	}
	created, updated, ids, err := s.Store.UpsertProjects(ctx, projs, models.Activity{
		Type:      models.ActivitySync,
		AgentName: "planner",
		Message:   fmt.Sprintf("planner synced %d projects", len(projs)),
	})
	if err != nil {
		return nil, err
	}
	otel.RecordSyncUpsert(ctx, "project", created, updated)
	s.Events.PublishJSON(map[string]any{"type": "sync", "kind": "projects"})
	return &SyncReport{Created: created, Updated: updated, IDs: ids}, nil
}

// SyncPlanner writes the singleton planner-state row and reports whether it
// was created or updated.
func (s *Service) SyncPlanner(ctx context.Context, st models.PlannerState) (string, error) {
	created, err := s.Store.UpsertPlannerState(ctx, st)
	if err != nil {
		return "", err
	}
	action := "updated"
	if created {
		action = "created"
	}
	s.Events.PublishJSON(map[string]any{"type": "sync", "kind": "planner"})
	return action, nil
}

// SetAgentStatus resolves the agent tolerantly (name or role, punctuation
// and case insensitive) and records the status change. Ambiguous names are
// rejected rather than silently picking one.
func (s *Service) SetAgentStatus(ctx context.Context, nameToken, status string) (*models.Agent, error) {
	if nameToken == "" {
		return nil, fmt.Errorf("%w: agentName is required", ErrValidation)
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.ValidAgentStatus(status) {
		return nil, fmt.Errorf("%w: status must be idle, active, or blocked", ErrValidation)
	}
	agents, err := s.Store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	agent, ambiguous := roster.Find(agents, nameToken)
	if ambiguous {
		slog.Warn("ambiguous agent name", "token", nameToken)
		return nil, fmt.Errorf("agent %w: %q matches more than one agent", ErrNotFound, nameToken)
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %w: %s", ErrNotFound, nameToken)
	}
	if err := s.Store.SetAgentStatus(ctx, agent.Name, status, models.Activity{
		Type:      models.ActivityAgentStatus,
		AgentName: agent.Name,
		Message:   fmt.Sprintf("%s is now %s", agent.Name, status),
	}); err != nil {
		return nil, err
	}
	agent.Status = status
	s.Events.PublishJSON(map[string]any{"type": "agent_update", "agent": agent.Name, "status": status})
	return agent, nil
}

// ErrNoAgents is returned by UploadDocument when the directory is empty;
// handlers translate it to 404.
var ErrNoAgents = fmt.Errorf("no agents configured: %w", ErrNotFound)

// UploadDocument stores a document and opens a review task for it, routed
// through the assignment engine like any other unowned task.
func (s *Service) UploadDocument(ctx context.Context, title, content, docType string) (string, int64, error) {
	if title == "" {
		return "", 0, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if content == "" {
		return "", 0, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if docType == "" {
		return "", 0, fmt.Errorf("%w: type is required", ErrValidation)
	}
	agents, err := s.Store.ListAgents(ctx)
	if err != nil {
		return "", 0, err
	}
	if len(agents) == 0 {
		return "", 0, ErrNoAgents
	}

	reviewTitle := fmt.Sprintf("Review document: %s", title)
	tags := []string{"document", docType}
	task := models.Task{
		Title:       reviewTitle,
		Description: fmt.Sprintf("Review the uploaded %s document %q.", docType, title),
		Status:      models.StatusInbox,
		Priority:    models.PriorityNormal,
		Tags:        tags,
	}
	if name, _, ok := s.Engine.Route(reviewTitle, task.Description, tags, agents); ok {
		task.Assignees = []string{name}
		task.Status = models.StatusAssigned
	}

	docID, taskID, err := s.Store.CreateDocument(ctx, models.Document{Title: title, Content: content, Type: docType}, task, models.Activity{
		Type:      models.ActivityDocumentAdded,
		AgentName: "system",
		Message:   fmt.Sprintf("document %q was uploaded for review", title),
	})
	if err != nil {
		return "", 0, err
	}
	otel.RecordTaskOp(ctx, "create", task.Status)
	s.Events.PublishJSON(map[string]any{"type": "task_update", "task_id": taskID})
	return docID, taskID, nil
}
