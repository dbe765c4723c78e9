package board

import (
	"context"
	"fmt"

	"github.com/salzamar/openclaw-mission-control/internal/otel"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// FixResult reports one task examined by the unassigned sweep.
type FixResult struct {
	TaskID   int64   `json:"taskId"`
	Title    string  `json:"title"`
	Assignee *string `json:"assignedTo"`
}

// FixReport summarizes a fix-unassigned run.
type FixReport struct {
	TotalUnassigned int         `json:"totalUnassigned"`
	Fixed           int         `json:"fixed"`
	Results         []FixResult `json:"results"`
}

// FixUnassigned runs the assignment engine over every task with zero
// assignees. Already-assigned tasks are never touched, so re-running is a
// no-op once everything routed. One aggregate activity covers the sweep.
func (s *Service) FixUnassigned(ctx context.Context) (*FixReport, error) {
	tasks, err := s.Store.ListUnassignedTasks(ctx)
	if err != nil {
		return nil, err
	}
	agents, err := s.Store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	report := &FixReport{TotalUnassigned: len(tasks), Results: []FixResult{}}
	for _, t := range tasks {
		r := FixResult{TaskID: t.TaskID, Title: t.Title}
		if name, _, ok := s.Engine.Route(t.Title, t.Description, t.Tags, agents); ok {
			assignees := []string{name}
			patch := models.TaskPatch{Assignees: &assignees}
			if t.Status == models.StatusInbox {
				status := models.StatusAssigned
				patch.Status = &status
			}
			// Empty activity type: the sweep logs once at the end, not
			// per task.
			if err := s.Store.UpdateTask(ctx, t.TaskID, patch, models.Activity{}); err != nil {
				return nil, err
			}
			r.Assignee = &name
			report.Fixed++
		}
		report.Results = append(report.Results, r)
	}
	if report.TotalUnassigned > 0 {
		if err := s.Store.AppendActivity(ctx, models.Activity{
			Type:      models.ActivityBulkUpdate,
			AgentName: "system",
			Message:   fmt.Sprintf("auto-assigned %d of %d unassigned tasks", report.Fixed, report.TotalUnassigned),
		}); err != nil {
			return nil, err
		}
	}
	if report.Fixed > 0 {
		otel.RecordTaskOp(ctx, "fix_unassigned", models.StatusAssigned)
		s.Events.PublishJSON(map[string]any{"type": "task_update", "fixed": report.Fixed})
	}
	return report, nil
}

// BatchUpdate applies one patch to many tasks and logs a single aggregate
// activity ("archived 5 tasks"), a deliberate log-volume control.
func (s *Service) BatchUpdate(ctx context.Context, taskIDs []int64, patch models.TaskPatch, actor string) (int, error) {
	if len(taskIDs) == 0 {
		return 0, fmt.Errorf("%w: taskIds is required", ErrValidation)
	}
	if patch.IsZero() {
		return 0, fmt.Errorf("%w: empty update", ErrValidation)
	}
	if patch.Status != nil {
		norm, ok := models.NormalizeStatus(*patch.Status)
		if !ok {
			return 0, fmt.Errorf("%w: invalid status %q", ErrValidation, *patch.Status)
		}
		patch.Status = &norm
	}
	if patch.Priority != nil && !models.ValidPriority(*patch.Priority) {
		return 0, fmt.Errorf("%w: invalid priority %q", ErrValidation, *patch.Priority)
	}
	if actor == "" {
		actor = "system"
	}
	actType := models.ActivityBulkUpdate
	verb := describeBatch(patch)
	if patch.Status != nil && *patch.Status == models.StatusArchived {
		actType = models.ActivityTaskArchived
	}
	n, err := s.Store.BatchUpdateTasks(ctx, taskIDs, patch, models.Activity{
		Type:      actType,
		AgentName: actor,
		Message:   fmt.Sprintf("%s %s %d tasks", actor, verb, len(taskIDs)),
	})
	if err != nil {
		return 0, err
	}
	otel.RecordTaskOp(ctx, "batch_"+verb, batchStatus(patch))
	s.Events.PublishJSON(map[string]any{"type": "task_update", "batch": n})
	return n, nil
}

// BatchDelete removes tasks permanently, logging one aggregate activity.
func (s *Service) BatchDelete(ctx context.Context, taskIDs []int64, actor string) (int, error) {
	if len(taskIDs) == 0 {
		return 0, fmt.Errorf("%w: taskIds is required", ErrValidation)
	}
	if actor == "" {
		actor = "system"
	}
	n, err := s.Store.DeleteTasks(ctx, taskIDs, models.Activity{
		Type:      models.ActivityTaskDeleted,
		AgentName: actor,
		Message:   fmt.Sprintf("%s deleted %d tasks", actor, len(taskIDs)),
	})
	if err != nil {
		return 0, err
	}
	otel.RecordTaskOp(ctx, "batch_delete", "")
	s.Events.PublishJSON(map[string]any{"type": "task_update", "batch": n})
	return n, nil
}

func describeBatch(patch models.TaskPatch) string {
	switch {
	case patch.Status != nil && *patch.Status == models.StatusArchived:
		return "archived"
	case patch.Status != nil:
		return "moved"
	case patch.Priority != nil:
		return "reprioritized"
	case patch.Assignees != nil:
		return "reassigned"
	default:
		return "updated"
	}
}

func batchStatus(patch models.TaskPatch) string {
	if patch.Status != nil {
		return *patch.Status
	}
	return ""
}
