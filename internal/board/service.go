// Package board implements the mission control core: task lifecycle,
// message fanout, auto-assignment, and the external sync gateway. Handlers
// stay thin; every rule lives here or in the packages this one composes.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/salzamar/openclaw-mission-control/internal/assign"
	"github.com/salzamar/openclaw-mission-control/internal/fanout"
	"github.com/salzamar/openclaw-mission-control/internal/mention"
	"github.com/salzamar/openclaw-mission-control/internal/otel"
	"github.com/salzamar/openclaw-mission-control/internal/store"
	"github.com/salzamar/openclaw-mission-control/internal/trigger"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// ErrValidation marks caller mistakes (missing or malformed fields);
// handlers translate it to 400.
var ErrValidation = errors.New("validation")

// ErrNotFound aliases the store sentinel so handlers need one import.
var ErrNotFound = store.ErrNotFound

// Publisher receives a JSON-marshalable event after each committed
// mutation. The SSE hub satisfies this.
type Publisher interface {
	PublishJSON(v any)
}

type noopPublisher struct{}

func (noopPublisher) PublishJSON(any) {}

// Service is the query/mutation contract the HTTP layer and CLI call into.
type Service struct {
	Store    store.Store
	Engine   *assign.Engine
	Owner    string // admin identity for tier-1 fanout
	Triggers *trigger.Registry
	Events   Publisher
}

// New builds a Service. Events and Triggers may be nil.
func New(st store.Store, engine *assign.Engine, owner string, triggers *trigger.Registry, events Publisher) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	if triggers == nil {
		triggers = trigger.NewRegistry()
	}
	return &Service{Store: st, Engine: engine, Owner: owner, Triggers: triggers, Events: events}
}

// CreateTaskInput carries the caller-supplied fields for a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	Tags        []string
	Assignees   []string
	ProjectID   *string
	ObjectiveID *string
	Actor       string // who performed the action, for the activity record
}

// CreateTask validates input, auto-assigns when no assignee was given, and
// persists the task with its creation activity in one transaction. The
// returned assignee is nil when even the fallback agent is absent.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, *string, error) {
	if in.Title == "" {
		return nil, nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if !models.ValidPriority(in.Priority) {
		return nil, nil, fmt.Errorf("%w: invalid priority %q", ErrValidation, in.Priority)
	}
	if in.Actor == "" {
		in.Actor = "system"
	}

	var assignee *string
	if len(in.Assignees) == 0 {
		agents, err := s.Store.ListAgents(ctx)
		if err != nil {
			return nil, nil, err
		}
		if name, role, ok := s.Engine.Route(in.Title, in.Description, in.Tags, agents); ok {
			in.Assignees = []string{name}
			assignee = &name
			if role != "" {
				slog.Debug("auto-assigned task", "title", in.Title, "rule", role, "agent", name)
			}
		}
	} else {
		assignee = &in.Assignees[0]
	}

	status := models.StatusInbox
	if len(in.Assignees) > 0 {
		status = models.StatusAssigned
	}
	t := models.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    in.Priority,
		Assignees:   in.Assignees,
		Tags:        in.Tags,
		ProjectID:   in.ProjectID,
		ObjectiveID: in.ObjectiveID,
	}
	msg := fmt.Sprintf("%s created task %q", in.Actor, in.Title)
	if assignee != nil {
		msg += fmt.Sprintf(", assigned to %s", *assignee)
	}
	id, err := s.Store.CreateTask(ctx, t, models.Activity{
		Type:      models.ActivityTaskCreated,
		AgentName: in.Actor,
		Message:   msg,
	})
	if err != nil {
		return nil, nil, err
	}
	otel.RecordTaskOp(ctx, "create", status)
	created, err := s.Store.GetTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	s.Events.PublishJSON(map[string]any{"type": "task_update", "task_id": id})
	return created, assignee, nil
}

// UpdateTask applies a partial update and logs one activity describing it.
// Status values are normalized before persistence.
func (s *Service) UpdateTask(ctx context.Context, taskID int64, patch models.TaskPatch, actor string) (*models.Task, error) {
	if patch.IsZero() {
		return nil, fmt.Errorf("%w: empty update", ErrValidation)
	}
	if patch.Status != nil {
		norm, ok := models.NormalizeStatus(*patch.Status)
		if !ok {
			return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, *patch.Status)
		}
		patch.Status = &norm
	}
	if patch.Priority != nil && !models.ValidPriority(*patch.Priority) {
		return nil, fmt.Errorf("%w: invalid priority %q", ErrValidation, *patch.Priority)
	}
	before, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, fmt.Errorf("task %w: %d", ErrNotFound, taskID)
	}
	if actor == "" {
		actor = "system"
	}
	act := models.Activity{
		Type:      models.ActivityTaskUpdated,
		AgentName: actor,
		Message:   describePatch(actor, before.Title, patch),
	}
	if patch.Status != nil && *patch.Status == models.StatusArchived {
		act.Type = models.ActivityTaskArchived
	}
	if err := s.Store.UpdateTask(ctx, taskID, patch, act); err != nil {
		return nil, err
	}
	after, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		otel.RecordTaskOp(ctx, "update", *patch.Status)
	} else {
		otel.RecordTaskOp(ctx, "update", before.Status)
	}
	s.Events.PublishJSON(map[string]any{"type": "task_update", "task_id": taskID})
	s.maybeTrigger(before, after)
	return after, nil
}

// UpdateTaskStatusByExternalCode locates a task by title-substring
// containment of the external code and sets its status. The substring match
// is a deliberate accommodation for callers that do not track internal ids;
// multiple matches are ambiguous and the oldest one wins, with a warning.
func (s *Service) UpdateTaskStatusByExternalCode(ctx context.Context, code, status, actor string) (*models.Task, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: taskId is required", ErrValidation)
	}
	norm, ok := models.NormalizeStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}
	matches, err := s.Store.FindTasksByTitleSubstring(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("task %w: no title contains %q", ErrNotFound, code)
	}
	if len(matches) > 1 {
		slog.Warn("ambiguous external task code, using oldest match",
			"code", code, "matches", len(matches), "chosen_task_id", matches[0].TaskID)
	}
	return s.UpdateTask(ctx, matches[0].TaskID, models.TaskPatch{Status: &norm}, actor)
}

// maybeTrigger fires the agent-execution integrations when a task enters
// in_progress. The status change has already committed; a delivery failure
// is logged and never propagated.
func (s *Service) maybeTrigger(before, after *models.Task) {
	if before == nil || after == nil {
		return
	}
	if after.Status != models.StatusInProgress || before.Status == models.StatusInProgress {
		return
	}
	task := *after
	go func() {
		ctx := context.Background()
		var agent *models.Agent
		if len(task.Assignees) > 0 {
			a, err := s.Store.GetAgentByName(ctx, task.Assignees[0])
			if err == nil {
				agent = a
			}
		}
		if err := s.Triggers.NotifyAll(ctx, task, agent); err != nil {
			slog.Warn("agent trigger failed", "task_id", task.TaskID, "err", err)
		}
	}()
}

func describePatch(actor, title string, patch models.TaskPatch) string {
	switch {
	case patch.Status != nil && *patch.Status == models.StatusArchived:
		return fmt.Sprintf("%s archived %q", actor, title)
	case patch.Status != nil:
		return fmt.Sprintf("%s moved %q to %s", actor, title, *patch.Status)
	case patch.Assignees != nil:
		if len(*patch.Assignees) == 0 {
			return fmt.Sprintf("%s unassigned %q", actor, title)
		}
		return fmt.Sprintf("%s assigned %q to %s", actor, title, (*patch.Assignees)[0])
	case patch.Priority != nil:
		return fmt.Sprintf("%s set %q priority to %s", actor, title, *patch.Priority)
	default:
		return fmt.Sprintf("%s edited %q", actor, title)
	}
}

// PostMessage appends a message to a task thread and performs all of its
// side effects in one transaction: mention resolution, auto-subscription of
// sender and targets, and the three-tier notification fanout. documentIDs
// attaches previously uploaded documents to the message; it may be nil.
func (s *Service) PostMessage(ctx context.Context, taskID int64, sender, content string, documentIDs []string) (*models.Message, int, error) {
	if sender == "" {
		return nil, 0, fmt.Errorf("%w: sender is required", ErrValidation)
	}
	if content == "" {
		return nil, 0, fmt.Errorf("%w: content is required", ErrValidation)
	}
	task, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		return nil, 0, err
	}
	if task == nil {
		return nil, 0, fmt.Errorf("task %w: %d", ErrNotFound, taskID)
	}
	agents, err := s.Store.ListAgents(ctx)
	if err != nil {
		return nil, 0, err
	}
	subscribers, err := s.Store.ListSubscribers(ctx, taskID)
	if err != nil {
		return nil, 0, err
	}

	res := mention.Resolve(content, sender, agents)
	subs := mention.Subscriptions(taskID, sender, res)
	notifs := fanout.Compute(fanout.Input{
		Sender:     sender,
		Owner:      s.Owner,
		TaskID:     taskID,
		TaskTitle:  task.Title,
		Content:    content,
		Assignees:  task.Assignees,
		Mentioned:  res.Targets,
		Subscribed: subscribers,
	})

	msg := models.Message{TaskID: taskID, Sender: sender, Content: content, DocumentIDs: documentIDs}
	id, err := s.Store.PostMessage(ctx, msg, subs, notifs, models.Activity{
		Type:      models.ActivityMessagePosted,
		AgentName: sender,
		Message:   fmt.Sprintf("%s posted a message on %q", sender, task.Title),
	})
	if err != nil {
		return nil, 0, err
	}
	otel.RecordNotifications(ctx, len(notifs))
	msg.MessageID = id
	s.Events.PublishJSON(map[string]any{"type": "message", "task_id": taskID, "message_id": id})
	if len(notifs) > 0 {
		s.Events.PublishJSON(map[string]any{"type": "notification", "task_id": taskID, "count": len(notifs)})
	}
	return &msg, len(notifs), nil
}

// Bootstrap assembles the snapshot the board renders on load.
func (s *Service) Bootstrap(ctx context.Context) (*models.Bootstrap, error) {
	agents, err := s.Store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.Store.ListTasks(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	objectives, err := s.Store.ListObjectives(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.Store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	planner, err := s.Store.GetPlannerState(ctx)
	if err != nil {
		return nil, err
	}
	activities, err := s.Store.ListActivities(ctx, 50)
	if err != nil {
		return nil, err
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return &models.Bootstrap{
		Agents:     agents,
		Tasks:      tasks,
		Objectives: objectives,
		Projects:   projects,
		Planner:    planner,
		Activities: activities,
	}, nil
}
