package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_migrationsAreIdempotent(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, EnsureSchema(home))

	// Reopening runs Migrate again against an already-migrated database.
	s, err := Open(home)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestAgentLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.CreateAgent(ctx, models.Agent{Name: "Nova Sterling"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.AgentID)
	assert.Equal(t, "specialist", a.Role, "role defaults when omitted")
	assert.Equal(t, models.AgentIdle, a.Status)

	got, err := s.GetAgentByName(ctx, "Nova Sterling")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.AgentID, got.AgentID)

	missing, err := s.GetAgentByName(ctx, "Nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = s.CreateAgent(ctx, models.Agent{})
	require.Error(t, err)

	require.NoError(t, s.DeleteAgent(ctx, "Nova Sterling"))
	err = s.DeleteAgent(ctx, "Nova Sterling")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetAgentStatus_recordsActivity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateAgent(ctx, models.Agent{Name: "Sage Monroe", Role: "qa"})
	require.NoError(t, err)

	err = s.SetAgentStatus(ctx, "Sage Monroe", models.AgentActive, models.Activity{
		Type: "agent_status", AgentName: "Sage Monroe", Message: "Sage Monroe is now working",
	})
	require.NoError(t, err)

	got, err := s.GetAgentByName(ctx, "Sage Monroe")
	require.NoError(t, err)
	assert.Equal(t, models.AgentActive, got.Status)

	acts, err := s.ListActivities(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
	assert.Equal(t, "agent_status", acts[0].Type)

	err = s.SetAgentStatus(ctx, "Nobody", models.AgentIdle, models.Activity{Type: "agent_status"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSeedAgents_onlyWhenEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seed := []models.Agent{
		{Name: "Nova Sterling", Role: "engineer"},
		{Name: "Pixel Hart", Role: "ui/ux"},
	}
	require.NoError(t, s.SeedAgents(ctx, seed))
	require.NoError(t, s.SeedAgents(ctx, seed), "second seed is a no-op")

	agents, err := s.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 2)
}

func TestCreateTask_defaultsAndActivity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, models.Task{
		Title:     "Wire the dashboard",
		Assignees: []string{"Nova Sterling"},
		Tags:      []string{"frontend"},
	}, models.Activity{Type: "task_created", AgentName: "cli", Message: "created"})
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusInbox, got.Status)
	assert.Equal(t, models.PriorityNormal, got.Priority)
	assert.Equal(t, []string{"Nova Sterling"}, got.Assignees)
	assert.Equal(t, []string{"frontend"}, got.Tags)

	acts, err := s.ListActivities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "task_created", acts[0].Type)
	require.NotNil(t, acts[0].TaskID)
	assert.Equal(t, id, *acts[0].TaskID)

	_, err = s.CreateTask(ctx, models.Task{}, models.Activity{Type: "task_created"})
	require.Error(t, err, "title is required")
}

func TestGetTask_missing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetTask(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateTask_patchSemantics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, models.Task{
		Title:     "Refine the palette",
		Assignees: []string{"Pixel Hart"},
		Tags:      []string{"design", "urgent"},
	}, models.Activity{Type: "task_created"})
	require.NoError(t, err)

	status := models.StatusInProgress
	assignees := []string{"Nova Sterling", "Pixel Hart"}
	err = s.UpdateTask(ctx, id, models.TaskPatch{Status: &status, Assignees: &assignees},
		models.Activity{Type: "task_updated"})
	require.NoError(t, err)

	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.ElementsMatch(t, assignees, got.Assignees, "assignee set is replaced wholesale")
	assert.ElementsMatch(t, []string{"design", "urgent"}, got.Tags, "tags untouched when patch omits them")

	err = s.UpdateTask(ctx, 9999, models.TaskPatch{Status: &status}, models.Activity{Type: "task_updated"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBatchUpdateTasks_oneAggregateActivity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, title := range []string{"one", "two", "three"} {
		id, err := s.CreateTask(ctx, models.Task{Title: title}, models.Activity{})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	status := models.StatusArchived
	// Include a missing id; it is skipped, not fatal.
	n, err := s.BatchUpdateTasks(ctx, append(ids, 9999), models.TaskPatch{Status: &status},
		models.Activity{Type: "tasks_archived", Message: "archived 3 tasks"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	acts, err := s.ListActivities(ctx, 50)
	require.NoError(t, err)
	var archiveActs int
	for _, a := range acts {
		if a.Type == "tasks_archived" {
			archiveActs++
		}
	}
	assert.Equal(t, 1, archiveActs, "a bulk update logs exactly one activity")

	for _, id := range ids {
		got, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusArchived, got.Status)
	}
}

func TestDeleteTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.CreateTask(ctx, models.Task{Title: "keep me not"}, models.Activity{})
	require.NoError(t, err)
	id2, err := s.CreateTask(ctx, models.Task{Title: "me neither"}, models.Activity{})
	require.NoError(t, err)

	n, err := s.DeleteTasks(ctx, []int64{id1, id2, 9999}, models.Activity{Type: "tasks_deleted"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetTask(ctx, id1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindTasksByTitleSubstring(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, models.Task{Title: "Implement OAuth login"}, models.Activity{})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, models.Task{Title: "Old OAuth spike", Status: models.StatusArchived}, models.Activity{})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, models.Task{Title: "Unrelated chore"}, models.Activity{})
	require.NoError(t, err)

	got, err := s.FindTasksByTitleSubstring(ctx, "oauth")
	require.NoError(t, err)
	require.Len(t, got, 1, "archived tasks are excluded and matching is case-insensitive")
	assert.Equal(t, "Implement OAuth login", got[0].Title)

	none, err := s.FindTasksByTitleSubstring(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListUnassignedTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, models.Task{Title: "owned", Assignees: []string{"Nova Sterling"}}, models.Activity{})
	require.NoError(t, err)
	orphanID, err := s.CreateTask(ctx, models.Task{Title: "orphan"}, models.Activity{})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, models.Task{Title: "archived orphan", Status: models.StatusArchived}, models.Activity{})
	require.NoError(t, err)

	got, err := s.ListUnassignedTasks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, orphanID, got[0].TaskID)
}

func TestPostMessage_writesEverythingTogether(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	taskID, err := s.CreateTask(ctx, models.Task{Title: "Thread host"}, models.Activity{})
	require.NoError(t, err)

	msgID, err := s.PostMessage(ctx,
		models.Message{TaskID: taskID, Sender: "Pixel Hart", Content: "@Nova Sterling thoughts?"},
		[]models.Subscription{
			{AgentName: "Pixel Hart", TaskID: taskID},
			{AgentName: "Nova Sterling", TaskID: taskID},
		},
		[]models.Notification{
			{AgentName: "Nova Sterling", TaskID: &taskID, Content: "Pixel Hart mentioned you"},
		},
		models.Activity{Type: "message_posted", AgentName: "Pixel Hart", Message: "posted"})
	require.NoError(t, err)
	require.Positive(t, msgID)

	msgs, err := s.ListMessages(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Pixel Hart", msgs[0].Sender)

	subs, err := s.ListSubscribers(ctx, taskID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Pixel Hart", "Nova Sterling"}, subs)

	notifs, err := s.ListNotifications(ctx, "Nova Sterling", true)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.False(t, notifs[0].Delivered)

	acts, err := s.ListActivities(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "message_posted", acts[0].Type)

	_, err = s.PostMessage(ctx, models.Message{TaskID: taskID, Sender: "x"}, nil, nil, models.Activity{})
	require.Error(t, err, "empty content is rejected")
}

func TestSubscribe_idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	taskID, err := s.CreateTask(ctx, models.Task{Title: "Sub target"}, models.Activity{})
	require.NoError(t, err)

	require.NoError(t, s.Subscribe(ctx, "Quill Page", taskID))
	require.NoError(t, s.Subscribe(ctx, "Quill Page", taskID))

	subs, err := s.ListSubscribers(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Quill Page"}, subs)

	require.NoError(t, s.Unsubscribe(ctx, "Quill Page", taskID))
	subs, err = s.ListSubscribers(ctx, taskID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestNotificationDelivery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	taskID, err := s.CreateTask(ctx, models.Task{Title: "Notif host"}, models.Activity{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.PostMessage(ctx,
			models.Message{TaskID: taskID, Sender: "Pixel Hart", Content: "ping"},
			nil,
			[]models.Notification{{AgentName: "Nova Sterling", TaskID: &taskID, Content: "ping"}},
			models.Activity{})
		require.NoError(t, err)
	}

	notifs, err := s.ListNotifications(ctx, "Nova Sterling", true)
	require.NoError(t, err)
	require.Len(t, notifs, 3)

	require.NoError(t, s.MarkNotificationDelivered(ctx, notifs[0].NotificationID))
	err = s.MarkNotificationDelivered(ctx, 99999)
	require.ErrorIs(t, err, ErrNotFound)

	marked, err := s.MarkAllNotificationsDelivered(ctx, "Nova Sterling")
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	remaining, err := s.ListNotifications(ctx, "Nova Sterling", true)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	all, err := s.ListNotifications(ctx, "Nova Sterling", false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAppendActivity_requiresType(t *testing.T) {
	s := openTestStore(t)
	err := s.AppendActivity(context.Background(), models.Activity{Message: "typeless"})
	require.Error(t, err)
}

func TestUpsertObjectives_idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	objs := []models.Objective{
		{ExternalID: "obj-1", Title: "Grow the fleet", Status: "active", Progress: 10},
		{ExternalID: "obj-2", Title: "Chart the reef", Status: "active", Progress: 0},
	}
	act := models.Activity{Type: models.ActivitySync, AgentName: "planner", Message: "planner synced 2 objectives"}
	created, updated, ids, err := s.UpsertObjectives(ctx, objs, act)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 0, updated)
	assert.Equal(t, []string{"obj-1", "obj-2"}, ids)

	acts, err := s.ListActivities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, acts, 1, "the sync activity lands with the upserts")
	assert.Equal(t, models.ActivitySync, acts[0].Type)

	objs[0].Progress = 55
	created, updated, _, err = s.UpsertObjectives(ctx, objs, act)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 2, updated)

	listed, err := s.ListObjectives(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2, "redelivery converges on one record per external id")
	for _, o := range listed {
		if o.ExternalID == "obj-1" {
			assert.Equal(t, 55, o.Progress)
		}
	}

	_, _, _, err = s.UpsertObjectives(ctx, []models.Objective{{Title: "no external id"}}, act)
	require.Error(t, err)
}

func TestUpsertProjects_idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	act := models.Activity{Type: models.ActivitySync, AgentName: "planner", Message: "planner synced 1 projects"}
	created, updated, _, err := s.UpsertProjects(ctx, []models.Project{
		{ExternalID: "proj-1", Name: "Harbor", Status: "active", ObjectiveID: "obj-1"},
	}, act)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, updated)

	created, updated, _, err = s.UpsertProjects(ctx, []models.Project{
		{ExternalID: "proj-1", Name: "Harbor v2", Status: "paused", ObjectiveID: "obj-1"},
	}, act)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 1, updated)

	listed, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Harbor v2", listed[0].Name)
	assert.Equal(t, "paused", listed[0].Status)
}

func TestPlannerStateSingleton(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.GetPlannerState(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "no state before the first sync")

	created, err := s.UpsertPlannerState(ctx, models.PlannerState{
		Status: "running", LastRun: "2026-08-28T10:00:00Z", IterationCount: 4,
		CostToday: 1.25, CostResetDate: "2026-08-28",
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.UpsertPlannerState(ctx, models.PlannerState{
		Status: "idle", LastRun: "2026-08-28T11:00:00Z", IterationCount: 5,
		CostToday: 2.5, CostResetDate: "2026-08-28",
	})
	require.NoError(t, err)
	assert.False(t, created, "second sync updates the singleton")

	got, err = s.GetPlannerState(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "idle", got.Status)
	assert.Equal(t, int64(5), got.IterationCount)
	assert.Equal(t, 2.5, got.CostToday)
}

func TestCreateDocument_createsReviewTask(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	docID, taskID, err := s.CreateDocument(ctx,
		models.Document{Title: "Q3 report", Content: "numbers", Type: "report"},
		models.Task{Title: "Review document: Q3 report", Status: models.StatusInbox, Priority: models.PriorityNormal, Assignees: []string{"Quill Page"}},
		models.Activity{Type: "document_uploaded", Message: "uploaded Q3 report"})
	require.NoError(t, err)
	assert.NotEmpty(t, docID)
	require.Positive(t, taskID)

	task, err := s.GetTask(ctx, taskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "Review document: Q3 report", task.Title)
	assert.Equal(t, []string{"Quill Page"}, task.Assignees)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, docID, docs[0].DocumentID)
	require.NotNil(t, docs[0].TaskID)
	assert.Equal(t, taskID, *docs[0].TaskID)

	_, _, err = s.CreateDocument(ctx, models.Document{}, models.Task{Title: "x"}, models.Activity{})
	require.Error(t, err, "document title is required")
}
