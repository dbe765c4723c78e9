package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/salzamar/openclaw-mission-control/internal/board"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

func boardCreateInput(title, desc, priority string, tags []string, actor string) board.CreateTaskInput {
	return board.CreateTaskInput{
		Title:       title,
		Description: desc,
		Priority:    priority,
		Tags:        tags,
		Actor:       actor,
	}
}

// --- webhook handlers (external integrations; camelCase field names) ---

func (app *App) handleTaskUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID string `json:"taskId"`
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.TaskID == "" {
		writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}
	if body.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	task, err := app.Board.UpdateTaskStatusByExternalCode(r.Context(), body.TaskID, body.Status, "planner")
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":    true,
		"taskId":     body.TaskID,
		"internalId": task.TaskID,
		"status":     task.Status,
	})
}

func (app *App) handleTaskCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Priority    string   `json:"priority"`
		Tags        []string `json:"tags"`
		Assignee    string   `json:"assignee"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	in := boardCreateInput(body.Title, body.Description, body.Priority, body.Tags, "planner")
	if body.Assignee != "" {
		in.Assignees = []string{body.Assignee}
	}
	task, assignee, err := app.Board.CreateTask(r.Context(), in)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":  true,
		"taskId":   task.TaskID,
		"assignee": assignee,
	})
}

func (app *App) handleFixUnassigned(w http.ResponseWriter, r *http.Request) {
	report, err := app.Board.FixUnassigned(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":         true,
		"totalUnassigned": report.TotalUnassigned,
		"fixed":           report.Fixed,
		"results":         report.Results,
	})
}

func (app *App) handleObjectivesSync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Objectives []models.Objective `json:"objectives"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Objectives == nil {
		writeError(w, http.StatusBadRequest, "objectives array is required")
		return
	}
	report, err := app.Board.SyncObjectives(r.Context(), body.Objectives)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":    true,
		"created":    report.Created,
		"updated":    report.Updated,
		"objectives": report.IDs,
	})
}

func (app *App) handleProjectsSync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Projects []models.Project `json:"projects"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Projects == nil {
		writeError(w, http.StatusBadRequest, "projects array is required")
		return
	}
	report, err := app.Board.SyncProjects(r.Context(), body.Projects)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":  true,
		"created":  report.Created,
		"updated":  report.Updated,
		"projects": report.IDs,
	})
}

func (app *App) handlePlannerSync(w http.ResponseWriter, r *http.Request) {
	// Pointer fields so each missing key gets its own 400 naming the field.
	var body struct {
		Status         *string  `json:"status"`
		LastRun        *string  `json:"lastRun"`
		IterationCount *int64   `json:"iterationCount"`
		CostToday      *float64 `json:"costToday"`
		CostResetDate  *string  `json:"costResetDate"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	missing := ""
	switch {
	case body.Status == nil:
		missing = "status"
	case body.LastRun == nil:
		missing = "lastRun"
	case body.IterationCount == nil:
		missing = "iterationCount"
	case body.CostToday == nil:
		missing = "costToday"
	case body.CostResetDate == nil:
		missing = "costResetDate"
	}
	if missing != "" {
		writeError(w, http.StatusBadRequest, missing+" is required")
		return
	}
	action, err := app.Board.SyncPlanner(r.Context(), models.PlannerState{
		Status:         *body.Status,
		LastRun:        *body.LastRun,
		IterationCount: *body.IterationCount,
		CostToday:      *body.CostToday,
		CostResetDate:  *body.CostResetDate,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "action": action})
}

func (app *App) handleAgentStatusWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AgentName string `json:"agentName"`
		Status    string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.AgentName == "" {
		writeError(w, http.StatusBadRequest, "agentName is required")
		return
	}
	if body.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	agent, err := app.Board.SetAgentStatus(r.Context(), body.AgentName, body.Status)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":   true,
		"agentName": agent.Name,
		"status":    agent.Status,
	})
}

func (app *App) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	docID, taskID, err := app.Board.UploadDocument(r.Context(), body.Title, body.Content, body.Type)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":    true,
		"documentId": docID,
		"taskId":     taskID,
	})
}

// --- board API handlers ---

func (app *App) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	snap, err := app.Board.Bootstrap(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, snap)
}

func (app *App) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := r.URL.Query().Get("status")
		if status != "" {
			norm, ok := models.NormalizeStatus(status)
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid status filter")
				return
			}
			status = norm
		}
		limit := queryInt(r, "limit")
		tasks, err := app.Store.ListTasks(r.Context(), status, limit)
		if err != nil {
			respondErr(w, err)
			return
		}
		if tasks == nil {
			tasks = []models.Task{}
		}
		writeJSON(w, tasks)
	case http.MethodPost:
		var body struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Priority    string   `json:"priority"`
			Tags        []string `json:"tags"`
			Assignees   []string `json:"assignees"`
			Actor       string   `json:"actor"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		in := boardCreateInput(body.Title, body.Description, body.Priority, body.Tags, body.Actor)
		in.Assignees = body.Assignees
		task, _, err := app.Board.CreateTask(r.Context(), in)
		if err != nil {
			respondErr(w, err)
			return
		}
		writeJSON(w, task)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleTaskSubroutes covers /api/tasks/{id}, /api/tasks/{id}/messages,
// /api/tasks/{id}/subscribe, /api/tasks/{id}/unsubscribe.
func (app *App) handleTaskSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	parts := strings.Split(rest, "/")
	taskID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, err := app.Store.GetTask(r.Context(), taskID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if len(parts) >= 2 && parts[1] != "" {
		switch parts[1] {
		case "messages":
			app.handleTaskMessages(w, r, taskID)
		case "subscribe", "unsubscribe":
			app.handleTaskSubscription(w, r, taskID, parts[1] == "subscribe")
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, task)
	case http.MethodPatch:
		var patch models.TaskPatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		actor := r.URL.Query().Get("actor")
		updated, err := app.Board.UpdateTask(r.Context(), taskID, patch, actor)
		if err != nil {
			respondErr(w, err)
			return
		}
		writeJSON(w, updated)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (app *App) handleTaskMessages(w http.ResponseWriter, r *http.Request, taskID int64) {
	switch r.Method {
	case http.MethodGet:
		msgs, err := app.Store.ListMessages(r.Context(), taskID)
		if err != nil {
			respondErr(w, err)
			return
		}
		if msgs == nil {
			msgs = []models.Message{}
		}
		writeJSON(w, msgs)
	case http.MethodPost:
		var body struct {
			Sender      string   `json:"sender"`
			Content     string   `json:"content"`
			DocumentIDs []string `json:"document_ids"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		msg, notified, err := app.Board.PostMessage(r.Context(), taskID, body.Sender, body.Content, body.DocumentIDs)
		if err != nil {
			respondErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"message_id": msg.MessageID, "notified": notified})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (app *App) handleTaskSubscription(w http.ResponseWriter, r *http.Request, taskID int64, subscribe bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		AgentName string `json:"agent_name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.AgentName == "" {
		writeError(w, http.StatusBadRequest, "agent_name is required")
		return
	}
	var err error
	if subscribe {
		err = app.Store.Subscribe(r.Context(), body.AgentName, taskID)
	} else {
		err = app.Store.Unsubscribe(r.Context(), body.AgentName, taskID)
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (app *App) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskIDs []int64          `json:"taskIds"`
		Patch   models.TaskPatch `json:"patch"`
		Actor   string           `json:"actor"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	n, err := app.Board.BatchUpdate(r.Context(), body.TaskIDs, body.Patch, body.Actor)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "updated": n})
}

func (app *App) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskIDs []int64 `json:"taskIds"`
		Actor   string  `json:"actor"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	n, err := app.Board.BatchDelete(r.Context(), body.TaskIDs, body.Actor)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "deleted": n})
}

func (app *App) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		agents, err := app.Store.ListAgents(r.Context())
		if err != nil {
			respondErr(w, err)
			return
		}
		if agents == nil {
			agents = []models.Agent{}
		}
		writeJSON(w, agents)
	case http.MethodPost:
		var a models.Agent
		if !decodeJSON(w, r, &a) {
			return
		}
		if a.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		created, err := app.Store.CreateAgent(r.Context(), a)
		if err != nil {
			respondErr(w, err)
			return
		}
		app.Hub.PublishJSON(map[string]any{"type": "agent_update", "agent": created.Name})
		writeJSON(w, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (app *App) handleAgentSubroutes(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/agents/")
	if name == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := app.Store.DeleteAgent(r.Context(), name); err != nil {
		respondErr(w, err)
		return
	}
	app.Hub.PublishJSON(map[string]any{"type": "agent_update", "agent": name})
	writeJSON(w, map[string]any{"ok": true})
}

func (app *App) handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	acts, err := app.Store.ListActivities(r.Context(), queryInt(r, "limit"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if acts == nil {
		acts = []models.Activity{}
	}
	writeJSON(w, acts)
}

func (app *App) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	agent := r.URL.Query().Get("agent")
	if agent == "" {
		writeError(w, http.StatusBadRequest, "agent query parameter is required")
		return
	}
	undelivered := r.URL.Query().Get("undelivered") == "true"
	notifs, err := app.Store.ListNotifications(r.Context(), agent, undelivered)
	if err != nil {
		respondErr(w, err)
		return
	}
	if notifs == nil {
		notifs = []models.Notification{}
	}
	writeJSON(w, notifs)
}

// handleNotificationSubroutes covers /api/notifications/{id}/read and
// /api/notifications/read-all.
func (app *App) handleNotificationSubroutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	if rest == "read-all" {
		var body struct {
			AgentName string `json:"agent_name"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.AgentName == "" {
			writeError(w, http.StatusBadRequest, "agent_name is required")
			return
		}
		n, err := app.Store.MarkAllNotificationsDelivered(r.Context(), body.AgentName)
		if err != nil {
			respondErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "marked": n})
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "read" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := app.Store.MarkNotificationDelivered(r.Context(), id); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (app *App) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	docs, err := app.Store.ListDocuments(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, docs)
}

func queryInt(r *http.Request, key string) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
