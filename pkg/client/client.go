// Package client provides a Go SDK for the Mission Control HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// Client calls the Mission Control HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3917"
	APIKey     string       // optional; set for X-API-Key / api_key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL. APIKey is optional; when set,
// requests carry the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// Bootstrap returns the full /bootstrap payload.
func (c *Client) Bootstrap(ctx context.Context) (*models.Bootstrap, error) {
	var out models.Bootstrap
	err := c.doJSON(ctx, http.MethodGet, "/bootstrap", nil, &out)
	return &out, err
}

// ListTasks returns tasks, optionally filtered by status (limit 0 = default).
func (c *Client) ListTasks(ctx context.Context, status string, limit int) ([]models.Task, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// CreateTask creates a task. Empty assignees lets the server auto-assign.
func (c *Client) CreateTask(ctx context.Context, title, description, priority string, tags, assignees []string, actor string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/api/tasks", map[string]any{
		"title":       title,
		"description": description,
		"priority":    priority,
		"tags":        tags,
		"assignees":   assignees,
		"actor":       actor,
	}, &out)
	return &out, err
}

// GetTask returns a task by id.
func (c *Client) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodGet, "/api/tasks/"+strconv.FormatInt(taskID, 10), nil, &out)
	return &out, err
}

// UpdateTask applies a partial update and returns the updated task.
func (c *Client) UpdateTask(ctx context.Context, taskID int64, patch models.TaskPatch, actor string) (*models.Task, error) {
	path := "/api/tasks/" + strconv.FormatInt(taskID, 10)
	if actor != "" {
		path += "?actor=" + url.QueryEscape(actor)
	}
	var out models.Task
	err := c.doJSON(ctx, http.MethodPatch, path, patch, &out)
	return &out, err
}

// PostMessage appends a message to a task thread and returns the message id
// and the number of agents notified. documentIDs may be nil.
func (c *Client) PostMessage(ctx context.Context, taskID int64, sender, content string, documentIDs []string) (messageID int64, notified int, err error) {
	var out struct {
		MessageID int64 `json:"message_id"`
		Notified  int   `json:"notified"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/api/tasks/"+strconv.FormatInt(taskID, 10)+"/messages", map[string]any{
		"sender": sender, "content": content, "document_ids": documentIDs,
	}, &out)
	return out.MessageID, out.Notified, err
}

// ListMessages returns the message thread for a task, oldest first.
func (c *Client) ListMessages(ctx context.Context, taskID int64) ([]models.Message, error) {
	var out []models.Message
	err := c.doJSON(ctx, http.MethodGet, "/api/tasks/"+strconv.FormatInt(taskID, 10)+"/messages", nil, &out)
	return out, err
}

// Subscribe adds an agent to a task's watch list.
func (c *Client) Subscribe(ctx context.Context, taskID int64, agentName string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/tasks/"+strconv.FormatInt(taskID, 10)+"/subscribe",
		map[string]string{"agent_name": agentName}, nil)
}

// Unsubscribe removes an agent from a task's watch list.
func (c *Client) Unsubscribe(ctx context.Context, taskID int64, agentName string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/tasks/"+strconv.FormatInt(taskID, 10)+"/unsubscribe",
		map[string]string{"agent_name": agentName}, nil)
}

// ListAgents returns the full agent directory.
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var out []models.Agent
	err := c.doJSON(ctx, http.MethodGet, "/api/agents", nil, &out)
	return out, err
}

// CreateAgent registers an agent (role defaults to "specialist" if empty).
func (c *Client) CreateAgent(ctx context.Context, a models.Agent) (*models.Agent, error) {
	var out models.Agent
	err := c.doJSON(ctx, http.MethodPost, "/api/agents", a, &out)
	return &out, err
}

// DeleteAgent removes an agent by name.
func (c *Client) DeleteAgent(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/agents/"+url.PathEscape(name), nil, nil)
}

// SetAgentStatus reports an agent status change (idle, active, blocked).
// The name is matched tolerantly, the way the webhook matches it.
func (c *Client) SetAgentStatus(ctx context.Context, agentName, status string) error {
	return c.doJSON(ctx, http.MethodPost, "/agents/status", map[string]string{
		"agentName": agentName, "status": status,
	}, nil)
}

// ListActivities returns the most recent activity records.
func (c *Client) ListActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	path := "/api/activities"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []models.Activity
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ListNotifications returns notifications for an agent.
func (c *Client) ListNotifications(ctx context.Context, agentName string, undeliveredOnly bool) ([]models.Notification, error) {
	path := "/api/notifications?agent=" + url.QueryEscape(agentName)
	if undeliveredOnly {
		path += "&undelivered=true"
	}
	var out []models.Notification
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// MarkNotificationRead marks one notification delivered.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	return c.doJSON(ctx, http.MethodPost, "/api/notifications/"+strconv.FormatInt(notificationID, 10)+"/read", map[string]string{}, nil)
}

// MarkAllNotificationsRead marks every undelivered notification for an agent.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, agentName string) (int64, error) {
	var out struct {
		Marked int64 `json:"marked"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/notifications/read-all", map[string]string{"agent_name": agentName}, &out)
	return out.Marked, err
}

// FixUnassignedReport is the /tasks/fix-unassigned response.
type FixUnassignedReport struct {
	TotalUnassigned int `json:"totalUnassigned"`
	Fixed           int `json:"fixed"`
	Results         []struct {
		TaskID   int64   `json:"taskId"`
		Title    string  `json:"title"`
		Assignee *string `json:"assignedTo"`
	} `json:"results"`
}

// FixUnassigned runs the auto-assignment sweep over unassigned tasks.
func (c *Client) FixUnassigned(ctx context.Context) (*FixUnassignedReport, error) {
	var out FixUnassignedReport
	err := c.doJSON(ctx, http.MethodPost, "/tasks/fix-unassigned", map[string]string{}, &out)
	return &out, err
}

// UploadDocument stores a document and returns the document id plus the id
// of the review task the server opened for it.
func (c *Client) UploadDocument(ctx context.Context, title, content, docType string) (documentID string, taskID int64, err error) {
	var out struct {
		DocumentID string `json:"documentId"`
		TaskID     int64  `json:"taskId"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/documents/upload", map[string]string{
		"title": title, "content": content, "type": docType,
	}, &out)
	return out.DocumentID, out.TaskID, err
}

// ListDocuments returns stored documents, newest first.
func (c *Client) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var out []models.Document
	err := c.doJSON(ctx, http.MethodGet, "/api/documents", nil, &out)
	return out, err
}
