// Package trigger holds outbound integrations that are notified after a
// mutation commits. Delivery is best effort: a failed call is logged by the
// caller and never rolls back the mutation it followed.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// Integration is an outbound target (agent runner, Slack).
type Integration interface {
	Name() string
	// NotifyTask delivers a task event with the owning agent's persona.
	NotifyTask(ctx context.Context, task models.Task, agent *models.Agent) error
}

// Registry holds loaded integrations by name.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Integration
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Integration)}
}

func (r *Registry) Register(name string, c Integration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[name] = c
}

func (r *Registry) Get(name string) Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps[name]
}

// NotifyAll delivers the event to every integration and returns the first
// error, after trying all of them.
func (r *Registry) NotifyAll(ctx context.Context, task models.Task, agent *models.Agent) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for _, c := range r.caps {
		if err := c.NotifyTask(ctx, task, agent); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	return firstErr
}

// RunnerWebhook posts the task and the agent's persona to the external
// agent-execution service when a task starts.
type RunnerWebhook struct {
	URL        string
	HTTPClient *http.Client // optional; nil uses a 10s-timeout client
}

func (w RunnerWebhook) Name() string { return "runner" }

func (w RunnerWebhook) NotifyTask(ctx context.Context, task models.Task, agent *models.Agent) error {
	if w.URL == "" {
		return fmt.Errorf("runner webhook URL not set")
	}
	payload := map[string]any{
		"taskId":      task.TaskID,
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
		"priority":    task.Priority,
		"assignees":   task.Assignees,
	}
	if agent != nil {
		payload["agent"] = map[string]any{
			"name":          agent.Name,
			"role":          agent.Role,
			"system_prompt": agent.SystemPrompt,
			"character":     agent.Character,
			"lore":          agent.Lore,
		}
	}
	return postJSON(ctx, w.client(), w.URL, payload)
}

func (w RunnerWebhook) client() *http.Client {
	if w.HTTPClient != nil {
		return w.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// SlackWebhook mirrors task events to a Slack incoming webhook.
type SlackWebhook struct {
	WebhookURL string
	Channel    string // optional override
	Username   string // optional
}

func (s SlackWebhook) Name() string { return "slack" }

func (s SlackWebhook) NotifyTask(ctx context.Context, task models.Task, agent *models.Agent) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not set")
	}
	who := "unassigned"
	if agent != nil {
		who = agent.Name
	}
	payload := map[string]any{
		"text": fmt.Sprintf("Task %q is now %s (%s)", task.Title, task.Status, who),
	}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	if s.Username != "" {
		payload["username"] = s.Username
	}
	return postJSON(ctx, http.DefaultClient, s.WebhookURL, payload)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
