package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

func TestRunnerWebhook_payload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	task := models.Task{TaskID: 7, Title: "Refit the hull", Status: models.StatusInProgress, Priority: "high", Assignees: []string{"Nova Sterling"}}
	agent := &models.Agent{Name: "Nova Sterling", Role: "engineer", SystemPrompt: "be thorough", Character: "calm", Lore: "veteran"}

	err := RunnerWebhook{URL: srv.URL}.NotifyTask(context.Background(), task, agent)
	require.NoError(t, err)

	assert.Equal(t, float64(7), got["taskId"])
	assert.Equal(t, "Refit the hull", got["title"])
	assert.Equal(t, "in_progress", got["status"])
	persona, ok := got["agent"].(map[string]any)
	require.True(t, ok, "the assignee's persona rides along")
	assert.Equal(t, "Nova Sterling", persona["name"])
	assert.Equal(t, "be thorough", persona["system_prompt"])
}

func TestRunnerWebhook_noAgent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	err := RunnerWebhook{URL: srv.URL}.NotifyTask(context.Background(), models.Task{TaskID: 1, Title: "x"}, nil)
	require.NoError(t, err)
	_, hasAgent := got["agent"]
	assert.False(t, hasAgent)
}

func TestRunnerWebhook_errors(t *testing.T) {
	err := RunnerWebhook{}.NotifyTask(context.Background(), models.Task{}, nil)
	require.Error(t, err, "unset URL")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	err = RunnerWebhook{URL: srv.URL}.NotifyTask(context.Background(), models.Task{TaskID: 1, Title: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSlackWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	hook := SlackWebhook{WebhookURL: srv.URL, Channel: "#missions", Username: "missionctl"}
	task := models.Task{Title: "Refit the hull", Status: models.StatusInProgress}
	err := hook.NotifyTask(context.Background(), task, &models.Agent{Name: "Nova Sterling"})
	require.NoError(t, err)

	assert.Contains(t, got["text"], "Refit the hull")
	assert.Contains(t, got["text"], "Nova Sterling")
	assert.Equal(t, "#missions", got["channel"])
	assert.Equal(t, "missionctl", got["username"])
}

func TestRegistry_notifyAllTriesEveryTarget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	reg := NewRegistry()
	reg.Register("runner", RunnerWebhook{URL: bad.URL})
	reg.Register("slack", SlackWebhook{WebhookURL: srv.URL})

	err := reg.NotifyAll(context.Background(), models.Task{TaskID: 1, Title: "x"}, nil)
	require.Error(t, err, "the failing target's error surfaces")
	assert.Equal(t, int32(2), calls.Load(), "a failure does not stop delivery to the others")
}

func TestRegistry_emptyIsNoop(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.NotifyAll(context.Background(), models.Task{}, nil))
	assert.Nil(t, reg.Get("runner"))
}
