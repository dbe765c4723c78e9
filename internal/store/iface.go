package store

import (
	"context"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// Store is the persistence interface for agents, tasks, messages,
// notifications, subscriptions, activities, and synced external records.
// Implementations: the SQLite store returned by Open and *postgres.Store.
//
// Mutating methods that accept an Activity (and, for PostMessage,
// subscription and notification rows) apply every write in one transaction:
// either the record change and all of its derived writes commit, or none do.
type Store interface {
	// Agents
	ListAgents(ctx context.Context) ([]models.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*models.Agent, error)
	CreateAgent(ctx context.Context, a models.Agent) (models.Agent, error)
	DeleteAgent(ctx context.Context, name string) error
	SetAgentStatus(ctx context.Context, name, status string, act models.Activity) error
	SetAgentCurrentTask(ctx context.Context, name string, taskID *int64) error
	SeedAgents(ctx context.Context, roster []models.Agent) error

	// Tasks
	ListTasks(ctx context.Context, status string, limit int) ([]models.Task, error)
	ListUnassignedTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, taskID int64) (*models.Task, error)
	FindTasksByTitleSubstring(ctx context.Context, needle string) ([]models.Task, error)
	CreateTask(ctx context.Context, t models.Task, act models.Activity) (int64, error)
	UpdateTask(ctx context.Context, taskID int64, patch models.TaskPatch, act models.Activity) error
	BatchUpdateTasks(ctx context.Context, taskIDs []int64, patch models.TaskPatch, act models.Activity) (int, error)
	DeleteTasks(ctx context.Context, taskIDs []int64, act models.Activity) (int, error)

	// Messages (PostMessage persists the message plus its derived
	// subscription and notification rows and the activity atomically)
	PostMessage(ctx context.Context, msg models.Message, subs []models.Subscription, notifs []models.Notification, act models.Activity) (int64, error)
	ListMessages(ctx context.Context, taskID int64) ([]models.Message, error)

	// Subscriptions
	ListSubscribers(ctx context.Context, taskID int64) ([]string, error)
	Subscribe(ctx context.Context, agentName string, taskID int64) error
	Unsubscribe(ctx context.Context, agentName string, taskID int64) error

	// Notifications
	ListNotifications(ctx context.Context, agentName string, undeliveredOnly bool) ([]models.Notification, error)
	MarkNotificationDelivered(ctx context.Context, notificationID int64) error
	MarkAllNotificationsDelivered(ctx context.Context, agentName string) (int64, error)

	// Activity feed
	ListActivities(ctx context.Context, limit int) ([]models.Activity, error)
	AppendActivity(ctx context.Context, act models.Activity) error

	// External sync (upsert by external id; safe under repeated delivery;
	// the activity commits in the same transaction as the upserts)
	UpsertObjectives(ctx context.Context, objs []models.Objective, act models.Activity) (created, updated int, ids []string, err error)
	UpsertProjects(ctx context.Context, projs []models.Project, act models.Activity) (created, updated int, ids []string, err error)
	ListObjectives(ctx context.Context) ([]models.Objective, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpsertPlannerState(ctx context.Context, st models.PlannerState) (created bool, err error)
	GetPlannerState(ctx context.Context) (*models.PlannerState, error)

	// Documents (CreateDocument also creates the linked review task)
	CreateDocument(ctx context.Context, doc models.Document, reviewTask models.Task, act models.Activity) (documentID string, taskID int64, err error)
	ListDocuments(ctx context.Context) ([]models.Document, error)

	// Lifecycle
	Close() error
}
