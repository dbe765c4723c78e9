package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/salzamar/openclaw-mission-control/internal/store"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// PostMessage persists the message, its document links, the new
// subscriptions, the fanned-out notifications, and the activity record in a
// single transaction.
func (s *Store) PostMessage(ctx context.Context, msg models.Message, subs []models.Subscription, notifs []models.Notification, act models.Activity) (int64, error) {
	if msg.Content == "" {
		return 0, errors.New("message content required")
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC().Unix()
	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO messages(task_id, sender, content, created_at) VALUES($1, $2, $3, $4) RETURNING message_id`,
		msg.TaskID, msg.Sender, msg.Content, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, docID := range msg.DocumentIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO message_documents(message_id, document_id) VALUES($1, $2) ON CONFLICT DO NOTHING`, id, docID); err != nil {
			return 0, err
		}
	}
	for _, sub := range subs {
		if _, err := tx.Exec(ctx, `INSERT INTO subscriptions(agent_name, task_id, created_at) VALUES($1, $2, $3) ON CONFLICT DO NOTHING`,
			sub.AgentName, sub.TaskID, now); err != nil {
			return 0, err
		}
	}
	for _, n := range notifs {
		if _, err := tx.Exec(ctx, `INSERT INTO notifications(agent_name, content, task_id, delivered, created_at) VALUES($1, $2, $3, 0, $4)`,
			n.AgentName, n.Content, n.TaskID, now); err != nil {
			return 0, err
		}
	}
	act.TaskID = &msg.TaskID
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListMessages(ctx context.Context, taskID int64) ([]models.Message, error) {
	rows, err := s.Pool.Query(ctx, `SELECT message_id, task_id, sender, content, created_at FROM messages WHERE task_id = $1 ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var (
			m         models.Message
			createdAt int64
		)
		if err := rows.Scan(&m.MessageID, &m.TaskID, &m.Sender, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	for i := range out {
		docs, err := s.queryStrings(ctx, `SELECT document_id FROM message_documents WHERE message_id = $1`, out[i].MessageID)
		if err != nil {
			return nil, err
		}
		out[i].DocumentIDs = docs
	}
	return out, nil
}

func (s *Store) ListSubscribers(ctx context.Context, taskID int64) ([]string, error) {
	return s.queryStrings(ctx, `SELECT agent_name FROM subscriptions WHERE task_id = $1 ORDER BY agent_name`, taskID)
}

// Subscribe is idempotent under the UNIQUE(agent_name, task_id) index.
func (s *Store) Subscribe(ctx context.Context, agentName string, taskID int64) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO subscriptions(agent_name, task_id, created_at) VALUES($1, $2, $3) ON CONFLICT DO NOTHING`,
		agentName, taskID, time.Now().UTC().Unix())
	return err
}

func (s *Store) Unsubscribe(ctx context.Context, agentName string, taskID int64) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM subscriptions WHERE agent_name = $1 AND task_id = $2`, agentName, taskID)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, agentName string, undeliveredOnly bool) ([]models.Notification, error) {
	q := `SELECT notification_id, agent_name, content, task_id, delivered, created_at FROM notifications WHERE agent_name = $1`
	if undeliveredOnly {
		q += ` AND delivered = 0`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.Pool.Query(ctx, q, agentName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n         models.Notification
			delivered int
			createdAt int64
		)
		if err := rows.Scan(&n.NotificationID, &n.AgentName, &n.Content, &n.TaskID, &delivered, &createdAt); err != nil {
			return nil, err
		}
		n.Delivered = delivered != 0
		n.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationDelivered(ctx context.Context, notificationID int64) error {
	res, err := s.Pool.Exec(ctx, `UPDATE notifications SET delivered = 1 WHERE notification_id = $1`, notificationID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("notification %w: %d", store.ErrNotFound, notificationID)
	}
	return nil
}

func (s *Store) MarkAllNotificationsDelivered(ctx context.Context, agentName string) (int64, error) {
	res, err := s.Pool.Exec(ctx, `UPDATE notifications SET delivered = 1 WHERE agent_name = $1 AND delivered = 0`, agentName)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (s *Store) ListActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > models.DefaultActivityListLimit {
		limit = models.DefaultActivityListLimit
	}
	rows, err := s.Pool.Query(ctx, `
SELECT activity_id, type, agent_name, message, task_id, created_at
FROM activities ORDER BY created_at DESC, activity_id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Activity
	for rows.Next() {
		var (
			a         models.Activity
			createdAt int64
		)
		if err := rows.Scan(&a.ActivityID, &a.Type, &a.AgentName, &a.Message, &a.TaskID, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AppendActivity(ctx context.Context, act models.Activity) error {
	if act.Type == "" {
		return errors.New("activity type required")
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO activities(type, agent_name, message, task_id, created_at) VALUES($1, $2, $3, $4, $5)`,
		act.Type, act.AgentName, act.Message, act.TaskID, time.Now().UTC().Unix())
	return err
}
