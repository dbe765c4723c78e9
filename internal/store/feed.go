package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// PostMessage persists the message, its document links, the new
// subscriptions, the fanned-out notifications, and the activity record in a
// single transaction. Either every derived write lands or none do.
func (s *sqliteStore) PostMessage(ctx context.Context, msg models.Message, subs []models.Subscription, notifs []models.Notification, act models.Activity) (int64, error) {
	if msg.Content == "" {
		return 0, errors.New("message content required")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Unix()
	res, err := tx.ExecContext(ctx, `INSERT INTO messages(task_id, sender, content, created_at) VALUES(?, ?, ?, ?)`,
		msg.TaskID, msg.Sender, msg.Content, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, docID := range msg.DocumentIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO message_documents(message_id, document_id) VALUES(?, ?)`, id, docID); err != nil {
			return 0, err
		}
	}
	for _, sub := range subs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO subscriptions(agent_name, task_id, created_at) VALUES(?, ?, ?)`,
			sub.AgentName, sub.TaskID, now); err != nil {
			return 0, err
		}
	}
	for _, n := range notifs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO notifications(agent_name, content, task_id, delivered, created_at) VALUES(?, ?, ?, 0, ?)`,
			n.AgentName, n.Content, nullableInt64(n.TaskID), now); err != nil {
			return 0, err
		}
	}
	act.TaskID = &msg.TaskID
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *sqliteStore) ListMessages(ctx context.Context, taskID int64) ([]models.Message, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT message_id, task_id, sender, content, created_at FROM messages WHERE task_id = ? ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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
	for i := range out {
		docs, err := queryStrings(ctx, s.DB, `SELECT document_id FROM message_documents WHERE message_id = ?`, out[i].MessageID)
		if err != nil {
			return nil, err
		}
		out[i].DocumentIDs = docs
	}
	return out, nil
}

func (s *sqliteStore) ListSubscribers(ctx context.Context, taskID int64) ([]string, error) {
	rows, err := s.stmtListSubscribers.QueryContext(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Subscribe is idempotent: the UNIQUE(agent_name, task_id) index plus
// INSERT OR IGNORE makes repeated calls a no-op.
func (s *sqliteStore) Subscribe(ctx context.Context, agentName string, taskID int64) error {
	_, err := s.stmtSubscribe.ExecContext(ctx, agentName, taskID, time.Now().UTC().Unix())
	return err
}

func (s *sqliteStore) Unsubscribe(ctx context.Context, agentName string, taskID int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE agent_name = ? AND task_id = ?`, agentName, taskID)
	return err
}

func (s *sqliteStore) ListNotifications(ctx context.Context, agentName string, undeliveredOnly bool) ([]models.Notification, error) {
	q := `SELECT notification_id, agent_name, content, task_id, delivered, created_at FROM notifications WHERE agent_name = ?`
	if undeliveredOnly {
		q += ` AND delivered = 0`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, q, agentName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Notification
	for rows.Next() {
		var (
			n         models.Notification
			taskID    sql.NullInt64
			delivered int
			createdAt int64
		)
		if err := rows.Scan(&n.NotificationID, &n.AgentName, &n.Content, &taskID, &delivered, &createdAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			n.TaskID = &taskID.Int64
		}
		n.Delivered = delivered != 0
		n.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqliteStore) MarkNotificationDelivered(ctx context.Context, notificationID int64) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE notifications SET delivered = 1 WHERE notification_id = ?`, notificationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %w: %d", ErrNotFound, notificationID)
	}
	return nil
}

func (s *sqliteStore) MarkAllNotificationsDelivered(ctx context.Context, agentName string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `UPDATE notifications SET delivered = 1 WHERE agent_name = ? AND delivered = 0`, agentName)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) ListActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > models.DefaultActivityListLimit {
		limit = models.DefaultActivityListLimit
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT activity_id, type, agent_name, message, task_id, created_at
FROM activities ORDER BY created_at DESC, activity_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Activity
	for rows.Next() {
		var (
			a         models.Activity
			taskID    sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&a.ActivityID, &a.Type, &a.AgentName, &a.Message, &taskID, &createdAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			a.TaskID = &taskID.Int64
		}
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendActivity(ctx context.Context, act models.Activity) error {
	if act.Type == "" {
		return errors.New("activity type required")
	}
	_, err := s.stmtInsertActivity.ExecContext(ctx, act.Type, act.AgentName, act.Message, nullableInt64(act.TaskID), time.Now().UTC().Unix())
	return err
}
