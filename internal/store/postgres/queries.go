package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/salzamar/openclaw-mission-control/internal/store"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

func randomID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("a-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func (s *Store) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT agent_id, name, role, level, status, current_task_id, system_prompt, character, lore, created_at, updated_at
FROM agents ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) GetAgentByName(ctx context.Context, name string) (*models.Agent, error) {
	row := s.Pool.QueryRow(ctx, `
SELECT agent_id, name, role, level, status, current_task_id, system_prompt, character, lore, created_at, updated_at
FROM agents WHERE name = $1`, name)
	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) CreateAgent(ctx context.Context, a models.Agent) (models.Agent, error) {
	if a.Name == "" {
		return models.Agent{}, errors.New("agent name required")
	}
	if a.Role == "" {
		a.Role = "specialist"
	}
	if a.Status == "" {
		a.Status = models.AgentIdle
	}
	a.AgentID = randomID()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := s.Pool.Exec(ctx, `
INSERT INTO agents(agent_id, name, role, level, status, current_task_id, system_prompt, character, lore, created_at, updated_at)
VALUES($1, $2, $3, $4, $5, NULL, $6, $7, $8, $9, $10)`,
		a.AgentID, a.Name, a.Role, a.Level, a.Status, a.SystemPrompt, a.Character, a.Lore, now.Unix(), now.Unix())
	if err != nil {
		return models.Agent{}, err
	}
	return a, nil
}

func (s *Store) DeleteAgent(ctx context.Context, name string) error {
	res, err := s.Pool.Exec(ctx, `DELETE FROM agents WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("agent %w: %s", store.ErrNotFound, name)
	}
	return nil
}

func (s *Store) SetAgentStatus(ctx context.Context, name, status string, act models.Activity) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := tx.Exec(ctx, `UPDATE agents SET status = $1, updated_at = $2 WHERE name = $3`,
		status, time.Now().UTC().Unix(), name)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("agent %w: %s", store.ErrNotFound, name)
	}
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) SetAgentCurrentTask(ctx context.Context, name string, taskID *int64) error {
	res, err := s.Pool.Exec(ctx, `UPDATE agents SET current_task_id = $1, updated_at = $2 WHERE name = $3`,
		taskID, time.Now().UTC().Unix(), name)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("agent %w: %s", store.ErrNotFound, name)
	}
	return nil
}

// SeedAgents inserts the roster only when the directory is empty, so a
// restart never duplicates agents.
func (s *Store) SeedAgents(ctx context.Context, roster []models.Agent) error {
	var count int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM agents`).Scan(&count); err != nil {
		return err
	}
	if count > 0 || len(roster) == 0 {
		return nil
	}
	for _, a := range roster {
		if _, err := s.CreateAgent(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

const taskColumns = `task_id, title, description, status, priority, project_id, objective_id, created_at, updated_at`

func (s *Store) ListTasks(ctx context.Context, status string, limit int) ([]models.Task, error) {
	if limit <= 0 || limit > models.DefaultTaskListLimit {
		limit = models.DefaultTaskListLimit
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, status, limit)
	} else {
		rows, err = s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectTasks(ctx, rows)
}

func (s *Store) ListUnassignedTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT `+taskColumns+` FROM tasks t
WHERE t.status != 'archived'
  AND NOT EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.task_id)
ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectTasks(ctx, rows)
}

func (s *Store) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = $1`, taskID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.loadTaskSets(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// FindTasksByTitleSubstring returns non-archived tasks whose title contains
// needle, case-insensitively, oldest first.
func (s *Store) FindTasksByTitleSubstring(ctx context.Context, needle string) ([]models.Task, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT `+taskColumns+` FROM tasks
WHERE status != 'archived' AND POSITION(LOWER($1) IN LOWER(title)) > 0
ORDER BY created_at ASC`, needle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectTasks(ctx, rows)
}

func (s *Store) CreateTask(ctx context.Context, t models.Task, act models.Activity) (int64, error) {
	if t.Title == "" {
		return 0, errors.New("task title required")
	}
	if t.Status == "" {
		t.Status = models.StatusInbox
	}
	if t.Priority == "" {
		t.Priority = models.PriorityNormal
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := insertTaskTx(ctx, tx, t)
	if err != nil {
		return 0, err
	}
	act.TaskID = &id
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpdateTask(ctx context.Context, taskID int64, patch models.TaskPatch, act models.Activity) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := applyPatchTx(ctx, tx, taskID, patch); err != nil {
		return err
	}
	act.TaskID = &taskID
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// BatchUpdateTasks applies the same patch to every task id and logs one
// aggregate activity, not one per task.
func (s *Store) BatchUpdateTasks(ctx context.Context, taskIDs []int64, patch models.TaskPatch, act models.Activity) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n := 0
	for _, id := range taskIDs {
		if err := applyPatchTx(ctx, tx, id, patch); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return 0, err
		}
		n++
	}
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) DeleteTasks(ctx context.Context, taskIDs []int64, act models.Activity) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n := 0
	for _, id := range taskIDs {
		res, err := tx.Exec(ctx, `DELETE FROM tasks WHERE task_id = $1`, id)
		if err != nil {
			return 0, err
		}
		if res.RowsAffected() > 0 {
			n++
		}
	}
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(r rowScanner) (*models.Agent, error) {
	var (
		a         models.Agent
		createdAt int64
		updatedAt int64
	)
	if err := r.Scan(&a.AgentID, &a.Name, &a.Role, &a.Level, &a.Status, &a.CurrentTaskID, &a.SystemPrompt, &a.Character, &a.Lore, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &a, nil
}

func scanTask(r rowScanner) (*models.Task, error) {
	var (
		t         models.Task
		createdAt int64
		updatedAt int64
	)
	if err := r.Scan(&t.TaskID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.ProjectID, &t.ObjectiveID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}

func (s *Store) collectTasks(ctx context.Context, rows pgx.Rows) ([]models.Task, error) {
	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	for i := range out {
		if err := s.loadTaskSets(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadTaskSets(ctx context.Context, t *models.Task) error {
	assignees, err := s.queryStrings(ctx, `SELECT agent_name FROM task_assignees WHERE task_id = $1 ORDER BY agent_name`, t.TaskID)
	if err != nil {
		return err
	}
	t.Assignees = assignees
	if t.Assignees == nil {
		t.Assignees = []string{}
	}
	tags, err := s.queryStrings(ctx, `SELECT tag FROM task_tags WHERE task_id = $1 ORDER BY tag`, t.TaskID)
	if err != nil {
		return err
	}
	t.Tags = tags
	return nil
}

func (s *Store) queryStrings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func insertTaskTx(ctx context.Context, tx pgx.Tx, t models.Task) (int64, error) {
	now := time.Now().UTC().Unix()
	var id int64
	err := tx.QueryRow(ctx, `
INSERT INTO tasks(title, description, status, priority, project_id, objective_id, created_at, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8) RETURNING task_id`,
		t.Title, t.Description, t.Status, t.Priority, t.ProjectID, t.ObjectiveID, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, a := range t.Assignees {
		if _, err := tx.Exec(ctx, `INSERT INTO task_assignees(task_id, agent_name) VALUES($1, $2) ON CONFLICT DO NOTHING`, id, a); err != nil {
			return 0, err
		}
	}
	for _, tag := range t.Tags {
		if _, err := tx.Exec(ctx, `INSERT INTO task_tags(task_id, tag) VALUES($1, $2) ON CONFLICT DO NOTHING`, id, tag); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func applyPatchTx(ctx context.Context, tx pgx.Tx, taskID int64, patch models.TaskPatch) error {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC().Unix()}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.ProjectID != nil {
		add("project_id", *patch.ProjectID)
	}
	if patch.ObjectiveID != nil {
		add("objective_id", *patch.ObjectiveID)
	}
	args = append(args, taskID)
	res, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE tasks SET %s WHERE task_id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("task %w: %d", store.ErrNotFound, taskID)
	}
	if patch.Assignees != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM task_assignees WHERE task_id = $1`, taskID); err != nil {
			return err
		}
		for _, a := range *patch.Assignees {
			if _, err := tx.Exec(ctx, `INSERT INTO task_assignees(task_id, agent_name) VALUES($1, $2) ON CONFLICT DO NOTHING`, taskID, a); err != nil {
				return err
			}
		}
	}
	if patch.Tags != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM task_tags WHERE task_id = $1`, taskID); err != nil {
			return err
		}
		for _, tag := range *patch.Tags {
			if _, err := tx.Exec(ctx, `INSERT INTO task_tags(task_id, tag) VALUES($1, $2) ON CONFLICT DO NOTHING`, taskID, tag); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertActivityTx(ctx context.Context, tx pgx.Tx, act models.Activity) error {
	if act.Type == "" {
		return nil
	}
	_, err := tx.Exec(ctx, `INSERT INTO activities(type, agent_name, message, task_id, created_at) VALUES($1, $2, $3, $4, $5)`,
		act.Type, act.AgentName, act.Message, act.TaskID, time.Now().UTC().Unix())
	return err
}
