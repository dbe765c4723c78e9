package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// ErrNotFound is returned when a lookup by id or name matches no record.
var ErrNotFound = errors.New("not found")

func (s *sqliteStore) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT agent_id, name, role, level, status, current_task_id, system_prompt, character, lore, created_at, updated_at
FROM agents ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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

func (s *sqliteStore) GetAgentByName(ctx context.Context, name string) (*models.Agent, error) {
	row := s.stmtGetAgentByName.QueryRowContext(ctx, name)
	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (s *sqliteStore) CreateAgent(ctx context.Context, a models.Agent) (models.Agent, error) {
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
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO agents(agent_id, name, role, level, status, current_task_id, system_prompt, character, lore, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
		a.AgentID, a.Name, a.Role, a.Level, a.Status, a.SystemPrompt, a.Character, a.Lore, now.Unix(), now.Unix())
	if err != nil {
		return models.Agent{}, err
	}
	return a, nil
}

func (s *sqliteStore) DeleteAgent(ctx context.Context, name string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM agents WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *sqliteStore) SetAgentStatus(ctx context.Context, name, status string, act models.Activity) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE agents SET status = ?, updated_at = ? WHERE name = ?`,
		status, time.Now().UTC().Unix(), name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %w: %s", ErrNotFound, name)
	}
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) SetAgentCurrentTask(ctx context.Context, name string, taskID *int64) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE agents SET current_task_id = ?, updated_at = ? WHERE name = ?`,
		nullableInt64(taskID), time.Now().UTC().Unix(), name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %w: %s", ErrNotFound, name)
	}
	return nil
}

// SeedAgents inserts the roster only when the directory is empty, so a
// restart never duplicates agents.
func (s *sqliteStore) SeedAgents(ctx context.Context, roster []models.Agent) error {
	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&count); err != nil {
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

func (s *sqliteStore) ListTasks(ctx context.Context, status string, limit int) ([]models.Task, error) {
	if limit <= 0 || limit > models.DefaultTaskListLimit {
		limit = models.DefaultTaskListLimit
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at DESC LIMIT ?`, status, limit)
	} else {
		rows, err = s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return s.collectTasks(ctx, rows)
}

func (s *sqliteStore) ListUnassignedTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+taskColumns+` FROM tasks t
WHERE t.status != 'archived'
  AND NOT EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.task_id)
ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return s.collectTasks(ctx, rows)
}

func (s *sqliteStore) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	row := s.stmtGetTask.QueryRowContext(ctx, taskID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
// needle, case-insensitively, oldest first. Callers that need a single task
// take the first match; more than one result means the lookup is ambiguous.
func (s *sqliteStore) FindTasksByTitleSubstring(ctx context.Context, needle string) ([]models.Task, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+taskColumns+` FROM tasks
WHERE status != 'archived' AND instr(lower(title), lower(?)) > 0
ORDER BY created_at ASC`, needle)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return s.collectTasks(ctx, rows)
}

func (s *sqliteStore) CreateTask(ctx context.Context, t models.Task, act models.Activity) (int64, error) {
	if t.Title == "" {
		return 0, errors.New("task title required")
	}
	if t.Status == "" {
		t.Status = models.StatusInbox
	}
	if t.Priority == "" {
		t.Priority = models.PriorityNormal
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertTaskTx(ctx, tx, t)
	if err != nil {
		return 0, err
	}
	act.TaskID = &id
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *sqliteStore) UpdateTask(ctx context.Context, taskID int64, patch models.TaskPatch, act models.Activity) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyPatchTx(ctx, tx, taskID, patch); err != nil {
		return err
	}
	act.TaskID = &taskID
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return err
	}
	return tx.Commit()
}

// BatchUpdateTasks applies the same patch to every task id and logs one
// aggregate activity, not one per task.
func (s *sqliteStore) BatchUpdateTasks(ctx context.Context, taskIDs []int64, patch models.TaskPatch, act models.Activity) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	n := 0
	for _, id := range taskIDs {
		if err := applyPatchTx(ctx, tx, id, patch); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return 0, err
		}
		n++
	}
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *sqliteStore) DeleteTasks(ctx context.Context, taskIDs []int64, act models.Activity) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	n := 0
	for _, id := range taskIDs {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, id)
		if err != nil {
			return 0, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			n++
		}
	}
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
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
		current   sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	if err := r.Scan(&a.AgentID, &a.Name, &a.Role, &a.Level, &a.Status, &current, &a.SystemPrompt, &a.Character, &a.Lore, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if current.Valid {
		a.CurrentTaskID = &current.Int64
	}
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &a, nil
}

func scanTask(r rowScanner) (*models.Task, error) {
	var (
		t         models.Task
		project   sql.NullString
		objective sql.NullString
		createdAt int64
		updatedAt int64
	)
	if err := r.Scan(&t.TaskID, &t.Title, &t.Description, &t.Status, &t.Priority, &project, &objective, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if project.Valid {
		t.ProjectID = &project.String
	}
	if objective.Valid {
		t.ObjectiveID = &objective.String
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}

func (s *sqliteStore) collectTasks(ctx context.Context, rows *sql.Rows) ([]models.Task, error) {
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
	for i := range out {
		if err := s.loadTaskSets(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *sqliteStore) loadTaskSets(ctx context.Context, t *models.Task) error {
	assignees, err := queryStrings(ctx, s.DB, `SELECT agent_name FROM task_assignees WHERE task_id = ? ORDER BY agent_name`, t.TaskID)
	if err != nil {
		return err
	}
	t.Assignees = assignees
	if t.Assignees == nil {
		t.Assignees = []string{}
	}
	tags, err := queryStrings(ctx, s.DB, `SELECT tag FROM task_tags WHERE task_id = ? ORDER BY tag`, t.TaskID)
	if err != nil {
		return err
	}
	t.Tags = tags
	return nil
}

func queryStrings(ctx context.Context, db *sql.DB, q string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func insertTaskTx(ctx context.Context, tx *sql.Tx, t models.Task) (int64, error) {
	now := time.Now().UTC().Unix()
	res, err := tx.ExecContext(ctx, `
INSERT INTO tasks(title, description, status, priority, project_id, objective_id, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Status, t.Priority, nullableString(t.ProjectID), nullableString(t.ObjectiveID), now, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, a := range t.Assignees {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id, agent_name) VALUES(?, ?)`, id, a); err != nil {
			return 0, err
		}
	}
	for _, tag := range t.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_tags(task_id, tag) VALUES(?, ?)`, id, tag); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func applyPatchTx(ctx context.Context, tx *sql.Tx, taskID int64, patch models.TaskPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Unix()}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if patch.ProjectID != nil {
		sets = append(sets, "project_id = ?")
		args = append(args, *patch.ProjectID)
	}
	if patch.ObjectiveID != nil {
		sets = append(sets, "objective_id = ?")
		args = append(args, *patch.ObjectiveID)
	}
	args = append(args, taskID)
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE task_id = ?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %w: %d", ErrNotFound, taskID)
	}
	if patch.Assignees != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
			return err
		}
		for _, a := range *patch.Assignees {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id, agent_name) VALUES(?, ?)`, taskID, a); err != nil {
				return err
			}
		}
	}
	if patch.Tags != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, taskID); err != nil {
			return err
		}
		for _, tag := range *patch.Tags {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_tags(task_id, tag) VALUES(?, ?)`, taskID, tag); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertActivityTx(ctx context.Context, tx *sql.Tx, act models.Activity) error {
	if act.Type == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(type, agent_name, message, task_id, created_at) VALUES(?, ?, ?, ?, ?)`,
		act.Type, act.AgentName, act.Message, nullableInt64(act.TaskID), time.Now().UTC().Unix())
	return err
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
