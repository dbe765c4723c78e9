package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// UpsertObjectives upserts each objective by its external id and writes the
// sync activity, all inside one transaction. The UNIQUE(external_id) index is
// the uniqueness boundary, so repeated delivery of the same payload converges
// on one record per id.
func (s *Store) UpsertObjectives(ctx context.Context, objs []models.Objective, act models.Activity) (int, int, []string, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, 0, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var created, updated int
	ids := make([]string, 0, len(objs))
	now := time.Now().UTC().Unix()
	for _, o := range objs {
		if o.ExternalID == "" {
			return 0, 0, nil, errors.New("objective missing id")
		}
		var exists int
		err := tx.QueryRow(ctx, `SELECT 1 FROM objectives WHERE external_id = $1`, o.ExternalID).Scan(&exists)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			created++
		case err != nil:
			return 0, 0, nil, err
		default:
			updated++
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO objectives(objective_id, external_id, title, description, status, progress, created_at, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT(external_id) DO UPDATE SET
  title = excluded.title,
  description = excluded.description,
  status = excluded.status,
  progress = excluded.progress,
  updated_at = excluded.updated_at`,
			uuid.NewString(), o.ExternalID, o.Title, o.Description, o.Status, o.Progress, now, now); err != nil {
			return 0, 0, nil, err
		}
		ids = append(ids, o.ExternalID)
	}
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, 0, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, nil, err
	}
	return created, updated, ids, nil
}

func (s *Store) UpsertProjects(ctx context.Context, projs []models.Project, act models.Activity) (int, int, []string, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, 0, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var created, updated int
	ids := make([]string, 0, len(projs))
	now := time.Now().UTC().Unix()
	for _, p := range projs {
		if p.ExternalID == "" {
			return 0, 0, nil, errors.New("project missing id")
		}
		var exists int
		err := tx.QueryRow(ctx, `SELECT 1 FROM projects WHERE external_id = $1`, p.ExternalID).Scan(&exists)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			created++
		case err != nil:
			return 0, 0, nil, err
		default:
			updated++
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO projects(project_id, external_id, name, description, status, objective_id, created_at, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT(external_id) DO UPDATE SET
  name = excluded.name,
  description = excluded.description,
  status = excluded.status,
  objective_id = excluded.objective_id,
  updated_at = excluded.updated_at`,
			uuid.NewString(), p.ExternalID, p.Name, p.Description, p.Status, p.ObjectiveID, now, now); err != nil {
			return 0, 0, nil, err
		}
		ids = append(ids, p.ExternalID)
	}
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return 0, 0, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, nil, err
	}
	return created, updated, ids, nil
}

func (s *Store) ListObjectives(ctx context.Context) ([]models.Objective, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT objective_id, external_id, title, description, status, progress, created_at, updated_at
FROM objectives ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Objective
	for rows.Next() {
		var (
			o                    models.Objective
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&o.ObjectiveID, &o.ExternalID, &o.Title, &o.Description, &o.Status, &o.Progress, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		o.CreatedAt = time.Unix(createdAt, 0).UTC()
		o.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT project_id, external_id, name, description, status, objective_id, created_at, updated_at
FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var (
			p                    models.Project
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&p.ProjectID, &p.ExternalID, &p.Name, &p.Description, &p.Status, &p.ObjectiveID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPlannerState writes the singleton planner row.
func (s *Store) UpsertPlannerState(ctx context.Context, st models.PlannerState) (bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists int
	created := false
	err = tx.QueryRow(ctx, `SELECT 1 FROM planner_state WHERE key = 'singleton'`).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		created = true
	} else if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO planner_state(key, status, last_run, iteration_count, cost_today, cost_reset_date, updated_at)
VALUES('singleton', $1, $2, $3, $4, $5, $6)
ON CONFLICT(key) DO UPDATE SET
  status = excluded.status,
  last_run = excluded.last_run,
  iteration_count = excluded.iteration_count,
  cost_today = excluded.cost_today,
  cost_reset_date = excluded.cost_reset_date,
  updated_at = excluded.updated_at`,
		st.Status, st.LastRun, st.IterationCount, st.CostToday, st.CostResetDate, time.Now().UTC().Unix()); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return created, nil
}

func (s *Store) GetPlannerState(ctx context.Context) (*models.PlannerState, error) {
	var (
		st        models.PlannerState
		updatedAt int64
	)
	err := s.Pool.QueryRow(ctx, `
SELECT status, last_run, iteration_count, cost_today, cost_reset_date, updated_at
FROM planner_state WHERE key = 'singleton'`).Scan(&st.Status, &st.LastRun, &st.IterationCount, &st.CostToday, &st.CostResetDate, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &st, nil
}

// CreateDocument stores the document and its review task together; the
// document row links back to the task it spawned.
func (s *Store) CreateDocument(ctx context.Context, doc models.Document, reviewTask models.Task, act models.Activity) (string, int64, error) {
	if doc.Title == "" {
		return "", 0, errors.New("document title required")
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	taskID, err := insertTaskTx(ctx, tx, reviewTask)
	if err != nil {
		return "", 0, err
	}
	docID := uuid.NewString()
	if _, err := tx.Exec(ctx, `
INSERT INTO documents(document_id, title, content, type, task_id, created_at)
VALUES($1, $2, $3, $4, $5, $6)`,
		docID, doc.Title, doc.Content, doc.Type, taskID, time.Now().UTC().Unix()); err != nil {
		return "", 0, err
	}
	act.TaskID = &taskID
	if err := insertActivityTx(ctx, tx, act); err != nil {
		return "", 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", 0, err
	}
	return docID, taskID, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT document_id, title, content, type, task_id, created_at FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var (
			d         models.Document
			createdAt int64
		)
		if err := rows.Scan(&d.DocumentID, &d.Title, &d.Content, &d.Type, &d.TaskID, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}
