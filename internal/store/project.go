package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// Project belongs to one organization and groups the tasks shown on a board.
type Project struct {
	ID          int64
	OrgID       int64
	Name        string
	Description string
	Status      string
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Derived in-query.
	TaskCount          int
	CompletedTaskCount int
}

// CompletionRate returns the percentage of DONE tasks, rounded to two
// decimals. Zero tasks means zero percent.
func (p *Project) CompletionRate() float64 {
	if p.TaskCount == 0 {
		return 0
	}
	return math.Round(float64(p.CompletedTaskCount)/float64(p.TaskCount)*10000) / 100
}

// IsOverdue reports whether the project's due date has passed without the
// project being completed.
func (p *Project) IsOverdue(now time.Time) bool {
	return p.DueDate != nil && now.After(*p.DueDate) && p.Status != "COMPLETED"
}

// ProjectUpdate carries the fields to change; nil fields are left untouched.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *string
	DueDate     *time.Time
}

// ProjectStats aggregates an organization's projects and tasks.
type ProjectStats struct {
	TotalProjects     int
	ActiveProjects    int
	CompletedProjects int
	TotalTasks        int
	CompletedTasks    int
}

// OverallCompletionRate returns the DONE percentage across all of the
// organization's tasks, rounded to two decimals.
func (st ProjectStats) OverallCompletionRate() float64 {
	if st.TotalTasks == 0 {
		return 0
	}
	return math.Round(float64(st.CompletedTasks)/float64(st.TotalTasks)*10000) / 100
}

const projectColumns = `
	p.id, p.org_id, p.name, p.description, p.status, p.due_date,
	p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id),
	(SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id AND t.status = 'DONE')`

// CreateProject inserts a project under the organization.
func (s *Store) CreateProject(ctx context.Context, orgID int64, name, description, status string, dueDate *time.Time) (*Project, error) {
	if status == "" {
		status = "ACTIVE"
	}
	now := s.now()
	ts := encodeTime(now)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO projects(org_id, name, description, status, due_date, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?)`,
		orgID, name, description, status, encodeTimePtr(dueDate), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("store: create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create project id: %w", err)
	}
	return s.ProjectByID(ctx, id)
}

// ProjectByID returns one project with its derived task counts, or ErrNotFound.
func (s *Store) ProjectByID(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id)
	return scanProject(row)
}

// ListProjects returns the organization's projects, newest first, optionally
// filtered by status.
func (s *Store) ListProjects(ctx context.Context, orgID int64, status string) ([]*Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects p WHERE p.org_id = ?`
	args := []any{orgID}
	if status != "" {
		q += ` AND p.status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY p.created_at DESC, p.id DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProject applies the non-nil fields of upd and returns the fresh row.
// A single COALESCE update keeps concurrent patches to different fields from
// overwriting each other.
func (s *Store) UpdateProject(ctx context.Context, id int64, upd ProjectUpdate) (*Project, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET
			name        = COALESCE(?, name),
			description = COALESCE(?, description),
			status      = COALESCE(?, status),
			due_date    = COALESCE(?, due_date),
			updated_at  = ?
		WHERE id=?`,
		upd.Name, upd.Description, upd.Status,
		encodeTimePtr(upd.DueDate), encodeTime(s.now()), id)
	if err != nil {
		return nil, fmt.Errorf("store: update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.ProjectByID(ctx, id)
}

// DeleteProject removes the project and, via cascade, its tasks and comments.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("store: delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates project and task counts for the organization.
func (s *Store) Stats(ctx context.Context, orgID int64) (ProjectStats, error) {
	var st ProjectStats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'ACTIVE' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END), 0)
		FROM projects WHERE org_id = ?`, orgID)
	if err := row.Scan(&st.TotalProjects, &st.ActiveProjects, &st.CompletedProjects); err != nil {
		return st, fmt.Errorf("store: project stats: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN t.status = 'DONE' THEN 1 ELSE 0 END), 0)
		FROM tasks t JOIN projects p ON p.id = t.project_id
		WHERE p.org_id = ?`, orgID)
	if err := row.Scan(&st.TotalTasks, &st.CompletedTasks); err != nil {
		return st, fmt.Errorf("store: task stats: %w", err)
	}
	return st, nil
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var created, updated string
	var due sql.NullString
	err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.Status, &due,
		&created, &updated, &p.TaskCount, &p.CompletedTaskCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan project: %w", err)
	}
	p.DueDate = decodeTimePtr(due)
	p.CreatedAt = decodeTime(created)
	p.UpdatedAt = decodeTime(updated)
	return &p, nil
}
