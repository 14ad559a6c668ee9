package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Task is one board card. Position drives drag-and-drop ordering within the
// project; new tasks are appended after the current maximum.
type Task struct {
	ID            int64
	ProjectID     int64
	Title         string
	Description   string
	Status        string
	AssigneeEmail string
	DueDate       *time.Time
	Position      int
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Derived in-query.
	CommentCount int
}

// IsOverdue reports whether the task's due date has passed without the task
// being done.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && now.After(*t.DueDate) && t.Status != "DONE"
}

// TaskUpdate carries the fields to change; nil fields are left untouched.
type TaskUpdate struct {
	Title         *string
	Description   *string
	Status        *string
	AssigneeEmail *string
	DueDate       *time.Time
	Position      *int
}

// Comment is one comment on a task, listed newest first.
type Comment struct {
	ID          int64
	TaskID      int64
	Content     string
	AuthorEmail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskFilter narrows ListTasks. ProjectID is required; the rest are optional.
type TaskFilter struct {
	ProjectID     int64
	Status        string
	AssigneeEmail string
}

const taskColumns = `
	t.id, t.project_id, t.title, t.description, t.status, t.assignee_email,
	t.due_date, t.position, t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM task_comments c WHERE c.task_id = t.id)`

// CreateTask inserts a task at the end of the project's board order.
func (s *Store) CreateTask(ctx context.Context, projectID int64, title, description, status, assigneeEmail string, dueDate *time.Time) (*Task, error) {
	if status == "" {
		status = "TODO"
	}
	now := s.now()
	ts := encodeTime(now)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks(project_id, title, description, status, assignee_email,
		                  due_date, position, created_at, updated_at)
		VALUES(?,?,?,?,?,?,
		       (SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE project_id = ?),
		       ?,?)`,
		projectID, title, description, status, assigneeEmail,
		encodeTimePtr(dueDate), projectID, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("store: create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create task id: %w", err)
	}
	return s.TaskByID(ctx, id)
}

// TaskByID returns one task with its comment count, or ErrNotFound.
func (s *Store) TaskByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id)
	return scanTask(row)
}

// ListTasks returns the project's tasks in board order (position, then newest
// first), optionally filtered by status and assignee.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]*Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.project_id = ?`
	args := []any{f.ProjectID}
	if f.Status != "" {
		q += ` AND t.status = ?`
		args = append(args, f.Status)
	}
	if f.AssigneeEmail != "" {
		q += ` AND t.assignee_email = ?`
		args = append(args, f.AssigneeEmail)
	}
	q += ` ORDER BY t.position ASC, t.created_at DESC, t.id DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTask applies the non-nil fields of upd and returns the fresh row.
// A single COALESCE update keeps concurrent patches to different fields from
// overwriting each other.
func (s *Store) UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (*Task, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title          = COALESCE(?, title),
			description    = COALESCE(?, description),
			status         = COALESCE(?, status),
			assignee_email = COALESCE(?, assignee_email),
			due_date       = COALESCE(?, due_date),
			position       = COALESCE(?, position),
			updated_at     = ?
		WHERE id=?`,
		upd.Title, upd.Description, upd.Status, upd.AssigneeEmail,
		encodeTimePtr(upd.DueDate), upd.Position, encodeTime(s.now()), id)
	if err != nil {
		return nil, fmt.Errorf("store: update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.TaskByID(ctx, id)
}

// UpdateTaskStatus is the drag-and-drop fast path: status plus, optionally,
// the new board position.
func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status string, position *int) (*Task, error) {
	return s.UpdateTask(ctx, id, TaskUpdate{Status: &status, Position: position})
}

// DeleteTask removes the task and, via cascade, its comments.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateComment appends a comment to the task.
func (s *Store) CreateComment(ctx context.Context, taskID int64, content, authorEmail string) (*Comment, error) {
	now := s.now()
	ts := encodeTime(now)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments(task_id, content, author_email, created_at, updated_at)
		VALUES(?,?,?,?,?)`,
		taskID, content, authorEmail, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("store: create comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create comment id: %w", err)
	}
	return &Comment{
		ID:          id,
		TaskID:      taskID,
		Content:     content,
		AuthorEmail: authorEmail,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// ListComments returns the task's comments, newest first.
func (s *Store) ListComments(ctx context.Context, taskID int64) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, content, author_email, created_at, updated_at
		FROM task_comments WHERE task_id = ?
		ORDER BY created_at DESC, id DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("store: list comments: %w", err)
	}
	defer rows.Close()

	var out []*Comment
	for rows.Next() {
		var c Comment
		var created, updated string
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Content, &c.AuthorEmail, &created, &updated); err != nil {
			return nil, fmt.Errorf("store: scan comment: %w", err)
		}
		c.CreatedAt = decodeTime(created)
		c.UpdatedAt = decodeTime(updated)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var created, updated string
	var due sql.NullString
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status,
		&t.AssigneeEmail, &due, &t.Position, &created, &updated, &t.CommentCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan task: %w", err)
	}
	t.DueDate = decodeTimePtr(due)
	t.CreatedAt = decodeTime(created)
	t.UpdatedAt = decodeTime(updated)
	return &t, nil
}
