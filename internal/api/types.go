package api

import (
	"time"

	"github.com/tracklane/tracklane/internal/store"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status          string `json:"status"`
	Organizations   int    `json:"organizations"`
	Projects        int    `json:"projects"`
	Tasks           int    `json:"tasks"`
	LiveConnections int    `json:"live_connections"`
	LiveRooms       int    `json:"live_rooms"`
}

// OrgResponse is one organization in API responses.
type OrgResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ContactEmail string `json:"contact_email"`
	CreatedAt    string `json:"created_at"` // RFC3339
	UpdatedAt    string `json:"updated_at"`
}

// OrgRequest is the body for POST /api/v1/orgs. Slug is derived from the name
// when omitted.
type OrgRequest struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ContactEmail string `json:"contact_email"`
}

// ProjectResponse is one project in API responses.
type ProjectResponse struct {
	ID                 int64   `json:"id"`
	OrgID              int64   `json:"org_id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Status             string  `json:"status"`
	DueDate            *string `json:"due_date,omitempty"` // RFC3339
	TaskCount          int     `json:"task_count"`
	CompletedTaskCount int     `json:"completed_task_count"`
	CompletionRate     float64 `json:"completion_rate"`
	IsOverdue          bool    `json:"is_overdue"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

// ProjectRequest is the body for POST /api/v1/projects.
type ProjectRequest struct {
	Org         string     `json:"org"` // organization slug; header fallback
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// ProjectPatch is the body for PATCH /api/v1/projects/{id}; absent fields are
// left untouched.
type ProjectPatch struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// StatsResponse is the payload for GET /api/v1/stats.
type StatsResponse struct {
	TotalProjects         int     `json:"total_projects"`
	ActiveProjects        int     `json:"active_projects"`
	CompletedProjects     int     `json:"completed_projects"`
	TotalTasks            int     `json:"total_tasks"`
	CompletedTasks        int     `json:"completed_tasks"`
	OverallCompletionRate float64 `json:"overall_completion_rate"`
}

// TaskResponse is one task in API responses.
type TaskResponse struct {
	ID            int64   `json:"id"`
	ProjectID     int64   `json:"project_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	AssigneeEmail string  `json:"assignee_email,omitempty"`
	DueDate       *string `json:"due_date,omitempty"`
	Position      int     `json:"position"`
	CommentCount  int     `json:"comment_count"`
	IsOverdue     bool    `json:"is_overdue"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// TaskRequest is the body for POST /api/v1/tasks.
type TaskRequest struct {
	ProjectID     int64      `json:"project_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	AssigneeEmail string     `json:"assignee_email"`
	DueDate       *time.Time `json:"due_date"`
}

// TaskPatch is the body for PATCH /api/v1/tasks/{id}.
type TaskPatch struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Status        *string    `json:"status"`
	AssigneeEmail *string    `json:"assignee_email"`
	DueDate       *time.Time `json:"due_date"`
	Position      *int       `json:"position"`
}

// StatusRequest is the body for POST /api/v1/tasks/{id}/status — the
// drag-and-drop fast path.
type StatusRequest struct {
	Status   string `json:"status"`
	Position *int   `json:"position"`
}

// CommentResponse is one task comment in API responses.
type CommentResponse struct {
	ID          int64  `json:"id"`
	TaskID      int64  `json:"task_id"`
	Content     string `json:"content"`
	AuthorEmail string `json:"author_email"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// CommentRequest is the body for POST /api/v1/tasks/{id}/comments.
type CommentRequest struct {
	Content     string `json:"content"`
	AuthorEmail string `json:"author_email"`
}

// MutationResponse is the envelope every mutation answers with.
type MutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	Org     *OrgResponse     `json:"org,omitempty"`
	Project *ProjectResponse `json:"project,omitempty"`
	Task    *TaskResponse    `json:"task,omitempty"`
	Comment *CommentResponse `json:"comment,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

// taskEvent is the payload published to the project room after a
// task-affecting mutation.
type taskEvent struct {
	Action   string `json:"action"` // created | updated | deleted | commented
	TaskID   int64  `json:"task_id"`
	Status   string `json:"status,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// --- mapping ----------------------------------------------------------------

func rfc3339(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func rfc3339Ptr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := rfc3339(*t)
	return &s
}

func toOrgResponse(o *store.Organization) *OrgResponse {
	return &OrgResponse{
		ID:           o.ID,
		Name:         o.Name,
		Slug:         o.Slug,
		ContactEmail: o.ContactEmail,
		CreatedAt:    rfc3339(o.CreatedAt),
		UpdatedAt:    rfc3339(o.UpdatedAt),
	}
}

func toProjectResponse(p *store.Project, now time.Time) *ProjectResponse {
	return &ProjectResponse{
		ID:                 p.ID,
		OrgID:              p.OrgID,
		Name:               p.Name,
		Description:        p.Description,
		Status:             p.Status,
		DueDate:            rfc3339Ptr(p.DueDate),
		TaskCount:          p.TaskCount,
		CompletedTaskCount: p.CompletedTaskCount,
		CompletionRate:     p.CompletionRate(),
		IsOverdue:          p.IsOverdue(now),
		CreatedAt:          rfc3339(p.CreatedAt),
		UpdatedAt:          rfc3339(p.UpdatedAt),
	}
}

func toTaskResponse(t *store.Task, now time.Time) *TaskResponse {
	return &TaskResponse{
		ID:            t.ID,
		ProjectID:     t.ProjectID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		AssigneeEmail: t.AssigneeEmail,
		DueDate:       rfc3339Ptr(t.DueDate),
		Position:      t.Position,
		CommentCount:  t.CommentCount,
		IsOverdue:     t.IsOverdue(now),
		CreatedAt:     rfc3339(t.CreatedAt),
		UpdatedAt:     rfc3339(t.UpdatedAt),
	}
}

func toCommentResponse(c *store.Comment) *CommentResponse {
	return &CommentResponse{
		ID:          c.ID,
		TaskID:      c.TaskID,
		Content:     c.Content,
		AuthorEmail: c.AuthorEmail,
		CreatedAt:   rfc3339(c.CreatedAt),
		UpdatedAt:   rfc3339(c.UpdatedAt),
	}
}
