package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tracklane/tracklane/internal/store"
)

func (h *Handler) tasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTasks(w, r)
	case http.MethodPost:
		h.createTask(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// listTasks returns GET /api/v1/tasks?project_id=&status=&assignee= — a
// project's tasks in board order.
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if _, err := h.store.ProjectByID(r.Context(), projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "project not found")
			return
		}
		jsonErr(w, http.StatusInternalServerError, "load project")
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !store.ValidTaskStatus(status) {
		jsonErr(w, http.StatusBadRequest, "invalid status: must be one of "+strings.Join(store.TaskStatuses, ", "))
		return
	}

	tasks, err := h.store.ListTasks(r.Context(), store.TaskFilter{
		ProjectID:     projectID,
		Status:        status,
		AssigneeEmail: r.URL.Query().Get("assignee"),
	})
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "list tasks")
		return
	}
	now := h.now()
	out := make([]*TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t, now))
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := h.store.ProjectByID(r.Context(), req.ProjectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "project not found")
			return
		}
		jsonErr(w, http.StatusInternalServerError, "load project")
		return
	}
	if len(strings.TrimSpace(req.Title)) < 3 {
		jsonErr(w, http.StatusBadRequest, "title must be at least 3 characters")
		return
	}
	if req.Status != "" && !store.ValidTaskStatus(req.Status) {
		jsonErr(w, http.StatusBadRequest, "invalid status: must be one of "+strings.Join(store.TaskStatuses, ", "))
		return
	}
	if req.AssigneeEmail != "" && !validEmail(req.AssigneeEmail) {
		jsonErr(w, http.StatusBadRequest, "assignee_email is not a valid email address")
		return
	}

	t, err := h.store.CreateTask(r.Context(), req.ProjectID, req.Title, req.Description,
		req.Status, req.AssigneeEmail, req.DueDate)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "create task")
		return
	}

	h.publishTask(t.ProjectID, taskEvent{Action: "created", TaskID: t.ID, Status: t.Status})

	jsonResp(w, http.StatusCreated, MutationResponse{
		Success: true,
		Message: "Task created successfully",
		Task:    toTaskResponse(t, h.now()),
	})
}

// taskSubtree routes /api/v1/tasks/{id}, /api/v1/tasks/{id}/status, and
// /api/v1/tasks/{id}/comments.
func (h *Handler) taskSubtree(w http.ResponseWriter, r *http.Request) {
	id, rest, err := idFromPath(r.URL.Path, "/api/v1/tasks/")
	if err != nil {
		jsonErr(w, http.StatusNotFound, "task not found")
		return
	}

	switch rest {
	case "":
		h.taskByID(w, r, id)
	case "status":
		h.updateTaskStatus(w, r, id)
	case "comments":
		h.taskComments(w, r, id)
	default:
		jsonErr(w, http.StatusNotFound, "task not found")
	}
}

func (h *Handler) taskByID(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		t, err := h.store.TaskByID(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			jsonErr(w, http.StatusInternalServerError, "load task")
			return
		}
		jsonResp(w, http.StatusOK, toTaskResponse(t, h.now()))

	case http.MethodPatch:
		h.updateTask(w, r, id)

	case http.MethodDelete:
		t, err := h.store.TaskByID(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			jsonErr(w, http.StatusInternalServerError, "load task")
			return
		}
		if err := h.store.DeleteTask(r.Context(), id); err != nil {
			jsonErr(w, http.StatusInternalServerError, "delete task")
			return
		}

		h.publishTask(t.ProjectID, taskEvent{Action: "deleted", TaskID: id})

		jsonResp(w, http.StatusOK, MutationResponse{
			Success: true,
			Message: "Task deleted successfully",
		})

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request, id int64) {
	var req TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title != nil && len(strings.TrimSpace(*req.Title)) < 3 {
		jsonErr(w, http.StatusBadRequest, "title must be at least 3 characters")
		return
	}
	if req.Status != nil && !store.ValidTaskStatus(*req.Status) {
		jsonErr(w, http.StatusBadRequest, "invalid status: must be one of "+strings.Join(store.TaskStatuses, ", "))
		return
	}
	if req.AssigneeEmail != nil && *req.AssigneeEmail != "" && !validEmail(*req.AssigneeEmail) {
		jsonErr(w, http.StatusBadRequest, "assignee_email is not a valid email address")
		return
	}

	t, err := h.store.UpdateTask(r.Context(), id, store.TaskUpdate{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		AssigneeEmail: req.AssigneeEmail,
		DueDate:       req.DueDate,
		Position:      req.Position,
	})
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "update task")
		return
	}

	h.publishTask(t.ProjectID, taskEvent{
		Action:   "updated",
		TaskID:   t.ID,
		Status:   t.Status,
		Position: req.Position,
	})

	jsonResp(w, http.StatusOK, MutationResponse{
		Success: true,
		Message: "Task updated successfully",
		Task:    toTaskResponse(t, h.now()),
	})
}

// updateTaskStatus is POST /api/v1/tasks/{id}/status — the drag-and-drop fast
// path carrying only the new status and board position.
func (h *Handler) updateTaskStatus(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !store.ValidTaskStatus(req.Status) {
		jsonErr(w, http.StatusBadRequest, "invalid status: must be one of "+strings.Join(store.TaskStatuses, ", "))
		return
	}

	t, err := h.store.UpdateTaskStatus(r.Context(), id, req.Status, req.Position)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "update task status")
		return
	}

	h.publishTask(t.ProjectID, taskEvent{
		Action:   "updated",
		TaskID:   t.ID,
		Status:   t.Status,
		Position: req.Position,
	})

	jsonResp(w, http.StatusOK, MutationResponse{
		Success: true,
		Message: "Task status updated successfully",
		Task:    toTaskResponse(t, h.now()),
	})
}

// taskComments handles GET/POST /api/v1/tasks/{id}/comments.
func (h *Handler) taskComments(w http.ResponseWriter, r *http.Request, id int64) {
	t, err := h.store.TaskByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "load task")
		return
	}

	switch r.Method {
	case http.MethodGet:
		comments, err := h.store.ListComments(r.Context(), id)
		if err != nil {
			jsonErr(w, http.StatusInternalServerError, "list comments")
			return
		}
		out := make([]*CommentResponse, 0, len(comments))
		for _, c := range comments {
			out = append(out, toCommentResponse(c))
		}
		jsonResp(w, http.StatusOK, out)

	case http.MethodPost:
		var req CommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			jsonErr(w, http.StatusBadRequest, "content must not be empty")
			return
		}
		if !validEmail(req.AuthorEmail) {
			jsonErr(w, http.StatusBadRequest, "author_email is not a valid email address")
			return
		}

		c, err := h.store.CreateComment(r.Context(), id, req.Content, req.AuthorEmail)
		if err != nil {
			jsonErr(w, http.StatusInternalServerError, "create comment")
			return
		}

		h.publishTask(t.ProjectID, taskEvent{Action: "commented", TaskID: id})

		jsonResp(w, http.StatusCreated, MutationResponse{
			Success: true,
			Message: "Comment added successfully",
			Comment: toCommentResponse(c),
		})

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
