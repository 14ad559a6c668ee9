package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tracklane/tracklane/internal/store"
)

func (h *Handler) projects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listProjects(w, r)
	case http.MethodPost:
		h.createProject(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// listProjects returns GET /api/v1/projects?org={slug}&status= — the
// organization's projects.
func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgFromRequest(r)
	if err != nil {
		jsonErr(w, http.StatusNotFound, "organization not found")
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !store.ValidProjectStatus(status) {
		jsonErr(w, http.StatusBadRequest, "invalid status: must be one of "+strings.Join(store.ProjectStatuses, ", "))
		return
	}

	projects, err := h.store.ListProjects(r.Context(), org.ID, status)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "list projects")
		return
	}
	now := h.now()
	out := make([]*ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p, now))
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	org, err := h.orgFromRequest(r)
	if err != nil && req.Org != "" {
		org, err = h.store.OrgBySlug(r.Context(), req.Org)
	}
	if err != nil {
		jsonErr(w, http.StatusNotFound, "organization not found")
		return
	}

	if len(strings.TrimSpace(req.Name)) < 3 {
		jsonErr(w, http.StatusBadRequest, "name must be at least 3 characters")
		return
	}
	if req.Status != "" && !store.ValidProjectStatus(req.Status) {
		jsonErr(w, http.StatusBadRequest, "invalid status: must be one of "+strings.Join(store.ProjectStatuses, ", "))
		return
	}

	p, err := h.store.CreateProject(r.Context(), org.ID, req.Name, req.Description, req.Status, req.DueDate)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "create project")
		return
	}
	jsonResp(w, http.StatusCreated, MutationResponse{
		Success: true,
		Message: "Project created successfully",
		Project: toProjectResponse(p, h.now()),
	})
}

// projectByID handles GET/PATCH/DELETE /api/v1/projects/{id}.
func (h *Handler) projectByID(w http.ResponseWriter, r *http.Request) {
	id, rest, err := idFromPath(r.URL.Path, "/api/v1/projects/")
	if err != nil || rest != "" {
		jsonErr(w, http.StatusNotFound, "project not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := h.store.ProjectByID(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "project not found")
			return
		}
		if err != nil {
			jsonErr(w, http.StatusInternalServerError, "load project")
			return
		}
		jsonResp(w, http.StatusOK, toProjectResponse(p, h.now()))

	case http.MethodPatch:
		h.updateProject(w, r, id)

	case http.MethodDelete:
		err := h.store.DeleteProject(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "project not found")
			return
		}
		if err != nil {
			jsonErr(w, http.StatusInternalServerError, "delete project")
			return
		}
		jsonResp(w, http.StatusOK, MutationResponse{
			Success: true,
			Message: "Project deleted successfully",
		})

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request, id int64) {
	var req ProjectPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name != nil && len(strings.TrimSpace(*req.Name)) < 3 {
		jsonErr(w, http.StatusBadRequest, "name must be at least 3 characters")
		return
	}
	if req.Status != nil && !store.ValidProjectStatus(*req.Status) {
		jsonErr(w, http.StatusBadRequest, "invalid status: must be one of "+strings.Join(store.ProjectStatuses, ", "))
		return
	}

	p, err := h.store.UpdateProject(r.Context(), id, store.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "update project")
		return
	}
	jsonResp(w, http.StatusOK, MutationResponse{
		Success: true,
		Message: "Project updated successfully",
		Project: toProjectResponse(p, h.now()),
	})
}

// stats returns GET /api/v1/stats?org={slug} — org-wide aggregates.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	org, err := h.orgFromRequest(r)
	if err != nil {
		jsonErr(w, http.StatusNotFound, "organization not found")
		return
	}

	st, err := h.store.Stats(r.Context(), org.ID)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "load stats")
		return
	}
	jsonResp(w, http.StatusOK, StatsResponse{
		TotalProjects:         st.TotalProjects,
		ActiveProjects:        st.ActiveProjects,
		CompletedProjects:     st.CompletedProjects,
		TotalTasks:            st.TotalTasks,
		CompletedTasks:        st.CompletedTasks,
		OverallCompletionRate: st.OverallCompletionRate(),
	})
}
