package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/tracklane/tracklane/internal/auth"
	"github.com/tracklane/tracklane/internal/bridge"
	"github.com/tracklane/tracklane/internal/store"
)

// HubStats is the slice of the ws hub the health endpoint reads.
type HubStats interface {
	Count() int
	RoomCount() int
}

// Handler is the HTTP handler for all /api/v1/* endpoints. Mutations publish
// task change events through pub after the write commits.
type Handler struct {
	store *store.Store
	pub   bridge.Publisher
	hub   HubStats
	mux   *http.ServeMux
	now   func() time.Time // injectable for deterministic tests
}

// New creates a Handler wired to the given store and registers all routes.
// pub may be nil (events are discarded); hub may be nil (live counts read 0).
func New(st *store.Store, pub bridge.Publisher, hub HubStats) http.Handler {
	if pub == nil {
		pub = bridge.Nop{}
	}
	h := &Handler{store: st, pub: pub, hub: hub, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/orgs", h.orgs)
	h.mux.HandleFunc("/api/v1/orgs/", h.orgBySlug) // subtree — extracts {slug}
	h.mux.HandleFunc("/api/v1/projects", h.projects)
	h.mux.HandleFunc("/api/v1/projects/", h.projectByID) // subtree — extracts {id}
	h.mux.HandleFunc("/api/v1/stats", h.stats)
	h.mux.HandleFunc("/api/v1/tasks", h.tasks)
	h.mux.HandleFunc("/api/v1/tasks/", h.taskSubtree) // {id}, {id}/status, {id}/comments

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- /api/v1/health ---------------------------------------------------------

// health returns record counts plus live WebSocket connection counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	orgs, projects, tasks, err := h.store.Counts(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "counts unavailable")
		return
	}

	resp := HealthResponse{
		Status:        "ok",
		Organizations: orgs,
		Projects:      projects,
		Tasks:         tasks,
	}
	if h.hub != nil {
		resp.LiveConnections = h.hub.Count()
		resp.LiveRooms = h.hub.RoomCount()
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- /api/v1/orgs -----------------------------------------------------------

func (h *Handler) orgs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listOrgs(w, r)
	case http.MethodPost:
		h.createOrg(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) listOrgs(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.store.ListOrgs(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "list organizations")
		return
	}
	out := make([]*OrgResponse, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, toOrgResponse(o))
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) createOrg(w http.ResponseWriter, r *http.Request) {
	var req OrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(strings.TrimSpace(req.Name)) < 3 {
		jsonErr(w, http.StatusBadRequest, "name must be at least 3 characters")
		return
	}
	if !validEmail(req.ContactEmail) {
		jsonErr(w, http.StatusBadRequest, "contact_email is not a valid email address")
		return
	}

	org, err := h.store.CreateOrg(r.Context(), req.Name, req.Slug, req.ContactEmail)
	if err != nil {
		jsonErr(w, http.StatusConflict, "organization name or slug already exists")
		return
	}
	jsonResp(w, http.StatusCreated, MutationResponse{
		Success: true,
		Message: "Organization created successfully",
		Org:     toOrgResponse(org),
	})
}

// orgBySlug returns GET /api/v1/orgs/{slug}.
func (h *Handler) orgBySlug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/orgs/"), "/")
	if slug == "" {
		h.listOrgs(w, r)
		return
	}

	org, err := h.store.OrgBySlug(r.Context(), slug)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "organization not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "load organization")
		return
	}
	jsonResp(w, http.StatusOK, toOrgResponse(org))
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// orgFromRequest resolves the organization scope: the auth middleware's
// resolution wins, then the explicit ?org= query parameter.
func (h *Handler) orgFromRequest(r *http.Request) (*store.Organization, error) {
	if org := auth.Organization(r); org != nil {
		return org, nil
	}
	slug := r.URL.Query().Get("org")
	if slug == "" {
		return nil, store.ErrNotFound
	}
	return h.store.OrgBySlug(r.Context(), slug)
}

// idFromPath parses "{id}" or "{id}/{rest}" out of path after prefix.
func idFromPath(path, prefix string) (id int64, rest string, err error) {
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	head := tail
	if i := strings.IndexByte(tail, '/'); i >= 0 {
		head, rest = tail[:i], tail[i+1:]
	}
	id, err = strconv.ParseInt(head, 10, 64)
	return id, rest, err
}

// publishTask hands a task change event to the bridge, keyed by the task's
// project. Fire-and-forget: the mutation response never depends on it.
func (h *Handler) publishTask(projectID int64, ev taskEvent) {
	h.pub.PublishTaskEvent(strconv.FormatInt(projectID, 10), ev)
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}
