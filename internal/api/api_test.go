package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/tracklane/tracklane/internal/api"
	"github.com/tracklane/tracklane/internal/store"
)

// --- test helpers -----------------------------------------------------------

// recordingPublisher captures every task event the handlers publish.
type recordingPublisher struct {
	keys     []string
	payloads []map[string]any
}

func (p *recordingPublisher) PublishTaskEvent(projectKey string, payload any) {
	raw, _ := json.Marshal(payload)
	var m map[string]any
	json.Unmarshal(raw, &m) //nolint:errcheck
	p.keys = append(p.keys, projectKey)
	p.payloads = append(p.payloads, m)
}

type fixture struct {
	handler http.Handler
	store   *store.Store
	pub     *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pub := &recordingPublisher{}
	return &fixture{handler: api.New(st, pub, nil), store: st, pub: pub}
}

// seedProject creates an org and one project, returning the project.
func (f *fixture) seedProject(t *testing.T) *store.Project {
	t.Helper()
	ctx := context.Background()
	org, err := f.store.CreateOrg(ctx, "Demo Organization", "", "demo@example.com")
	if err != nil {
		t.Fatalf("CreateOrg: %v", err)
	}
	p, err := f.store.CreateProject(ctx, org.ID, "Website Redesign", "", "ACTIVE", nil)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func (f *fixture) seedTask(t *testing.T) *store.Task {
	t.Helper()
	p := f.seedProject(t)
	task, err := f.store.CreateTask(context.Background(), p.ID, "Draft homepage", "", "TODO", "", nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t)

	rr := do(t, f.handler, http.MethodGet, "/api/v1/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status field: got %v, want ok", resp["status"])
	}
	if resp["organizations"].(float64) != 1 || resp["tasks"].(float64) != 1 {
		t.Errorf("counts: got %v orgs, %v tasks", resp["organizations"], resp["tasks"])
	}
	if resp["live_connections"].(float64) != 0 {
		t.Errorf("live_connections without hub: got %v, want 0", resp["live_connections"])
	}
}

// --- /api/v1/orgs -----------------------------------------------------------

func TestCreateOrg(t *testing.T) {
	f := newFixture(t)
	rr := do(t, f.handler, http.MethodPost, "/api/v1/orgs",
		`{"name":"Demo Organization","contact_email":"demo@example.com"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["success"] != true {
		t.Error("success: got false, want true")
	}
	org := resp["org"].(map[string]interface{})
	if org["slug"] != "demo-organization" {
		t.Errorf("slug: got %v, want demo-organization", org["slug"])
	}
}

func TestCreateOrg_Validation(t *testing.T) {
	f := newFixture(t)

	rr := do(t, f.handler, http.MethodPost, "/api/v1/orgs", `{"name":"ab","contact_email":"a@example.com"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("short name: got %d, want 400", rr.Code)
	}
	rr = do(t, f.handler, http.MethodPost, "/api/v1/orgs", `{"name":"Valid Name","contact_email":"nope"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad email: got %d, want 400", rr.Code)
	}
	rr = do(t, f.handler, http.MethodPost, "/api/v1/orgs", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad body: got %d, want 400", rr.Code)
	}
}

func TestOrgBySlug_NotFound(t *testing.T) {
	f := newFixture(t)
	rr := do(t, f.handler, http.MethodGet, "/api/v1/orgs/ghost", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

// --- /api/v1/projects -------------------------------------------------------

func TestListProjects_ByOrg(t *testing.T) {
	f := newFixture(t)
	f.seedProject(t)

	rr := do(t, f.handler, http.MethodGet, "/api/v1/projects?org=demo-organization", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var projects []map[string]interface{}
	decode(t, rr, &projects)
	if len(projects) != 1 {
		t.Fatalf("projects: got %d, want 1", len(projects))
	}
	if projects[0]["name"] != "Website Redesign" {
		t.Errorf("name: got %v", projects[0]["name"])
	}
}

func TestListProjects_UnknownOrg(t *testing.T) {
	f := newFixture(t)
	rr := do(t, f.handler, http.MethodGet, "/api/v1/projects?org=ghost", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestCreateProject_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	f.seedProject(t)

	rr := do(t, f.handler, http.MethodPost, "/api/v1/projects?org=demo-organization",
		`{"name":"Another Project","status":"NOT_A_STATUS"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seedProject(t)

	rr := do(t, f.handler, http.MethodPost, "/api/v1/projects?org=demo-organization",
		`{"name":"Mobile App Development","description":"iOS and Android"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d, want 201 (body: %s)", rr.Code, rr.Body.String())
	}
	var created map[string]interface{}
	decode(t, rr, &created)
	id := int64(created["project"].(map[string]interface{})["id"].(float64))

	rr = do(t, f.handler, http.MethodPatch,
		"/api/v1/projects/"+itoa(id), `{"status":"ON_HOLD"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var patched map[string]interface{}
	decode(t, rr, &patched)
	if patched["project"].(map[string]interface{})["status"] != "ON_HOLD" {
		t.Error("patch did not change status")
	}

	rr = do(t, f.handler, http.MethodDelete, "/api/v1/projects/"+itoa(id), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: got %d, want 200", rr.Code)
	}
	rr = do(t, f.handler, http.MethodGet, "/api/v1/projects/"+itoa(id), "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", rr.Code)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t)
	ctx := context.Background()
	f.store.CreateTask(ctx, p.ID, "Task one", "", "DONE", "", nil)
	f.store.CreateTask(ctx, p.ID, "Task two", "", "TODO", "", nil)

	rr := do(t, f.handler, http.MethodGet, "/api/v1/stats?org=demo-organization", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["total_tasks"].(float64) != 2 || resp["completed_tasks"].(float64) != 1 {
		t.Errorf("tasks: got %v/%v, want 2/1", resp["total_tasks"], resp["completed_tasks"])
	}
	if resp["overall_completion_rate"].(float64) != 50.0 {
		t.Errorf("rate: got %v, want 50", resp["overall_completion_rate"])
	}
}

// --- /api/v1/tasks ----------------------------------------------------------

func TestCreateTask_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t)

	rr := do(t, f.handler, http.MethodPost, "/api/v1/tasks",
		`{"project_id":`+itoa(p.ID)+`,"title":"Draft homepage","status":"TODO"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rr.Code, rr.Body.String())
	}

	if len(f.pub.keys) != 1 {
		t.Fatalf("published events: got %d, want 1", len(f.pub.keys))
	}
	if f.pub.keys[0] != itoa(p.ID) {
		t.Errorf("room key: got %q, want %q", f.pub.keys[0], itoa(p.ID))
	}
	ev := f.pub.payloads[0]
	if ev["action"] != "created" || ev["status"] != "TODO" {
		t.Errorf("event: got %v", ev)
	}
}

func TestUpdateTaskStatus_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(t)

	rr := do(t, f.handler, http.MethodPost,
		"/api/v1/tasks/"+itoa(task.ID)+"/status", `{"status":"DONE","position":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	got := resp["task"].(map[string]interface{})
	if got["status"] != "DONE" || got["position"].(float64) != 3 {
		t.Errorf("task: got status %v position %v", got["status"], got["position"])
	}

	ev := f.pub.payloads[len(f.pub.payloads)-1]
	if ev["action"] != "updated" || ev["status"] != "DONE" {
		t.Errorf("event: got %v", ev)
	}
}

func TestUpdateTaskStatus_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(t)

	rr := do(t, f.handler, http.MethodPost,
		"/api/v1/tasks/"+itoa(task.ID)+"/status", `{"status":"SHIPPED"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
	if len(f.pub.keys) != 0 {
		t.Errorf("published events on failed mutation: got %d, want 0", len(f.pub.keys))
	}
}

func TestDeleteTask_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(t)

	rr := do(t, f.handler, http.MethodDelete, "/api/v1/tasks/"+itoa(task.ID), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	ev := f.pub.payloads[len(f.pub.payloads)-1]
	if ev["action"] != "deleted" || ev["task_id"].(float64) != float64(task.ID) {
		t.Errorf("event: got %v", ev)
	}
}

func TestTaskComments_PostAndList(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(t)

	rr := do(t, f.handler, http.MethodPost,
		"/api/v1/tasks/"+itoa(task.ID)+"/comments",
		`{"content":"Looks good to me","author_email":"alice@example.com"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("post: got %d, want 201 (body: %s)", rr.Code, rr.Body.String())
	}
	ev := f.pub.payloads[len(f.pub.payloads)-1]
	if ev["action"] != "commented" {
		t.Errorf("event action: got %v, want commented", ev["action"])
	}

	rr = do(t, f.handler, http.MethodGet, "/api/v1/tasks/"+itoa(task.ID)+"/comments", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: got %d, want 200", rr.Code)
	}
	var comments []map[string]interface{}
	decode(t, rr, &comments)
	if len(comments) != 1 || comments[0]["content"] != "Looks good to me" {
		t.Errorf("comments: got %v", comments)
	}
}

func TestTaskComments_Validation(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(t)

	rr := do(t, f.handler, http.MethodPost,
		"/api/v1/tasks/"+itoa(task.ID)+"/comments", `{"content":"  ","author_email":"a@example.com"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty content: got %d, want 400", rr.Code)
	}
}

func TestTask_NotFound(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{
		"/api/v1/tasks/9999",
		"/api/v1/tasks/9999/comments",
		"/api/v1/tasks/not-a-number",
	} {
		rr := do(t, f.handler, http.MethodGet, path, "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, rr.Code)
		}
	}
}

func TestListTasks_StatusFilter(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t)
	ctx := context.Background()
	f.store.CreateTask(ctx, p.ID, "Task one", "", "TODO", "", nil)
	f.store.CreateTask(ctx, p.ID, "Task two", "", "DONE", "", nil)

	rr := do(t, f.handler, http.MethodGet,
		"/api/v1/tasks?project_id="+itoa(p.ID)+"&status=TODO", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var tasks []map[string]interface{}
	decode(t, rr, &tasks)
	if len(tasks) != 1 {
		t.Errorf("tasks: got %d, want 1", len(tasks))
	}
}

// A store failure that is not "no such row" must surface as a 500, never be
// treated as if the project existed.
func TestTasks_StoreFailure_Returns500(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t)
	f.store.Close()

	rr := do(t, f.handler, http.MethodGet, "/api/v1/tasks?project_id="+itoa(p.ID), "")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("list with closed store: got %d, want 500", rr.Code)
	}

	rr = do(t, f.handler, http.MethodPost, "/api/v1/tasks",
		`{"project_id":`+itoa(p.ID)+`,"title":"Draft homepage"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("create with closed store: got %d, want 500", rr.Code)
	}
	if len(f.pub.keys) != 0 {
		t.Errorf("published events on failed mutation: got %d, want 0", len(f.pub.keys))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	cases := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/health"},
		{http.MethodDelete, "/api/v1/orgs"},
		{http.MethodPut, "/api/v1/projects"},
		{http.MethodPut, "/api/v1/tasks"},
	}
	for _, c := range cases {
		rr := do(t, f.handler, c.method, c.path, "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: got %d, want 405", c.method, c.path, rr.Code)
		}
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
