// Package api implements the HTTP query/mutation API for tracklane-server.
//
// New(store, publisher, hub) returns an http.Handler that serves:
//
//	GET    /api/v1/health               — record counts + live socket counts
//	GET    /api/v1/orgs                 — all organizations
//	POST   /api/v1/orgs                 — create an organization
//	GET    /api/v1/orgs/{slug}          — single organization; 404 if unknown
//	GET    /api/v1/projects?org={slug}  — an organization's projects (&status=)
//	POST   /api/v1/projects             — create a project
//	GET    /api/v1/projects/{id}        — single project
//	PATCH  /api/v1/projects/{id}        — partial update
//	DELETE /api/v1/projects/{id}        — delete (cascades)
//	GET    /api/v1/stats?org={slug}     — org-wide project/task aggregates
//	GET    /api/v1/tasks?project_id=    — a project's tasks (&status=&assignee=)
//	POST   /api/v1/tasks                — create a task (appended to the board)
//	GET    /api/v1/tasks/{id}           — single task
//	PATCH  /api/v1/tasks/{id}           — partial update
//	DELETE /api/v1/tasks/{id}           — delete (cascades)
//	POST   /api/v1/tasks/{id}/status    — drag-and-drop fast path (status+position)
//	GET    /api/v1/tasks/{id}/comments  — task comments, newest first
//	POST   /api/v1/tasks/{id}/comments  — add a comment
//
// All endpoints respond with Content-Type: application/json and return 405
// for unsupported methods. Mutations answer with a {success, message, …}
// envelope. Every task-affecting mutation publishes a task change event to
// the project's room through the bridge AFTER the write commits; publishing
// is best-effort and never fails the mutation.
//
// The organization scope comes from the explicit org parameter or from the
// X-Organization-Slug header resolved by the auth middleware.
package api
