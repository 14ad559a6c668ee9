// Package store persists the tracker's relational data — organizations,
// projects, tasks, and task comments — in SQLite. It owns the schema
// (migrations.sql, applied on Open) and exposes plain CRUD operations; all
// derived values the API reports (comment counts, completion rates) are
// computed in-query so callers get consistent reads.
package store
