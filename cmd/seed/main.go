package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/tracklane/tracklane/internal/store"
)

// Seeds the development database with a demo organization, three projects
// and a handful of tasks. Safe to run repeatedly: existing rows are left
// alone, only missing ones are created.
func main() {
	dbPath := flag.String("db", "tracklane.db", "path to the SQLite database file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	st, err := store.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open store", "db", *dbPath, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if err := seed(ctx, st); err != nil {
		slog.Error("seeding failed", "err", err)
		os.Exit(1)
	}

	orgs, projects, tasks, err := st.Counts(ctx)
	if err != nil {
		slog.Error("counts failed", "err", err)
		os.Exit(1)
	}
	slog.Info("data seeding complete",
		"organizations", orgs, "projects", projects, "tasks", tasks)
}

type seedTask struct {
	title, description, status, assignee string
	due                                  time.Duration // offset from now; 0 means no due date
}

func seed(ctx context.Context, st *store.Store) error {
	org, err := ensureOrg(ctx, st, "Demo Organization", "demo-organization", "demo@example.com")
	if err != nil {
		return err
	}

	now := time.Now()

	redesign, err := ensureProject(ctx, st, org.ID, "Website Redesign",
		"Complete redesign of company website with modern UI/UX", "ACTIVE", now.AddDate(0, 0, 30))
	if err != nil {
		return err
	}
	mobile, err := ensureProject(ctx, st, org.ID, "Mobile App Development",
		"Develop iOS and Android mobile application", "ACTIVE", now.AddDate(0, 0, 60))
	if err != nil {
		return err
	}
	if _, err := ensureProject(ctx, st, org.ID, "API Integration",
		"Integrate third-party APIs for payment processing", "ON_HOLD", now.AddDate(0, 0, 45)); err != nil {
		return err
	}

	redesignTasks := []seedTask{
		{"Design mockups", "Create initial design mockups for homepage", "DONE", "designer@example.com", -5 * 24 * time.Hour},
		{"Implement header component", "Build responsive header with navigation", "IN_PROGRESS", "developer@example.com", 3 * 24 * time.Hour},
		{"Setup CI/CD pipeline", "Configure automated testing and deployment", "TODO", "devops@example.com", 10 * 24 * time.Hour},
		{"Write documentation", "Document API endpoints and usage", "TODO", "tech-writer@example.com", 15 * 24 * time.Hour},
	}
	for _, ts := range redesignTasks {
		if err := ensureTask(ctx, st, redesign.ID, ts, now); err != nil {
			return err
		}
	}

	mobileTasks := []seedTask{
		{"Setup React Native project", "Initialize React Native project structure", "DONE", "mobile-dev@example.com", 0},
		{"Implement authentication", "Add login and signup screens", "IN_PROGRESS", "mobile-dev@example.com", 0},
		{"Design app icons", "Create app icons for iOS and Android", "TODO", "designer@example.com", 0},
	}
	for _, ts := range mobileTasks {
		if err := ensureTask(ctx, st, mobile.ID, ts, now); err != nil {
			return err
		}
	}

	return ensureComment(ctx, st, redesign.ID, "Great progress! Keep it up.", "manager@example.com")
}

func ensureOrg(ctx context.Context, st *store.Store, name, slug, email string) (*store.Organization, error) {
	org, err := st.OrgBySlug(ctx, slug)
	if err == nil {
		slog.Info("organization already exists", "slug", slug)
		return org, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	org, err = st.CreateOrg(ctx, name, slug, email)
	if err != nil {
		return nil, err
	}
	slog.Info("created organization", "name", name, "slug", slug)
	return org, nil
}

func ensureProject(ctx context.Context, st *store.Store, orgID int64, name, desc, status string, due time.Time) (*store.Project, error) {
	existing, err := st.ListProjects(ctx, orgID, "")
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.Name == name {
			return p, nil
		}
	}
	p, err := st.CreateProject(ctx, orgID, name, desc, status, &due)
	if err != nil {
		return nil, err
	}
	slog.Info("created project", "name", name, "status", status)
	return p, nil
}

func ensureTask(ctx context.Context, st *store.Store, projectID int64, ts seedTask, now time.Time) error {
	existing, err := st.ListTasks(ctx, store.TaskFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	for _, t := range existing {
		if t.Title == ts.title {
			return nil
		}
	}
	var due *time.Time
	if ts.due != 0 {
		d := now.Add(ts.due)
		due = &d
	}
	if _, err := st.CreateTask(ctx, projectID, ts.title, ts.description, ts.status, ts.assignee, due); err != nil {
		return err
	}
	slog.Info("created task", "title", ts.title, "status", ts.status)
	return nil
}

func ensureComment(ctx context.Context, st *store.Store, projectID int64, content, author string) error {
	tasks, err := st.ListTasks(ctx, store.TaskFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}
	first := tasks[0]
	comments, err := st.ListComments(ctx, first.ID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if c.Content == content {
			return nil
		}
	}
	if _, err := st.CreateComment(ctx, first.ID, content, author); err != nil {
		return err
	}
	slog.Info("added comment", "task", first.Title)
	return nil
}
