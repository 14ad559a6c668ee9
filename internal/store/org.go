package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Organization is one tenant. Projects and everything beneath them hang off
// an organization and are scoped by its slug at the API layer.
type Organization struct {
	ID           int64
	Name         string
	Slug         string
	ContactEmail string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateOrg inserts an organization. When slug is empty it is derived from
// the name. Name and slug are unique across the database.
func (s *Store) CreateOrg(ctx context.Context, name, slug, contactEmail string) (*Organization, error) {
	if slug == "" {
		slug = Slugify(name)
	}
	now := s.now()
	ts := encodeTime(now)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations(name, slug, contact_email, created_at, updated_at)
		VALUES(?,?,?,?,?)`,
		name, slug, contactEmail, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("store: create org: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create org id: %w", err)
	}
	return &Organization{
		ID:           id,
		Name:         name,
		Slug:         slug,
		ContactEmail: contactEmail,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// OrgBySlug returns the organization with the given slug, or ErrNotFound.
func (s *Store) OrgBySlug(ctx context.Context, slug string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, contact_email, created_at, updated_at
		FROM organizations WHERE slug = ?`, slug)
	return scanOrg(row)
}

// ListOrgs returns all organizations, newest first.
func (s *Store) ListOrgs(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, contact_email, created_at, updated_at
		FROM organizations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list orgs: %w", err)
	}
	defer rows.Close()

	var out []*Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrg(row rowScanner) (*Organization, error) {
	var o Organization
	var created, updated string
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.ContactEmail, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan org: %w", err)
	}
	o.CreatedAt = decodeTime(created)
	o.UpdatedAt = decodeTime(updated)
	return &o, nil
}

// Slugify lowercases name and replaces runs of non-alphanumeric characters
// with single dashes, the way the org slug is derived when none is supplied.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
