package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UserRepository reads the identity directory table. Users are owned by
// the external identity provider; this service only mirrors them.
type UserRepository struct {
	db queryer
}

// NewUserRepository creates a new user repository
func NewUserRepository(db queryer) *UserRepository {
	return &UserRepository{db: db}
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, role, department, active, created_at
		FROM users
		WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Role, &u.Department, &u.Active, &u.CreatedAt)
	if err != nil {
		return nil, rowErr(err, "failed to get user %s", id)
	}
	return u, nil
}

// UpsertUser mirrors a directory user
func (r *UserRepository) UpsertUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, role, department, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    role = EXCLUDED.role,
		    department = EXCLUDED.department,
		    active = EXCLUDED.active
		RETURNING created_at`,
		u.ID, u.Name, u.Role, u.Department, u.Active,
	).Scan(&u.CreatedAt)
	if err != nil {
		return wrapErr(err, "failed to upsert user %s", u.ID)
	}
	return nil
}

// ListUsersByRoles returns the active users holding any of roles
func (r *UserRepository) ListUsersByRoles(ctx context.Context, roles []string) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, role, department, active, created_at
		FROM users
		WHERE active AND upper(role) = ANY($1)
		ORDER BY role, created_at`, pq.Array(upperAll(roles)))
	if err != nil {
		return nil, wrapErr(err, "failed to list users")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.Department, &u.Active, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ResolveAssignee picks the longest-standing active holder of role, in
// department when one is given. It returns nil when nobody qualifies.
func (r *UserRepository) ResolveAssignee(ctx context.Context, role string, department *string) (*uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM users
		WHERE active
		  AND upper(role) = upper($1)
		  AND ($2::text IS NULL OR upper(department) = upper($2::text))
		ORDER BY created_at, id
		LIMIT 1`, role, department)
	if err != nil {
		return nil, wrapErr(err, "failed to resolve assignee for %s", role)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var id uuid.UUID
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to scan assignee: %w", err)
	}
	return &id, nil
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return out
}
