package profiles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for users and groups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUser fetches one user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, COALESCE(first_name, ''), last_name, email, COALESCE(grade, '') FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Grade)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// ListUsers returns all users ordered by name.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, COALESCE(first_name, ''), last_name, email, COALESCE(grade, '') FROM users ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Grade); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateUser inserts a user and its group memberships.
func (r *Repository) CreateUser(ctx context.Context, input UserInput) (User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return User{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO users (first_name, last_name, email, grade) VALUES (NULLIF($1, ''), $2, $3, NULLIF($4, '')) RETURNING id`,
		input.FirstName, input.LastName, input.Email, input.Grade).Scan(&id)
	if err != nil {
		return User{}, err
	}
	for _, groupID := range input.GroupIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, groupID); err != nil {
			return User{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return User{ID: id, FirstName: input.FirstName, LastName: input.LastName, Email: input.Email, Grade: input.Grade}, nil
}

// UserGroupIDs returns the ids of the groups a user belongs to.
func (r *Repository) UserGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT group_id FROM user_groups WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListGroups returns all groups.
func (r *Repository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CreateGroup inserts a group.
func (r *Repository) CreateGroup(ctx context.Context, name string) (Group, error) {
	var g Group
	g.Name = name
	err := r.pool.QueryRow(ctx, `INSERT INTO groups (name) VALUES ($1) RETURNING id`, name).Scan(&g.ID)
	return g, err
}

// RecipientEmails returns the user's primary address plus additional ones
// that opted into notifications.
func (r *Repository) RecipientEmails(ctx context.Context, userID int64) ([]string, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	emails := []string{u.Email}

	rows, err := r.pool.Query(ctx, `SELECT email FROM additional_emails WHERE user_id = $1 AND receive_notifications`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// AddEmail attaches an additional address to a user.
func (r *Repository) AddEmail(ctx context.Context, e AdditionalEmail) (AdditionalEmail, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO additional_emails (user_id, email, receive_notifications) VALUES ($1, $2, $3) RETURNING id`,
		e.UserID, e.Email, e.ReceiveNotifications).Scan(&e.ID)
	return e, err
}
