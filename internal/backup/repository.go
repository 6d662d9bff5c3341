package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists backup records in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const backupColumns = `id, name, include_db, include_media, COALESCE(db_dump_path, ''), COALESCE(media_dump_path, ''), created_at`

func scanBackup(row pgx.Row) (Backup, error) {
	var b Backup
	err := row.Scan(&b.ID, &b.Name, &b.IncludeDB, &b.IncludeMedia,
		&b.DBDumpPath, &b.MediaDumpPath, &b.CreatedAt)
	return b, err
}

// List returns every backup, newest first.
func (r *Repository) List(ctx context.Context) ([]Backup, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+backupColumns+` FROM backups ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	defer rows.Close()
	var out []Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("backup: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Get fetches one backup.
func (r *Repository) Get(ctx context.Context, id int64) (Backup, error) {
	b, err := scanBackup(r.pool.QueryRow(ctx, `SELECT `+backupColumns+` FROM backups WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Backup{}, ErrBackupNotFound
	}
	if err != nil {
		return Backup{}, fmt.Errorf("backup: get: %w", err)
	}
	return b, nil
}

// NameExists reports whether a backup with the given name was already taken.
func (r *Repository) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM backups WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("backup: name exists: %w", err)
	}
	return exists, nil
}

// Create inserts a backup record.
func (r *Repository) Create(ctx context.Context, b Backup) (Backup, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO backups
(name, include_db, include_media, db_dump_path, media_dump_path, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6) RETURNING id`,
		b.Name, b.IncludeDB, b.IncludeMedia, b.DBDumpPath, b.MediaDumpPath, b.CreatedAt).Scan(&b.ID)
	if err != nil {
		return Backup{}, fmt.Errorf("backup: insert: %w", err)
	}
	return b, nil
}

// Delete removes a backup record.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM backups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("backup: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBackupNotFound
	}
	return nil
}
