package labels

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists page configurations and prints in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const configColumns = `id, COALESCE(name, ''), paper_size, n_rows, n_cols, margin_top, margin_bottom, margin_left, margin_right, horizontal_gap, vertical_gap, font_size`

func scanConfiguration(row pgx.Row) (PageConfiguration, error) {
	var c PageConfiguration
	err := row.Scan(&c.ID, &c.Name, &c.PaperSize, &c.Rows, &c.Cols,
		&c.MarginTop, &c.MarginBottom, &c.MarginLeft, &c.MarginRight,
		&c.HorizontalGap, &c.VerticalGap, &c.FontSize)
	return c, err
}

// ListConfigurations returns every page configuration.
func (r *Repository) ListConfigurations(ctx context.Context) ([]PageConfiguration, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+configColumns+` FROM label_page_configurations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("labels: list configurations: %w", err)
	}
	defer rows.Close()
	var out []PageConfiguration
	for rows.Next() {
		c, err := scanConfiguration(rows)
		if err != nil {
			return nil, fmt.Errorf("labels: scan configuration: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConfiguration fetches one page configuration.
func (r *Repository) GetConfiguration(ctx context.Context, id int64) (PageConfiguration, error) {
	c, err := scanConfiguration(r.pool.QueryRow(ctx, `SELECT `+configColumns+` FROM label_page_configurations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PageConfiguration{}, ErrConfigurationNotFound
	}
	if err != nil {
		return PageConfiguration{}, fmt.Errorf("labels: get configuration: %w", err)
	}
	return c, nil
}

// DefaultConfiguration returns the oldest configuration, or the built-in
// default when none was saved.
func (r *Repository) DefaultConfiguration(ctx context.Context) (PageConfiguration, error) {
	c, err := scanConfiguration(r.pool.QueryRow(ctx, `SELECT ` + configColumns + ` FROM label_page_configurations ORDER BY id LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultPageConfiguration(), nil
	}
	if err != nil {
		return PageConfiguration{}, fmt.Errorf("labels: default configuration: %w", err)
	}
	return c, nil
}

// SaveConfiguration inserts or updates a page configuration.
func (r *Repository) SaveConfiguration(ctx context.Context, c PageConfiguration) (PageConfiguration, error) {
	if c.ID == 0 {
		err := r.pool.QueryRow(ctx, `INSERT INTO label_page_configurations
(name, paper_size, n_rows, n_cols, margin_top, margin_bottom, margin_left, margin_right, horizontal_gap, vertical_gap, font_size)
VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
			c.Name, c.PaperSize, c.Rows, c.Cols, c.MarginTop, c.MarginBottom,
			c.MarginLeft, c.MarginRight, c.HorizontalGap, c.VerticalGap, c.FontSize).Scan(&c.ID)
		if err != nil {
			return PageConfiguration{}, fmt.Errorf("labels: insert configuration: %w", err)
		}
		return c, nil
	}
	tag, err := r.pool.Exec(ctx, `UPDATE label_page_configurations SET
name = NULLIF($2, ''), paper_size = $3, n_rows = $4, n_cols = $5, margin_top = $6, margin_bottom = $7,
margin_left = $8, margin_right = $9, horizontal_gap = $10, vertical_gap = $11, font_size = $12
WHERE id = $1`,
		c.ID, c.Name, c.PaperSize, c.Rows, c.Cols, c.MarginTop, c.MarginBottom,
		c.MarginLeft, c.MarginRight, c.HorizontalGap, c.VerticalGap, c.FontSize)
	if err != nil {
		return PageConfiguration{}, fmt.Errorf("labels: update configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return PageConfiguration{}, ErrConfigurationNotFound
	}
	return c, nil
}

// DeleteConfiguration removes a page configuration.
func (r *Repository) DeleteConfiguration(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM label_page_configurations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("labels: delete configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConfigurationNotFound
	}
	return nil
}

const printColumns = `id, name, configuration_id, specimen_ids, use_color, use_border, include_barcode, use_isbn, COALESCE(file_path, ''), created_at`

func scanPrint(row pgx.Row) (Print, error) {
	var p Print
	err := row.Scan(&p.ID, &p.Name, &p.ConfigurationID, &p.SpecimenIDs,
		&p.Options.UseColor, &p.Options.UseBorder, &p.Options.IncludeBarcode, &p.Options.UseISBN,
		&p.FilePath, &p.CreatedAt)
	return p, err
}

// ListPrints returns every print, newest first.
func (r *Repository) ListPrints(ctx context.Context) ([]Print, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+printColumns+` FROM label_prints ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("labels: list prints: %w", err)
	}
	defer rows.Close()
	var out []Print
	for rows.Next() {
		p, err := scanPrint(rows)
		if err != nil {
			return nil, fmt.Errorf("labels: scan print: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPrint fetches one print.
func (r *Repository) GetPrint(ctx context.Context, id int64) (Print, error) {
	p, err := scanPrint(r.pool.QueryRow(ctx, `SELECT `+printColumns+` FROM label_prints WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Print{}, ErrPrintNotFound
	}
	if err != nil {
		return Print{}, fmt.Errorf("labels: get print: %w", err)
	}
	return p, nil
}

// CreatePrint inserts a print record.
func (r *Repository) CreatePrint(ctx context.Context, p Print) (Print, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO label_prints
(name, configuration_id, specimen_ids, use_color, use_border, include_barcode, use_isbn, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.Name, p.ConfigurationID, p.SpecimenIDs,
		p.Options.UseColor, p.Options.UseBorder, p.Options.IncludeBarcode, p.Options.UseISBN,
		p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return Print{}, fmt.Errorf("labels: insert print: %w", err)
	}
	return p, nil
}

// SetPrintFile records where the rendered PDF was stored.
func (r *Repository) SetPrintFile(ctx context.Context, id int64, path string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE label_prints SET file_path = $2 WHERE id = $1`, id, path)
	if err != nil {
		return fmt.Errorf("labels: set print file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrintNotFound
	}
	return nil
}

// DeletePrint removes a print record.
func (r *Repository) DeletePrint(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM label_prints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("labels: delete print: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrintNotFound
	}
	return nil
}
