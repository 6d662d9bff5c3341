package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bookColumns = `id, COALESCE(isbn, ''), COALESCE(canonical_isbn, ''), title, unaccent_title, COALESCE(author_first_names, ''), author_last_name, unaccent_author, COALESCE(publisher, ''), classification, collection_id, code, created_at, updated_at`

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.ISBN, &b.CanonicalISBN, &b.Title, &b.UnaccentTitle,
		&b.AuthorFirstNames, &b.AuthorLastName, &b.UnaccentAuthor, &b.Publisher,
		&b.Classification, &b.CollectionID, &b.Code, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// ListBooks returns books matching the accent-insensitive search term.
func (r *Repository) ListBooks(ctx context.Context, search string, limit, offset int) ([]Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books`
	args := []any{}
	if search != "" {
		query += ` WHERE unaccent_title ILIKE $1 OR unaccent_author ILIKE $1 OR code ILIKE $1`
		args = append(args, "%"+Unaccent(search)+"%")
	}
	query += ` ORDER BY unaccent_title`
	if limit > 0 {
		query += ` LIMIT ` + itoaArg(len(args)+1)
		args = append(args, limit)
		query += ` OFFSET ` + itoaArg(len(args)+1)
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func itoaArg(n int) string {
	return "$" + strconv.Itoa(n)
}

// GetBook fetches one book by id.
func (r *Repository) GetBook(ctx context.Context, id int64) (Book, error) {
	b, err := scanBook(r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Book{}, ErrBookNotFound
	}
	return b, err
}

// CreateBook inserts a book.
func (r *Repository) CreateBook(ctx context.Context, b Book) (Book, error) {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	err := r.pool.QueryRow(ctx, `INSERT INTO books (isbn, canonical_isbn, title, unaccent_title, author_first_names, author_last_name, unaccent_author, publisher, classification, collection_id, code, created_at, updated_at)
VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13) RETURNING id`,
		b.ISBN, b.CanonicalISBN, b.Title, b.UnaccentTitle, b.AuthorFirstNames,
		b.AuthorLastName, b.UnaccentAuthor, b.Publisher, b.Classification,
		b.CollectionID, b.Code, b.CreatedAt, b.UpdatedAt).Scan(&b.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Book{}, ErrDuplicateISBN
		}
		return Book{}, err
	}
	return b, nil
}

// UpdateBook rewrites the mutable fields of a book.
func (r *Repository) UpdateBook(ctx context.Context, b Book) error {
	tag, err := r.pool.Exec(ctx, `UPDATE books SET isbn=NULLIF($1, ''), canonical_isbn=NULLIF($2, ''), title=$3, unaccent_title=$4, author_first_names=NULLIF($5, ''), author_last_name=$6, unaccent_author=$7, publisher=NULLIF($8, ''), classification=$9, collection_id=$10, updated_at=$11 WHERE id=$12`,
		b.ISBN, b.CanonicalISBN, b.Title, b.UnaccentTitle, b.AuthorFirstNames,
		b.AuthorLastName, b.UnaccentAuthor, b.Publisher, b.Classification,
		b.CollectionID, time.Now(), b.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

// DeleteBook removes a book and, through cascade, its specimens.
func (r *Repository) DeleteBook(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

// CodeExists reports whether a call code is already taken.
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

// CreateSpecimen inserts a specimen numbered after the book's current copies.
func (r *Repository) CreateSpecimen(ctx context.Context, bookID int64) (Specimen, error) {
	var s Specimen
	err := r.pool.QueryRow(ctx, `INSERT INTO specimens (book_id, number)
SELECT $1, COALESCE(MAX(number), 0) + 1 FROM specimens WHERE book_id = $1
RETURNING id, number, book_id`, bookID).Scan(&s.ID, &s.Number, &s.BookID)
	return s, err
}

// GetSpecimenDetail resolves the specimen with its book and classification.
func (r *Repository) GetSpecimenDetail(ctx context.Context, id int64) (SpecimenDetail, error) {
	var d SpecimenDetail
	var abbr, clsName, clsLocation *string
	err := r.pool.QueryRow(ctx, `SELECT s.id, s.number, s.book_id, `+prefixedBookColumns("b")+`, c.abbreviation, c.name, c.location
FROM specimens s
JOIN books b ON b.id = s.book_id
LEFT JOIN classifications c ON c.abbreviation = b.classification
WHERE s.id = $1`, id).Scan(
		&d.Specimen.ID, &d.Specimen.Number, &d.Specimen.BookID,
		&d.Book.ID, &d.Book.ISBN, &d.Book.CanonicalISBN, &d.Book.Title, &d.Book.UnaccentTitle,
		&d.Book.AuthorFirstNames, &d.Book.AuthorLastName, &d.Book.UnaccentAuthor, &d.Book.Publisher,
		&d.Book.Classification, &d.Book.CollectionID, &d.Book.Code, &d.Book.CreatedAt, &d.Book.UpdatedAt,
		&abbr, &clsName, &clsLocation)
	if errors.Is(err, pgx.ErrNoRows) {
		return SpecimenDetail{}, ErrSpecimenNotFound
	}
	if err != nil {
		return SpecimenDetail{}, err
	}
	if abbr != nil {
		d.Classification.Abbreviation = *abbr
		if clsName != nil {
			d.Classification.Name = *clsName
		}
		if clsLocation != nil {
			d.Classification.LocationName = *clsLocation
		}
	}
	return d, nil
}

// ListSpecimens returns the specimens of a book.
func (r *Repository) ListSpecimens(ctx context.Context, bookID int64) ([]Specimen, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, book_id FROM specimens WHERE book_id = $1 ORDER BY number`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var specimens []Specimen
	for rows.Next() {
		var s Specimen
		if err := rows.Scan(&s.ID, &s.Number, &s.BookID); err != nil {
			return nil, err
		}
		specimens = append(specimens, s)
	}
	return specimens, rows.Err()
}

// DeleteSpecimen removes a specimen. Loan history keeps a null reference.
func (r *Repository) DeleteSpecimen(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM specimens WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSpecimenNotFound
	}
	return nil
}

// ListLocations returns all shelf locations.
func (r *Repository) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, COALESCE(color, '') FROM locations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.Name, &l.Color); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// UpsertLocation creates or updates a location.
func (r *Repository) UpsertLocation(ctx context.Context, l Location) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO locations (name, color) VALUES ($1, NULLIF($2, ''))
ON CONFLICT (name) DO UPDATE SET color = EXCLUDED.color`, l.Name, l.Color)
	return err
}

// ListClassifications returns all classifications.
func (r *Repository) ListClassifications(ctx context.Context) ([]Classification, error) {
	rows, err := r.pool.Query(ctx, `SELECT abbreviation, COALESCE(name, ''), location FROM classifications ORDER BY abbreviation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var classifications []Classification
	for rows.Next() {
		var c Classification
		if err := rows.Scan(&c.Abbreviation, &c.Name, &c.LocationName); err != nil {
			return nil, err
		}
		classifications = append(classifications, c)
	}
	return classifications, rows.Err()
}

// UpsertClassification creates or updates a classification.
func (r *Repository) UpsertClassification(ctx context.Context, c Classification) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO classifications (abbreviation, name, location) VALUES ($1, NULLIF($2, ''), $3)
ON CONFLICT (abbreviation) DO UPDATE SET name = EXCLUDED.name, location = EXCLUDED.location`,
		c.Abbreviation, c.Name, c.LocationName)
	return err
}

// ListCollections returns all collections.
func (r *Repository) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var collections []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// CreateCollection inserts a collection.
func (r *Repository) CreateCollection(ctx context.Context, name string) (Collection, error) {
	var c Collection
	c.Name = name
	err := r.pool.QueryRow(ctx, `INSERT INTO collections (name) VALUES ($1) RETURNING id`, name).Scan(&c.ID)
	return c, err
}

func prefixedBookColumns(a string) string {
	return a + `.id, COALESCE(` + a + `.isbn, ''), COALESCE(` + a + `.canonical_isbn, ''), ` + a + `.title, ` + a + `.unaccent_title, COALESCE(` + a + `.author_first_names, ''), ` + a + `.author_last_name, ` + a + `.unaccent_author, COALESCE(` + a + `.publisher, ''), ` + a + `.classification, ` + a + `.collection_id, ` + a + `.code, ` + a + `.created_at, ` + a + `.updated_at`
}
