package csvio

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/librarium/librarium/internal/catalog"
)

// CatalogPort abstracts the catalog operations import and export need.
type CatalogPort interface {
	ListBooks(ctx context.Context, search string, limit, offset int) ([]catalog.Book, error)
	CreateBook(ctx context.Context, input catalog.BookInput) (catalog.Book, error)
}

// ImportReport summarises one import run. RunID correlates the report with
// the server logs. When Errors is non-empty after validation nothing was
// imported and ErrorCSV echoes the offending rows.
type ImportReport struct {
	RunID    string     `json:"run_id"`
	Imported int        `json:"imported"`
	Errors   []RowError `json:"errors,omitempty"`
	ErrorCSV string     `json:"error_csv,omitempty"`
}

// Service implements book export and import.
type Service struct {
	logger   *slog.Logger
	catalog  CatalogPort
	validate *validator.Validate
}

// NewService builds a Service.
func NewService(logger *slog.Logger, cat CatalogPort) *Service {
	return &Service{logger: logger, catalog: cat, validate: validator.New()}
}

const exportPageSize = 200

// ExportBooks streams the whole catalog as CSV.
func (s *Service) ExportBooks(ctx context.Context, w io.Writer) error {
	var books []catalog.Book
	for offset := 0; ; offset += exportPageSize {
		page, err := s.catalog.ListBooks(ctx, "", exportPageSize, offset)
		if err != nil {
			return err
		}
		books = append(books, page...)
		if len(page) < exportPageSize {
			break
		}
	}
	return WriteBooks(w, books)
}

// ImportBooks validates the whole file before touching the catalog: any
// invalid row rejects the import and produces an error report, so a partial
// file never half-imports.
func (s *Service) ImportBooks(ctx context.Context, r io.Reader) (ImportReport, error) {
	runID := uuid.NewString()
	rows, rowErrs, err := ReadBooks(r)
	if err != nil {
		return ImportReport{}, err
	}

	for _, row := range rows {
		if err := s.validate.Struct(row.Input); err != nil {
			rowErrs = append(rowErrs, RowError{Line: row.Line, Reason: err.Error()})
			continue
		}
		if row.Input.ISBN != "" {
			if _, err := catalog.CanonicalISBN(row.Input.ISBN); err != nil {
				rowErrs = append(rowErrs, RowError{Line: row.Line, Column: "isbn", Reason: "invalid isbn"})
			}
		}
	}

	if len(rowErrs) > 0 {
		var buf bytes.Buffer
		if err := WriteErrorReport(&buf, rows, rowErrs); err != nil {
			return ImportReport{}, err
		}
		s.logger.Warn("book import rejected",
			slog.String("run_id", runID),
			slog.Int("rows", len(rows)),
			slog.Int("errors", len(rowErrs)))
		return ImportReport{RunID: runID, Errors: rowErrs, ErrorCSV: buf.String()}, nil
	}

	report := ImportReport{RunID: runID}
	for _, row := range rows {
		if _, err := s.catalog.CreateBook(ctx, row.Input); err != nil {
			rowErrs = append(rowErrs, RowError{Line: row.Line, Reason: err.Error()})
			continue
		}
		report.Imported++
	}
	if len(rowErrs) > 0 {
		var buf bytes.Buffer
		if err := WriteErrorReport(&buf, rows, rowErrs); err != nil {
			return ImportReport{}, err
		}
		report.Errors = rowErrs
		report.ErrorCSV = buf.String()
	}
	s.logger.Info("book import finished",
		slog.String("run_id", runID),
		slog.Int("imported", report.Imported),
		slog.Int("errors", len(report.Errors)))
	return report, nil
}
