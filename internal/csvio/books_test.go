package csvio

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/librarium/internal/catalog"
)

func TestWriteBooks(t *testing.T) {
	cls := "LIT"
	books := []catalog.Book{
		{ISBN: "9788535902778", Title: "Dom Casmurro", AuthorLastName: "Assis",
			AuthorFirstNames: "Machado de", Classification: &cls, Code: "895 A848d"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBooks(&buf, books))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "isbn,title,author_first_names,author_last_name,publisher,classification,collection_id,code", lines[0])
	assert.Contains(t, lines[1], "Dom Casmurro")
	assert.Contains(t, lines[1], "LIT")
}

func TestReadBooks(t *testing.T) {
	input := strings.Join([]string{
		"title,author_last_name,isbn,collection_id",
		"Dom Casmurro,Assis,9788535902778,2",
		"Quincas Borba,Assis,,",
	}, "\n")

	rows, rowErrs, err := ReadBooks(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 2)
	assert.Equal(t, "Dom Casmurro", rows[0].Input.Title)
	assert.Equal(t, int64(2), rows[0].Input.CollectionID)
	assert.Zero(t, rows[1].Input.CollectionID)
}

func TestReadBooksCollectsRowErrors(t *testing.T) {
	input := strings.Join([]string{
		"title,author_last_name,collection_id",
		"Dom Casmurro,Assis,not-a-number",
		"Quincas Borba,Assis,3",
	}, "\n")

	rows, rowErrs, err := ReadBooks(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 2, rowErrs[0].Line)
	assert.Equal(t, "collection_id", rowErrs[0].Column)
	require.Len(t, rows, 1, "bad row is dropped, good row kept")
	assert.Equal(t, "Quincas Borba", rows[0].Input.Title)
}

func TestReadBooksRequiresHeader(t *testing.T) {
	_, _, err := ReadBooks(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, _, err = ReadBooks(strings.NewReader("isbn,publisher\n1,2"))
	assert.Error(t, err, "title and author_last_name are mandatory columns")
}

type fakeCatalogPort struct {
	books   []catalog.Book
	created []catalog.BookInput
}

func (f *fakeCatalogPort) ListBooks(ctx context.Context, search string, limit, offset int) ([]catalog.Book, error) {
	if offset >= len(f.books) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.books) {
		end = len(f.books)
	}
	return f.books[offset:end], nil
}

func (f *fakeCatalogPort) CreateBook(ctx context.Context, input catalog.BookInput) (catalog.Book, error) {
	f.created = append(f.created, input)
	return catalog.Book{ID: int64(len(f.created)), Title: input.Title}, nil
}

func TestImportBooksAllOrNothingOnValidation(t *testing.T) {
	port := &fakeCatalogPort{}
	svc := NewService(slog.New(slog.DiscardHandler), port)

	// Second row is missing the author.
	input := strings.Join([]string{
		"title,author_last_name",
		"Dom Casmurro,Assis",
		"Quincas Borba,",
	}, "\n")

	report, err := svc.ImportBooks(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Zero(t, report.Imported)
	assert.NotEmpty(t, report.Errors)
	assert.Contains(t, report.ErrorCSV, "Quincas Borba")
	assert.Empty(t, port.created, "invalid file imports nothing")
}

func TestImportBooksHappyPath(t *testing.T) {
	port := &fakeCatalogPort{}
	svc := NewService(slog.New(slog.DiscardHandler), port)

	input := strings.Join([]string{
		"title,author_last_name,isbn",
		"Dom Casmurro,Assis,9788535902778",
		"Quincas Borba,Assis,",
	}, "\n")

	report, err := svc.ImportBooks(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Empty(t, report.Errors)
	assert.Len(t, port.created, 2)
}

func TestImportBooksRejectsBadISBN(t *testing.T) {
	port := &fakeCatalogPort{}
	svc := NewService(slog.New(slog.DiscardHandler), port)

	input := strings.Join([]string{
		"title,author_last_name,isbn",
		"Dom Casmurro,Assis,9788535902779",
	}, "\n")

	report, err := svc.ImportBooks(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Zero(t, report.Imported)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "isbn", report.Errors[0].Column)
}

func TestExportBooksPaginates(t *testing.T) {
	port := &fakeCatalogPort{}
	for i := 0; i < exportPageSize+5; i++ {
		port.books = append(port.books, catalog.Book{Title: "Book", AuthorLastName: "Author"})
	}
	svc := NewService(slog.New(slog.DiscardHandler), port)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportBooks(context.Background(), &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, exportPageSize+6, "header plus every book")
}