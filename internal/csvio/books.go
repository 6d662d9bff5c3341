package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/librarium/librarium/internal/catalog"
)

// The book CSV layout. Import accepts the columns in any order and ignores
// unknown ones; export always writes this order.
var bookHeader = []string{
	"isbn",
	"title",
	"author_first_names",
	"author_last_name",
	"publisher",
	"classification",
	"collection_id",
	"code",
}

// ErrEmptyFile indicates a CSV without a header row.
var ErrEmptyFile = errors.New("csvio: empty file")

// Row is one parsed import line, kept verbatim for the error report.
type Row struct {
	Line   int
	Fields map[string]string
	Input  catalog.BookInput
}

// RowError ties a validation or insert failure to its source line.
type RowError struct {
	Line   int    `json:"line"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

// WriteBooks serialises books to CSV.
func WriteBooks(w io.Writer, books []catalog.Book) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(bookHeader); err != nil {
		return err
	}
	for _, b := range books {
		record := []string{
			b.ISBN,
			b.Title,
			b.AuthorFirstNames,
			b.AuthorLastName,
			b.Publisher,
			"",
			"",
			b.Code,
		}
		if b.Classification != nil {
			record[5] = *b.Classification
		}
		if b.CollectionID != nil {
			record[6] = strconv.FormatInt(*b.CollectionID, 10)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadBooks parses an import file into rows. Syntactic problems (missing
// required columns, malformed numbers) surface as row errors; the reader
// itself only fails on unreadable CSV.
func ReadBooks(r io.Reader) ([]Row, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csvio: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := index["title"]; !ok {
		return nil, nil, errors.New("csvio: missing required column title")
	}
	if _, ok := index["author_last_name"]; !ok {
		return nil, nil, errors.New("csvio: missing required column author_last_name")
	}

	var rows []Row
	var rowErrs []RowError
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: err.Error()})
			continue
		}

		fields := make(map[string]string, len(index))
		for name, i := range index {
			if i < len(record) {
				fields[name] = strings.TrimSpace(record[i])
			}
		}
		row := Row{
			Line:   line,
			Fields: fields,
			Input: catalog.BookInput{
				ISBN:             fields["isbn"],
				Title:            fields["title"],
				AuthorFirstNames: fields["author_first_names"],
				AuthorLastName:   fields["author_last_name"],
				Publisher:        fields["publisher"],
				Classification:   fields["classification"],
			},
		}
		if raw := fields["collection_id"]; raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				rowErrs = append(rowErrs, RowError{Line: line, Column: "collection_id", Reason: "not a number"})
				continue
			}
			row.Input.CollectionID = id
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

// WriteErrorReport echoes the offending rows with an extra error column, the
// file operators download to fix and resubmit.
func WriteErrorReport(w io.Writer, rows []Row, rowErrs []RowError) error {
	byLine := make(map[int][]RowError)
	for _, e := range rowErrs {
		byLine[e.Line] = append(byLine[e.Line], e)
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(append(append([]string{}, bookHeader...), "error")); err != nil {
		return err
	}
	for _, row := range rows {
		errs, bad := byLine[row.Line]
		if !bad {
			continue
		}
		var reasons []string
		for _, e := range errs {
			if e.Column != "" {
				reasons = append(reasons, e.Column+": "+e.Reason)
			} else {
				reasons = append(reasons, e.Reason)
			}
		}
		record := make([]string, 0, len(bookHeader)+1)
		for _, col := range bookHeader {
			record = append(record, row.Fields[col])
		}
		record = append(record, strings.Join(reasons, " - "))
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
