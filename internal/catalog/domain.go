package catalog

import (
	"errors"
	"time"
)

// Location is a physical shelf area of the library, keyed by name.
type Location struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Classification groups books under an abbreviation inside a location.
type Classification struct {
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name,omitempty"`
	LocationName string `json:"location"`
}

// Collection is a named acquisition collection a book may belong to.
type Collection struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book is a catalog record. A book owns zero or more physical specimens.
type Book struct {
	ID               int64      `json:"id"`
	ISBN             string     `json:"isbn,omitempty"`
	CanonicalISBN    string     `json:"canonical_isbn,omitempty"`
	Title            string     `json:"title"`
	UnaccentTitle    string     `json:"-"`
	AuthorFirstNames string     `json:"author_first_names,omitempty"`
	AuthorLastName   string     `json:"author_last_name"`
	UnaccentAuthor   string     `json:"-"`
	Publisher        string     `json:"publisher,omitempty"`
	Classification   *string    `json:"classification,omitempty"`
	CollectionID     *int64     `json:"collection_id,omitempty"`
	Code             string     `json:"code"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Author returns the display form of the author name.
func (b Book) Author() string {
	if b.AuthorFirstNames == "" {
		return b.AuthorLastName
	}
	return b.AuthorFirstNames + " " + b.AuthorLastName
}

// Specimen is one physical copy of a book, numbered within the book.
type Specimen struct {
	ID     int64 `json:"id"`
	Number int   `json:"number"`
	BookID int64 `json:"book_id"`
}

// SpecimenDetail resolves the reference chain the loan policy matcher needs.
// Classification is zero-valued when the book is unclassified.
type SpecimenDetail struct {
	Specimen       Specimen
	Book           Book
	Classification Classification
}

// BookInput carries fields for creating or updating a book.
type BookInput struct {
	ISBN             string `json:"isbn" validate:"omitempty,min=10,max=17"`
	Title            string `json:"title" validate:"required"`
	AuthorFirstNames string `json:"author_first_names"`
	AuthorLastName   string `json:"author_last_name" validate:"required"`
	Publisher        string `json:"publisher"`
	Classification   string `json:"classification"`
	CollectionID     int64  `json:"collection_id"`
}

var (
	// ErrBookNotFound indicates the book does not exist.
	ErrBookNotFound = errors.New("catalog: book not found")
	// ErrSpecimenNotFound indicates the specimen does not exist.
	ErrSpecimenNotFound = errors.New("catalog: specimen not found")
	// ErrInvalidISBN indicates the ISBN failed validation.
	ErrInvalidISBN = errors.New("catalog: invalid isbn")
	// ErrDuplicateISBN indicates another book already carries the ISBN.
	ErrDuplicateISBN = errors.New("catalog: duplicate isbn")
)
