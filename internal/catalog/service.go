package catalog

import (
	"context"
	"errors"
)

// RepositoryPort abstracts catalog persistence for the service.
type RepositoryPort interface {
	ListBooks(ctx context.Context, search string, limit, offset int) ([]Book, error)
	GetBook(ctx context.Context, id int64) (Book, error)
	CreateBook(ctx context.Context, b Book) (Book, error)
	UpdateBook(ctx context.Context, b Book) error
	DeleteBook(ctx context.Context, id int64) error
	CodeExists(ctx context.Context, code string) (bool, error)
	CreateSpecimen(ctx context.Context, bookID int64) (Specimen, error)
	GetSpecimenDetail(ctx context.Context, id int64) (SpecimenDetail, error)
	ListSpecimens(ctx context.Context, bookID int64) ([]Specimen, error)
	DeleteSpecimen(ctx context.Context, id int64) error
	ListLocations(ctx context.Context) ([]Location, error)
	UpsertLocation(ctx context.Context, l Location) error
	ListClassifications(ctx context.Context) ([]Classification, error)
	UpsertClassification(ctx context.Context, c Classification) error
	ListCollections(ctx context.Context) ([]Collection, error)
	CreateCollection(ctx context.Context, name string) (Collection, error)
}

// AvailabilityPort reports whether a specimen has an open loan. Implemented
// by the loans repository.
type AvailabilityPort interface {
	SpecimenAvailable(ctx context.Context, specimenID int64) (bool, error)
}

// Service coordinates catalog operations.
type Service struct {
	repo         RepositoryPort
	availability AvailabilityPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort, availability AvailabilityPort) *Service {
	return &Service{repo: repo, availability: availability}
}

// ListBooks returns books matching the search term.
func (s *Service) ListBooks(ctx context.Context, search string, limit, offset int) ([]Book, error) {
	return s.repo.ListBooks(ctx, search, limit, offset)
}

// GetBook fetches a book by id.
func (s *Service) GetBook(ctx context.Context, id int64) (Book, error) {
	return s.repo.GetBook(ctx, id)
}

// CreateBook derives the search fields, ISBN forms and call code, then
// persists the book.
func (s *Service) CreateBook(ctx context.Context, input BookInput) (Book, error) {
	b, err := s.fromInput(ctx, input)
	if err != nil {
		return Book{}, err
	}

	code, err := s.nextFreeCode(ctx, b.AuthorLastName, b.Title)
	if err != nil {
		return Book{}, err
	}
	b.Code = code

	return s.repo.CreateBook(ctx, b)
}

// UpdateBook rewrites a book, keeping its call code stable.
func (s *Service) UpdateBook(ctx context.Context, id int64, input BookInput) (Book, error) {
	existing, err := s.repo.GetBook(ctx, id)
	if err != nil {
		return Book{}, err
	}

	b, err := s.fromInput(ctx, input)
	if err != nil {
		return Book{}, err
	}
	b.ID = existing.ID
	b.Code = existing.Code

	if err := s.repo.UpdateBook(ctx, b); err != nil {
		return Book{}, err
	}
	return s.repo.GetBook(ctx, id)
}

// DeleteBook removes a book.
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	return s.repo.DeleteBook(ctx, id)
}

// AddSpecimen registers a new physical copy of a book.
func (s *Service) AddSpecimen(ctx context.Context, bookID int64) (Specimen, error) {
	if _, err := s.repo.GetBook(ctx, bookID); err != nil {
		return Specimen{}, err
	}
	return s.repo.CreateSpecimen(ctx, bookID)
}

// SpecimenAvailable reports whether the specimen can be loaned right now.
func (s *Service) SpecimenAvailable(ctx context.Context, specimenID int64) (bool, error) {
	if s.availability == nil {
		return true, nil
	}
	return s.availability.SpecimenAvailable(ctx, specimenID)
}

// Specimens lists the physical copies of a book.
func (s *Service) Specimens(ctx context.Context, bookID int64) ([]Specimen, error) {
	return s.repo.ListSpecimens(ctx, bookID)
}

// RemoveSpecimen deletes a specimen.
func (s *Service) RemoveSpecimen(ctx context.Context, id int64) error {
	return s.repo.DeleteSpecimen(ctx, id)
}

// Locations lists shelf locations.
func (s *Service) Locations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}

// SaveLocation creates or updates a location.
func (s *Service) SaveLocation(ctx context.Context, l Location) error {
	if l.Name == "" {
		return errors.New("catalog: location name required")
	}
	return s.repo.UpsertLocation(ctx, l)
}

// Classifications lists classifications.
func (s *Service) Classifications(ctx context.Context) ([]Classification, error) {
	return s.repo.ListClassifications(ctx)
}

// SaveClassification creates or updates a classification.
func (s *Service) SaveClassification(ctx context.Context, c Classification) error {
	if c.Abbreviation == "" || c.LocationName == "" {
		return errors.New("catalog: classification abbreviation and location required")
	}
	return s.repo.UpsertClassification(ctx, c)
}

// Collections lists collections.
func (s *Service) Collections(ctx context.Context) ([]Collection, error) {
	return s.repo.ListCollections(ctx)
}

// AddCollection creates a collection.
func (s *Service) AddCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return Collection{}, errors.New("catalog: collection name required")
	}
	return s.repo.CreateCollection(ctx, name)
}

func (s *Service) fromInput(ctx context.Context, input BookInput) (Book, error) {
	b := Book{
		Title:            input.Title,
		UnaccentTitle:    Unaccent(input.Title),
		AuthorFirstNames: input.AuthorFirstNames,
		AuthorLastName:   input.AuthorLastName,
		UnaccentAuthor:   Unaccent(input.AuthorFirstNames + " " + input.AuthorLastName),
		Publisher:        input.Publisher,
	}
	if input.Classification != "" {
		cls := input.Classification
		b.Classification = &cls
	}
	if input.CollectionID != 0 {
		id := input.CollectionID
		b.CollectionID = &id
	}
	if input.ISBN != "" {
		canonical, err := CanonicalISBN(input.ISBN)
		if err != nil {
			return Book{}, err
		}
		ean, err := EAN13(canonical)
		if err != nil {
			return Book{}, err
		}
		b.ISBN = canonical
		b.CanonicalISBN = ean
	}
	return b, nil
}

func (s *Service) nextFreeCode(ctx context.Context, surname, title string) (string, error) {
	var lookupErr error
	code := CallCode(surname, title, func(code string) bool {
		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			lookupErr = err
			return false
		}
		return exists
	})
	if lookupErr != nil {
		return "", lookupErr
	}
	return code, nil
}
