package labels

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/librarium/librarium/internal/catalog"
)

// RepositoryPort abstracts label persistence for the service.
type RepositoryPort interface {
	ListConfigurations(ctx context.Context) ([]PageConfiguration, error)
	GetConfiguration(ctx context.Context, id int64) (PageConfiguration, error)
	DefaultConfiguration(ctx context.Context) (PageConfiguration, error)
	SaveConfiguration(ctx context.Context, c PageConfiguration) (PageConfiguration, error)
	DeleteConfiguration(ctx context.Context, id int64) error
	ListPrints(ctx context.Context) ([]Print, error)
	GetPrint(ctx context.Context, id int64) (Print, error)
	CreatePrint(ctx context.Context, p Print) (Print, error)
	SetPrintFile(ctx context.Context, id int64, path string) error
	DeletePrint(ctx context.Context, id int64) error
}

// CatalogPort resolves the specimens being labelled.
type CatalogPort interface {
	GetSpecimenDetail(ctx context.Context, id int64) (catalog.SpecimenDetail, error)
	ListLocations(ctx context.Context) ([]catalog.Location, error)
}

// RendererPort converts sheet HTML to PDF.
type RendererPort interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// CreatePrintInput is the print request.
type CreatePrintInput struct {
	Name            string       `json:"name"`
	ConfigurationID int64        `json:"configuration_id"`
	SpecimenIDs     []int64      `json:"specimen_ids" validate:"required,min=1"`
	Options         PrintOptions `json:"options"`
}

// Service builds label sheets and renders them to PDF. Concurrent renders of
// the same print share one Gotenberg round trip.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	catalog  CatalogPort
	renderer RendererPort
	mediaDir string
	group    singleflight.Group
	now      func() time.Time
}

// NewService builds a Service.
func NewService(logger *slog.Logger, repo RepositoryPort, cat CatalogPort, renderer RendererPort, mediaDir string) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		catalog:  cat,
		renderer: renderer,
		mediaDir: mediaDir,
		now:      time.Now,
	}
}

// Configurations lists page configurations.
func (s *Service) Configurations(ctx context.Context) ([]PageConfiguration, error) {
	return s.repo.ListConfigurations(ctx)
}

// SaveConfiguration validates geometry and stores the configuration.
func (s *Service) SaveConfiguration(ctx context.Context, c PageConfiguration) (PageConfiguration, error) {
	if _, _, err := c.BoxDimensions(); err != nil {
		return PageConfiguration{}, err
	}
	return s.repo.SaveConfiguration(ctx, c)
}

// DeleteConfiguration removes a configuration.
func (s *Service) DeleteConfiguration(ctx context.Context, id int64) error {
	return s.repo.DeleteConfiguration(ctx, id)
}

// Prints lists prints.
func (s *Service) Prints(ctx context.Context) ([]Print, error) {
	return s.repo.ListPrints(ctx)
}

// GetPrint fetches one print.
func (s *Service) GetPrint(ctx context.Context, id int64) (Print, error) {
	return s.repo.GetPrint(ctx, id)
}

// CreatePrint stores a print and renders its PDF.
func (s *Service) CreatePrint(ctx context.Context, input CreatePrintInput) (Print, error) {
	if len(input.SpecimenIDs) == 0 {
		return Print{}, ErrNoSpecimens
	}

	var config PageConfiguration
	var err error
	if input.ConfigurationID != 0 {
		config, err = s.repo.GetConfiguration(ctx, input.ConfigurationID)
	} else {
		config, err = s.repo.DefaultConfiguration(ctx)
	}
	if err != nil {
		return Print{}, err
	}
	if _, _, err := config.BoxDimensions(); err != nil {
		return Print{}, err
	}
	if config.ID == 0 {
		// The built-in default is not persisted yet; prints reference
		// configurations by id.
		config, err = s.repo.SaveConfiguration(ctx, config)
		if err != nil {
			return Print{}, err
		}
	}

	now := s.now()
	name := input.Name
	if name == "" {
		name = DefaultPrintName(now)
	}
	p := Print{
		Name:            name,
		ConfigurationID: config.ID,
		SpecimenIDs:     input.SpecimenIDs,
		Options:         input.Options,
		CreatedAt:       now,
	}
	p, err = s.repo.CreatePrint(ctx, p)
	if err != nil {
		return Print{}, err
	}

	if _, err := s.RenderPrint(ctx, p.ID); err != nil {
		return Print{}, err
	}
	return s.repo.GetPrint(ctx, p.ID)
}

// RenderPrint returns the print's PDF, rendering and storing it on first
// use. Concurrent requests for the same print collapse into one render.
func (s *Service) RenderPrint(ctx context.Context, id int64) ([]byte, error) {
	pdf, err, _ := s.group.Do("print:"+strconv.FormatInt(id, 10), func() (any, error) {
		return s.renderPrint(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return pdf.([]byte), nil
}

func (s *Service) renderPrint(ctx context.Context, id int64) ([]byte, error) {
	p, err := s.repo.GetPrint(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.FilePath != "" {
		if pdf, err := os.ReadFile(p.FilePath); err == nil {
			return pdf, nil
		}
		// Stale path, re-render.
	}

	config, err := s.repo.GetConfiguration(ctx, p.ConfigurationID)
	if err != nil {
		return nil, err
	}
	entries, err := s.buildEntries(ctx, config, p)
	if err != nil {
		return nil, err
	}
	html, err := BuildSheet(config, p.Options, entries)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("labels: render print %d: %w", id, err)
	}

	path := filepath.Join(s.mediaDir, "labels", fmt.Sprintf("print-%d.pdf", id))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("labels: media dir: %w", err)
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return nil, fmt.Errorf("labels: store pdf: %w", err)
	}
	if err := s.repo.SetPrintFile(ctx, id, path); err != nil {
		return nil, err
	}
	s.logger.Info("label sheet rendered",
		slog.Int64("print_id", id),
		slog.Int("labels", len(p.SpecimenIDs)),
		slog.Int("bytes", len(pdf)))
	return pdf, nil
}

// DeletePrint removes the print and its stored PDF.
func (s *Service) DeletePrint(ctx context.Context, id int64) error {
	p, err := s.repo.GetPrint(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePrint(ctx, id); err != nil {
		return err
	}
	if p.FilePath != "" {
		if err := os.Remove(p.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not remove print file",
				slog.String("path", p.FilePath), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) buildEntries(ctx context.Context, config PageConfiguration, p Print) ([]Entry, error) {
	boxW, boxH, err := config.BoxDimensions()
	if err != nil {
		return nil, err
	}
	barcodeW := boxW*2/3 - 1
	barcodeH := boxH*4/5 - 1

	colors := map[string]string{}
	if p.Options.UseColor {
		locations, err := s.catalog.ListLocations(ctx)
		if err != nil {
			return nil, err
		}
		for _, l := range locations {
			colors[l.Name] = l.Color
		}
	}

	entries := make([]Entry, 0, len(p.SpecimenIDs))
	for _, specimenID := range p.SpecimenIDs {
		detail, err := s.catalog.GetSpecimenDetail(ctx, specimenID)
		if err != nil {
			return nil, err
		}
		e := Entry{
			Code:           detail.Book.Code,
			Classification: detail.Classification.Abbreviation,
			Location:       detail.Classification.LocationName,
			SpecimenNumber: detail.Specimen.Number,
		}
		if p.Options.UseColor {
			e.Color = colors[detail.Classification.LocationName]
		}
		if p.Options.IncludeBarcode {
			number := PadBarcodeNumber(detail.Specimen.ID)
			if p.Options.UseISBN {
				if detail.Book.CanonicalISBN == "" {
					// No ISBN to encode, leave the barcode off this label.
					entries = append(entries, e)
					continue
				}
				number = detail.Book.CanonicalISBN
			}
			svg, err := BarcodeSVG(number, barcodeW, barcodeH)
			if err != nil {
				return nil, err
			}
			e.BarcodeSVG = template.HTML(svg)
			e.BarcodeText = number
		}
		entries = append(entries, e)
	}
	return entries, nil
}
