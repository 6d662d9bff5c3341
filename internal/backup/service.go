package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RepositoryPort abstracts backup persistence.
type RepositoryPort interface {
	List(ctx context.Context) ([]Backup, error)
	Get(ctx context.Context, id int64) (Backup, error)
	NameExists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, b Backup) (Backup, error)
	Delete(ctx context.Context, id int64) error
}

// Dumper produces the two dump archives. Split out so tests can swap the
// pg_dump call for a stub.
type Dumper interface {
	DumpDB(ctx context.Context, dest string) error
	DumpMedia(ctx context.Context, dest string) error
}

// ExecDumper runs real dumps against the configured database and media dir.
type ExecDumper struct {
	DSN      string
	MediaDir string
}

func (d ExecDumper) DumpDB(ctx context.Context, dest string) error {
	return DumpDB(ctx, d.DSN, dest)
}

func (d ExecDumper) DumpMedia(ctx context.Context, dest string) error {
	return DumpMedia(ctx, d.MediaDir, dest)
}

// Service creates and removes backups.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	dumper    Dumper
	backupDir string

	now func() time.Time
}

// NewService builds a Service. Archives land under backupDir.
func NewService(logger *slog.Logger, repo RepositoryPort, dumper Dumper, backupDir string) *Service {
	return &Service{
		logger:    logger,
		repo:      repo,
		dumper:    dumper,
		backupDir: backupDir,
		now:       time.Now,
	}
}

// List returns every backup, newest first.
func (s *Service) List(ctx context.Context) ([]Backup, error) {
	return s.repo.List(ctx)
}

// Get fetches one backup.
func (s *Service) Get(ctx context.Context, id int64) (Backup, error) {
	return s.repo.Get(ctx, id)
}

// Create runs the requested dumps and records the backup. Names are made
// unique by suffixing a counter, so scheduled runs never collide.
func (s *Service) Create(ctx context.Context, input CreateInput) (Backup, error) {
	if !input.IncludeDB && !input.IncludeMedia {
		return Backup{}, ErrNothingToDump
	}

	now := s.now().UTC()
	name := input.Name
	if name == "" {
		name = DefaultName(now)
	}
	name, err := s.uniqueName(ctx, name)
	if err != nil {
		return Backup{}, err
	}

	b := Backup{
		Name:         name,
		IncludeDB:    input.IncludeDB,
		IncludeMedia: input.IncludeMedia,
		CreatedAt:    now,
	}

	if input.IncludeDB {
		dest := filepath.Join(s.backupDir, name+"_db.zip")
		if err := s.dumper.DumpDB(ctx, dest); err != nil {
			return Backup{}, err
		}
		b.DBDumpPath = dest
	}
	if input.IncludeMedia {
		dest := filepath.Join(s.backupDir, name+"_media.zip")
		if err := s.dumper.DumpMedia(ctx, dest); err != nil {
			s.removeFiles(b)
			return Backup{}, err
		}
		b.MediaDumpPath = dest
	}

	created, err := s.repo.Create(ctx, b)
	if err != nil {
		s.removeFiles(b)
		return Backup{}, err
	}
	s.logger.Info("backup created",
		slog.String("name", created.Name),
		slog.Bool("db", created.IncludeDB),
		slog.Bool("media", created.IncludeMedia))
	return created, nil
}

// Delete removes the record and its archives.
func (s *Service) Delete(ctx context.Context, id int64) error {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeFiles(b)
	s.logger.Info("backup deleted", slog.String("name", b.Name))
	return nil
}

func (s *Service) uniqueName(ctx context.Context, base string) (string, error) {
	name := base
	for n := 1; ; n++ {
		taken, err := s.repo.NameExists(ctx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
		name = fmt.Sprintf("%s%d", base, n)
	}
}

func (s *Service) removeFiles(b Backup) {
	for _, path := range []string{b.DBDumpPath, b.MediaDumpPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("backup file removal failed",
				slog.String("path", path), slog.Any("error", err))
		}
	}
}
