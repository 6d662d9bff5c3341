package backup

import (
	"archive/zip"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	backups map[int64]Backup
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{backups: map[int64]Backup{}, nextID: 1}
}

func (m *memoryRepo) List(ctx context.Context) ([]Backup, error) {
	var out []Backup
	for _, b := range m.backups {
		out = append(out, b)
	}
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Backup, error) {
	b, ok := m.backups[id]
	if !ok {
		return Backup{}, ErrBackupNotFound
	}
	return b, nil
}

func (m *memoryRepo) NameExists(ctx context.Context, name string) (bool, error) {
	for _, b := range m.backups {
		if b.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) Create(ctx context.Context, b Backup) (Backup, error) {
	b.ID = m.nextID
	m.nextID++
	m.backups[b.ID] = b
	return b, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.backups[id]; !ok {
		return ErrBackupNotFound
	}
	delete(m.backups, id)
	return nil
}

// stubDumper writes a placeholder file wherever a dump was requested.
type stubDumper struct {
	dbErr error
}

func (d stubDumper) DumpDB(ctx context.Context, dest string) error {
	if d.dbErr != nil {
		return d.dbErr
	}
	return os.WriteFile(dest, []byte("dump"), 0o644)
}

func (d stubDumper) DumpMedia(ctx context.Context, dest string) error {
	return os.WriteFile(dest, []byte("media"), 0o644)
}

func newTestService(t *testing.T, dumper Dumper) (*Service, *memoryRepo, string) {
	t.Helper()
	repo := newMemoryRepo()
	dir := t.TempDir()
	svc := NewService(slog.New(slog.DiscardHandler), repo, dumper, dir)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	}
	return svc, repo, dir
}

func TestCreateBackup(t *testing.T) {
	svc, _, dir := newTestService(t, stubDumper{})

	b, err := svc.Create(context.Background(), CreateInput{IncludeDB: true, IncludeMedia: true})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02_backup", b.Name)
	assert.Equal(t, filepath.Join(dir, "2026-03-02_backup_db.zip"), b.DBDumpPath)
	assert.FileExists(t, b.DBDumpPath)
	assert.FileExists(t, b.MediaDumpPath)
}

func TestCreateBackupUniqueNames(t *testing.T) {
	svc, _, _ := newTestService(t, stubDumper{})

	first, err := svc.Create(context.Background(), CreateInput{IncludeDB: true})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), CreateInput{IncludeDB: true})
	require.NoError(t, err)
	third, err := svc.Create(context.Background(), CreateInput{IncludeDB: true})
	require.NoError(t, err)

	assert.Equal(t, "2026-03-02_backup", first.Name)
	assert.Equal(t, "2026-03-02_backup1", second.Name)
	assert.Equal(t, "2026-03-02_backup2", third.Name)
}

func TestCreateBackupRequiresADump(t *testing.T) {
	svc, _, _ := newTestService(t, stubDumper{})

	_, err := svc.Create(context.Background(), CreateInput{Name: "empty"})
	assert.ErrorIs(t, err, ErrNothingToDump)
}

func TestCreateBackupFailureLeavesNoRecord(t *testing.T) {
	svc, repo, _ := newTestService(t, stubDumper{dbErr: os.ErrPermission})

	_, err := svc.Create(context.Background(), CreateInput{IncludeDB: true})
	require.Error(t, err)
	assert.Empty(t, repo.backups)
}

func TestDeleteBackupRemovesFiles(t *testing.T) {
	svc, _, _ := newTestService(t, stubDumper{})

	b, err := svc.Create(context.Background(), CreateInput{IncludeDB: true, IncludeMedia: true})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), b.ID))
	assert.NoFileExists(t, b.DBDumpPath)
	assert.NoFileExists(t, b.MediaDumpPath)

	assert.ErrorIs(t, svc.Delete(context.Background(), b.ID), ErrBackupNotFound)
}

func TestDumpMediaArchivesTree(t *testing.T) {
	media := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(media, "covers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(media, "covers", "a.jpg"), []byte("img"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(media, "note.txt"), []byte("hi"), 0o644))

	dest := filepath.Join(t.TempDir(), "media.zip")
	require.NoError(t, DumpMedia(context.Background(), media, dest))

	r, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer r.Close()

	names := map[string]bool{}
	for _, f := range r.File {
		names[f.Name] = true
	}
	assert.True(t, names[filepath.Join("covers", "a.jpg")])
	assert.True(t, names["note.txt"])
}

func TestDumpMediaMissingDirIsEmptyArchive(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "media.zip")
	require.NoError(t, DumpMedia(context.Background(), filepath.Join(t.TempDir(), "nope"), dest))

	r, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer r.Close()
	assert.Empty(t, r.File)
}
