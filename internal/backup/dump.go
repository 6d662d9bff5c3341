package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DumpDB shells out to pg_dump and zips the plain-SQL dump at dest. The
// connection string is the same one the pool uses.
func DumpDB(ctx context.Context, dsn, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("backup: dump dir: %w", err)
	}

	sqlPath := strings.TrimSuffix(dest, ".zip") + ".sql"
	out, err := os.Create(sqlPath)
	if err != nil {
		return fmt.Errorf("backup: create dump file: %w", err)
	}
	defer os.Remove(sqlPath)

	cmd := exec.CommandContext(ctx, "pg_dump", "--no-owner", "--dbname", dsn)
	cmd.Stdout = out
	var stderr strings.Builder
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	closeErr := out.Close()
	if runErr != nil {
		return fmt.Errorf("backup: pg_dump: %w: %s", runErr, strings.TrimSpace(stderr.String()))
	}
	if closeErr != nil {
		return fmt.Errorf("backup: flush dump: %w", closeErr)
	}

	return zipFiles(dest, map[string]string{filepath.Base(sqlPath): sqlPath})
}

// DumpMedia zips the media directory tree at dest.
func DumpMedia(ctx context.Context, mediaDir, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("backup: dump dir: %w", err)
	}

	files := map[string]string{}
	err := filepath.WalkDir(mediaDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(mediaDir, path)
		if err != nil {
			return err
		}
		files[rel] = path
		return nil
	})
	if os.IsNotExist(err) {
		files = map[string]string{}
	} else if err != nil {
		return fmt.Errorf("backup: walk media: %w", err)
	}

	return zipFiles(dest, files)
}

func zipFiles(dest string, files map[string]string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("backup: create archive: %w", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	for name, path := range files {
		src, err := os.Open(path)
		if err != nil {
			w.Close()
			return fmt.Errorf("backup: open %s: %w", path, err)
		}
		entry, err := w.Create(name)
		if err == nil {
			_, err = io.Copy(entry, src)
		}
		src.Close()
		if err != nil {
			w.Close()
			return fmt.Errorf("backup: archive %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("backup: finish archive: %w", err)
	}
	return out.Close()
}
