package backup

import (
	"errors"
	"time"
)

// Backup is one snapshot of the database and the media files.
type Backup struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	IncludeDB     bool      `json:"include_db"`
	IncludeMedia  bool      `json:"include_media"`
	DBDumpPath    string    `json:"db_dump_path,omitempty"`
	MediaDumpPath string    `json:"media_dump_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateInput is the backup request. An empty name gets a dated default.
type CreateInput struct {
	Name         string `json:"name"`
	IncludeDB    bool   `json:"include_db"`
	IncludeMedia bool   `json:"include_media"`
}

// DefaultName names automatic backups after their date.
func DefaultName(t time.Time) string {
	return t.Format("2006-01-02") + "_backup"
}

var (
	// ErrBackupNotFound indicates the backup does not exist.
	ErrBackupNotFound = errors.New("backup: backup not found")
	// ErrNothingToDump indicates a request with both dumps disabled.
	ErrNothingToDump = errors.New("backup: nothing selected to dump")
)
