// Package reliability provides database backup and cloud archival services.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/propsight/internal/database"
)

const (
	backupTimestampFormat = "2006-01-02-150405"

	// Rotation never deletes the newest backups, regardless of age
	minBackupsToKeep = 3
)

// BackupService snapshots the service database and ships compressed
// archives to an S3-compatible bucket.
type BackupService struct {
	db      *database.DB
	store   *S3Client
	dataDir string
	prefix  string
	log     zerolog.Logger
}

// BackupMetadata describes the contents of a backup archive
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes a single database file inside an archive
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupResult reports a completed backup run
type BackupResult struct {
	Archive   string    `json:"archive"`
	SizeBytes int64     `json:"size_bytes"`
	Uploaded  time.Time `json:"uploaded"`
}

// BackupInfo describes a backup stored in the bucket
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// NewBackupService creates a backup service. The prefix becomes part of
// every archive key, so one bucket can hold backups from several deployments.
func NewBackupService(db *database.DB, store *S3Client, dataDir, prefix string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:      db,
		store:   store,
		dataDir: dataDir,
		prefix:  prefix,
		log:     log.With().Str("service", "backup").Logger(),
	}
}

// RunBackup snapshots the database, packs it with a metadata manifest into
// a tar.gz archive, and uploads the archive to the bucket.
func (s *BackupService) RunBackup(ctx context.Context) (*BackupResult, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp(s.dataDir, "backup-staging-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	archivePath, meta, err := s.buildArchive(ctx, stagingDir)
	if err != nil {
		return nil, err
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	key := filepath.Base(archivePath)
	if err := s.store.Upload(ctx, key, archiveFile, archiveInfo.Size()); err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}

	result := &BackupResult{
		Archive:   key,
		SizeBytes: archiveInfo.Size(),
		Uploaded:  time.Now().UTC(),
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", key).
		Int64("size_bytes", result.SizeBytes).
		Int("databases", len(meta.Databases)).
		Msg("Backup completed")

	return result, nil
}

// buildArchive snapshots the database into stagingDir and packs the snapshot
// together with a metadata manifest into a tar.gz archive
func (s *BackupService) buildArchive(ctx context.Context, stagingDir string) (string, BackupMetadata, error) {
	meta := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Databases: make([]DatabaseMetadata, 0, 1),
	}

	name := strings.TrimSuffix(filepath.Base(s.db.Path()), ".db")
	snapshotPath := filepath.Join(stagingDir, name+".db")
	if err := s.snapshotDatabase(ctx, snapshotPath); err != nil {
		return "", meta, fmt.Errorf("failed to snapshot %s: %w", name, err)
	}

	info, err := os.Stat(snapshotPath)
	if err != nil {
		return "", meta, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	checksum, err := s.checksumFile(snapshotPath)
	if err != nil {
		return "", meta, fmt.Errorf("failed to checksum snapshot: %w", err)
	}

	meta.Databases = append(meta.Databases, DatabaseMetadata{
		Name:      name,
		Filename:  name + ".db",
		SizeBytes: info.Size(),
		Checksum:  checksum,
	})

	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := s.writeMetadata(metadataPath, meta); err != nil {
		return "", meta, fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := fmt.Sprintf("%s-backup-%s.tar.gz", s.prefix, meta.Timestamp.Format(backupTimestampFormat))
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := s.createArchive(archivePath, []string{snapshotPath, metadataPath}); err != nil {
		return "", meta, fmt.Errorf("failed to create archive: %w", err)
	}

	return archivePath, meta, nil
}

// snapshotDatabase writes a consistent copy of the live database using
// VACUUM INTO, then verifies the copy's integrity
func (s *BackupService) snapshotDatabase(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", path)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	snapshot, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer snapshot.Close()

	var result string
	if err := snapshot.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// ListBackups returns stored backups, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, s.prefix+"-backup-")
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		key := *obj.Key
		if !strings.HasSuffix(key, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimPrefix(key, s.prefix+"-backup-")
		timestampStr = strings.TrimSuffix(timestampStr, ".tar.gz")

		timestamp, err := time.Parse(backupTimestampFormat, timestampStr)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Failed to parse timestamp from key")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Key:       key,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period.
// A retention of zero keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	stale := backupsToDelete(backups, retentionDays, time.Now())

	deleted := 0
	for _, backup := range stale {
		if err := s.store.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().
			Int("deleted", deleted).
			Int("kept", len(backups)-deleted).
			Msg("Backup rotation completed")
	}

	return nil
}

// backupsToDelete returns the backups outside the retention window.
// Expects backups sorted newest first; the newest minBackupsToKeep
// entries are never selected.
func backupsToDelete(backups []BackupInfo, retentionDays int, now time.Time) []BackupInfo {
	if len(backups) <= minBackupsToKeep || retentionDays <= 0 {
		return nil
	}

	cutoff := now.AddDate(0, 0, -retentionDays)

	var stale []BackupInfo
	for _, backup := range backups[minBackupsToKeep:] {
		if backup.Timestamp.Before(cutoff) {
			stale = append(stale, backup)
		}
	}
	return stale
}

// checksumFile calculates the SHA256 checksum of a file
func (s *BackupService) checksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes the backup manifest to a JSON file
func (s *BackupService) writeMetadata(path string, meta BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(meta)
}

// createArchive packs the given files into a tar.gz archive, storing each
// under its basename
func (s *BackupService) createArchive(archivePath string, files []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, path := range files {
		if err := s.addFileToArchive(tarWriter, path); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filepath.Base(path), err)
		}
	}

	return nil
}

func (s *BackupService) addFileToArchive(tarWriter *tar.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}

	return nil
}
