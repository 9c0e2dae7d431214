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
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/propsight/internal/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "propsight.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = data
	}
	return entries
}

func TestBuildArchive(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Exec(
		`INSERT INTO hpi_observations (quarter, value, loaded_at) VALUES (?, ?, ?)`,
		"2017-03-31", 100.5, time.Now().Unix(),
	)
	require.NoError(t, err)

	svc := NewBackupService(db, nil, t.TempDir(), "propsight", zerolog.Nop())

	archivePath, meta, err := svc.buildArchive(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(archivePath), "propsight-backup-"))
	assert.True(t, strings.HasSuffix(archivePath, ".tar.gz"))

	require.Len(t, meta.Databases, 1)
	assert.Equal(t, "propsight", meta.Databases[0].Name)
	assert.Equal(t, "propsight.db", meta.Databases[0].Filename)
	assert.Positive(t, meta.Databases[0].SizeBytes)

	entries := readArchive(t, archivePath)
	require.Contains(t, entries, "propsight.db")
	require.Contains(t, entries, "backup-metadata.json")

	var stored BackupMetadata
	require.NoError(t, json.Unmarshal(entries["backup-metadata.json"], &stored))
	require.Len(t, stored.Databases, 1)
	assert.Equal(t, meta.Databases[0], stored.Databases[0])

	snapshot := entries["propsight.db"]
	sum := sha256.Sum256(snapshot)
	assert.Equal(t, fmt.Sprintf("sha256:%x", sum), meta.Databases[0].Checksum)
	assert.Equal(t, int64(len(snapshot)), meta.Databases[0].SizeBytes)
}

func TestSnapshotPreservesRows(t *testing.T) {
	db := setupTestDB(t)
	for i, quarter := range []string{"2017-03-31", "2017-06-30", "2017-09-30"} {
		_, err := db.Exec(
			`INSERT INTO hpi_observations (quarter, value, loaded_at) VALUES (?, ?, ?)`,
			quarter, 100.0+float64(i), time.Now().Unix(),
		)
		require.NoError(t, err)
	}

	svc := NewBackupService(db, nil, t.TempDir(), "propsight", zerolog.Nop())

	snapshotPath := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, svc.snapshotDatabase(context.Background(), snapshotPath))

	snapshot, err := sql.Open("sqlite", snapshotPath)
	require.NoError(t, err)
	defer snapshot.Close()

	var count int
	require.NoError(t, snapshot.QueryRow(`SELECT COUNT(*) FROM hpi_observations`).Scan(&count))
	assert.Equal(t, 3, count)
}

func TestBackupsToDelete(t *testing.T) {
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	backup := func(daysOld int) BackupInfo {
		ts := now.AddDate(0, 0, -daysOld)
		return BackupInfo{
			Key:       "propsight-backup-" + ts.Format(backupTimestampFormat) + ".tar.gz",
			Timestamp: ts,
		}
	}

	t.Run("keeps everything when few backups exist", func(t *testing.T) {
		backups := []BackupInfo{backup(1), backup(100), backup(200)}
		assert.Empty(t, backupsToDelete(backups, 30, now))
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		backups := []BackupInfo{backup(1), backup(2), backup(3), backup(400)}
		assert.Empty(t, backupsToDelete(backups, 0, now))
	})

	t.Run("protects the newest three regardless of age", func(t *testing.T) {
		backups := []BackupInfo{backup(50), backup(60), backup(70), backup(80)}
		stale := backupsToDelete(backups, 30, now)
		require.Len(t, stale, 1)
		assert.Equal(t, backups[3].Key, stale[0].Key)
	})

	t.Run("keeps backups inside the retention window", func(t *testing.T) {
		backups := []BackupInfo{backup(1), backup(2), backup(3), backup(10), backup(45)}
		stale := backupsToDelete(backups, 30, now)
		require.Len(t, stale, 1)
		assert.Equal(t, backups[4].Key, stale[0].Key)
	})
}
