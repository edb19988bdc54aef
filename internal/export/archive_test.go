package export

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/export/crypto"
	"github.com/kimhsiao/leadbook/internal/models"
)

// =====================================================
// Round Trip Tests
// =====================================================

func TestExportArchive_RoundTrip(t *testing.T) {
	s, _ := newTestService(t, Options{})
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	path := filepath.Join(t.TempDir(), "leads.tar.gz")

	res, err := s.ExportArchive(testLeads(), path, "")
	require.NoError(t, err)
	assert.Equal(t, FormatArchive, res.Format)
	assert.Equal(t, 3, res.Count)
	assert.Len(t, res.Checksum, 64)

	archive, err := ReadArchive(path, "")
	require.NoError(t, err)
	assert.Equal(t, testLeads(), archive.Leads)
	assert.Equal(t, models.ArchiveManifestVersion, archive.Manifest.Version)
	assert.Equal(t, fixed.Unix(), archive.Manifest.ExportedAt)
	assert.Equal(t, 3, archive.Manifest.ItemCount)
	assert.Equal(t, res.Checksum, archive.Manifest.Checksum)
}

func TestExportArchive_Empty(t *testing.T) {
	s, _ := newTestService(t, Options{})
	path := filepath.Join(t.TempDir(), "leads.tar.gz")

	_, err := s.ExportArchive(nil, path, "")
	require.NoError(t, err)

	archive, err := ReadArchive(path, "")
	require.NoError(t, err)
	assert.Empty(t, archive.Leads)
	assert.Zero(t, archive.Manifest.ItemCount)
}

func TestExportArchive_Encrypted(t *testing.T) {
	s, _ := newTestService(t, Options{})
	path := filepath.Join(t.TempDir(), "leads.tar.gz")

	_, err := s.ExportArchive(testLeads(), path, "correct horse")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, crypto.IsEncrypted(data))
	assert.NotContains(t, string(data), "Jane")

	archive, err := ReadArchive(path, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, testLeads(), archive.Leads)
}

// =====================================================
// Failure Tests
// =====================================================

func TestExportArchive_ShortPassword(t *testing.T) {
	s, _ := newTestService(t, Options{})
	path := filepath.Join(t.TempDir(), "leads.tar.gz")

	_, err := s.ExportArchive(testLeads(), path, "short")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPassword))
	assert.NoFileExists(t, path)
}

func TestReadArchive_PasswordErrors(t *testing.T) {
	s, _ := newTestService(t, Options{})
	path := filepath.Join(t.TempDir(), "leads.tar.gz")
	_, err := s.ExportArchive(testLeads(), path, "correct horse")
	require.NoError(t, err)

	_, err = ReadArchive(path, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPassword), "missing password: %v", err)

	_, err = ReadArchive(path, "wrong horse")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPassword), "wrong password: %v", err)
}

func TestReadArchive_Missing(t *testing.T) {
	_, err := ReadArchive(filepath.Join(t.TempDir(), "nope.tar.gz"), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageRead))
}

func TestReadArchive_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := ReadArchive(path, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrCorruptedArchive))
}

func sha256Hex(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// writeTestArchive packs entries into a tar.gz at path.
func writeTestArchive(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	for name, data := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data))}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// TestReadArchive_Corrupted verifies every manifest inconsistency is reported as a corrupted archive.
func TestReadArchive_Corrupted(t *testing.T) {
	leadsJSON := []byte(`[{"First Name":"Jane","Last Name":"Doe","Job Type":"Unknown","Lead Status":"In System"}]` + "\n")
	goodSum := sha256Hex(leadsJSON)

	manifest := func(version string, count int, sum string) []byte {
		data, err := json.Marshal(models.ArchiveManifest{Version: version, ItemCount: count, Checksum: sum})
		require.NoError(t, err)
		return data
	}

	tests := []struct {
		name    string
		entries map[string][]byte
	}{
		{"no manifest", map[string][]byte{archiveLeadsFile: leadsJSON}},
		{"no leads", map[string][]byte{archiveManifestFile: manifest("1.0", 1, goodSum)}},
		{"bad manifest", map[string][]byte{archiveLeadsFile: leadsJSON, archiveManifestFile: []byte("{")}},
		{"checksum mismatch", map[string][]byte{archiveLeadsFile: leadsJSON, archiveManifestFile: manifest("1.0", 1, sha256Hex([]byte("other")))}},
		{"count mismatch", map[string][]byte{archiveLeadsFile: leadsJSON, archiveManifestFile: manifest("1.0", 2, goodSum)}},
		{"future version", map[string][]byte{archiveLeadsFile: leadsJSON, archiveManifestFile: manifest("2.0", 1, goodSum)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "leads.tar.gz")
			writeTestArchive(t, path, tt.entries)

			_, err := ReadArchive(path, "")
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrCorruptedArchive), "got %v", err)
		})
	}

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "leads.tar.gz")
		writeTestArchive(t, path, map[string][]byte{archiveLeadsFile: leadsJSON, archiveManifestFile: manifest("1.2", 1, goodSum)})

		archive, err := ReadArchive(path, "")
		require.NoError(t, err)
		require.Len(t, archive.Leads, 1)
		assert.Equal(t, "Jane Doe", archive.Leads[0].Name())
	})
}
