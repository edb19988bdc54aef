package export

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/export/crypto"
	"github.com/kimhsiao/leadbook/internal/models"
	"github.com/kimhsiao/leadbook/internal/store"
)

const (
	archiveLeadsFile    = "leads.json"
	archiveManifestFile = "manifest.json"

	// maxArchiveEntry bounds how much of one archive member is read.
	maxArchiveEntry = 64 << 20
)

// Archive is the content of a backup archive.
type Archive struct {
	Manifest models.ArchiveManifest
	Leads    []models.Lead
}

// ExportArchive writes a gzip-compressed tar holding leads.json, encoded
// exactly like the JSON store, and manifest.json with its SHA-256. A
// non-empty password encrypts the whole archive.
func (s *Service) ExportArchive(leads []models.Lead, path, password string) (*Result, error) {
	start := s.now()

	data, err := store.EncodeLeads(leads)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExportFailed, "encode leads", err)
	}
	manifest := models.ArchiveManifest{
		Version:    models.ArchiveManifestVersion,
		ExportedAt: start.Unix(),
		ItemCount:  len(leads),
		Checksum:   fmt.Sprintf("%x", sha256.Sum256(data)),
	}

	archive, err := buildArchive(data, &manifest, start)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExportFailed, "build archive", err)
	}
	if password != "" {
		if archive, err = crypto.EncryptArchive(archive, password); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidPassword, "encrypt archive", err)
		}
	}

	size, err := writeFile(path, func(w io.Writer) error {
		_, err := w.Write(archive)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := s.result(FormatArchive, path, len(leads), size, start)
	res.Checksum = manifest.Checksum
	return res, nil
}

// buildArchive packs leads.json and manifest.json into a tar.gz.
func buildArchive(leadsJSON []byte, manifest *models.ArchiveManifest, modTime time.Time) ([]byte, error) {
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for _, entry := range []struct {
		name string
		data []byte
	}{
		{archiveLeadsFile, leadsJSON},
		{archiveManifestFile, manifestJSON},
	} {
		header := &tar.Header{
			Name:    entry.name,
			Mode:    0644,
			Size:    int64(len(entry.data)),
			ModTime: modTime,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, err
		}
		if _, err := tw.Write(entry.data); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gzw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadArchive opens a backup archive written by ExportArchive, decrypting it
// with password when it is encrypted, and verifies the manifest checksum
// and item count.
func ReadArchive(path, password string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageRead, "read "+path, err)
	}

	if crypto.IsEncrypted(data) {
		if password == "" {
			return nil, apperrors.New(apperrors.ErrInvalidPassword, "archive is encrypted, a password is required")
		}
		data, err = crypto.DecryptArchive(data, password)
		switch {
		case errors.Is(err, crypto.ErrInvalidPassword):
			return nil, apperrors.Wrap(apperrors.ErrInvalidPassword, "decrypt archive", err)
		case err != nil:
			return nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "decrypt archive", err)
		}
	}

	entries, err := extractArchive(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "extract "+path, err)
	}
	return verifyArchive(entries)
}

// extractArchive reads the regular files of a tar.gz into memory.
func extractArchive(data []byte) (map[string][]byte, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gzr.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if header.Size > maxArchiveEntry {
			return nil, fmt.Errorf("%s is too large (%d bytes)", header.Name, header.Size)
		}
		content, err := io.ReadAll(io.LimitReader(tr, maxArchiveEntry))
		if err != nil {
			return nil, err
		}
		entries[strings.TrimPrefix(header.Name, "./")] = content
	}
	return entries, nil
}

func verifyArchive(entries map[string][]byte) (*Archive, error) {
	manifestJSON, ok := entries[archiveManifestFile]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCorruptedArchive, "archive has no "+archiveManifestFile)
	}
	leadsJSON, ok := entries[archiveLeadsFile]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCorruptedArchive, "archive has no "+archiveLeadsFile)
	}

	var manifest models.ArchiveManifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "parse manifest", err)
	}
	if major, _, _ := strings.Cut(manifest.Version, "."); major != "1" {
		return nil, apperrors.Newf(apperrors.ErrCorruptedArchive, "unsupported archive version %q", manifest.Version)
	}
	if sum := fmt.Sprintf("%x", sha256.Sum256(leadsJSON)); sum != manifest.Checksum {
		return nil, apperrors.Newf(apperrors.ErrCorruptedArchive, "checksum mismatch: manifest %s, content %s", manifest.Checksum, sum)
	}

	leads, err := store.DecodeLeads(leadsJSON)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "parse "+archiveLeadsFile, err)
	}
	if len(leads) != manifest.ItemCount {
		return nil, apperrors.Newf(apperrors.ErrCorruptedArchive, "manifest lists %d leads, archive holds %d", manifest.ItemCount, len(leads))
	}
	return &Archive{Manifest: manifest, Leads: leads}, nil
}
