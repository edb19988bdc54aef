package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/models"
)

// JSONFile persists leads as a JSON array in a single file.
type JSONFile struct {
	path string
	now  func() time.Time
}

// NewJSONFile returns a persister for the file at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path, now: time.Now}
}

// Location returns the file path.
func (f *JSONFile) Location() string {
	return f.path
}

// Load reads the file. When it does not exist the parent directory is
// created and an empty collection returned.
func (f *JSONFile) Load() ([]models.Lead, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorageRead, "create data directory", err)
		}
		return []models.Lead{}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageRead, "read "+f.path, err)
	}

	leads, err := DecodeLeads(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistedStateUnreadable, "parse "+f.path, err)
	}
	return leads, nil
}

// Save writes leads to a temporary file beside the target and renames it
// into place.
func (f *JSONFile) Save(leads []models.Lead) error {
	data, err := EncodeLeads(leads)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageWrite, "encode leads", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageWrite, "create data directory", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageWrite, "write "+tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return apperrors.Wrap(apperrors.ErrStorageWrite, "replace "+f.path, err)
	}
	return nil
}

// Quarantine renames the current file to <path>.unreadable-<timestamp>.
func (f *JSONFile) Quarantine() (string, error) {
	dst := fmt.Sprintf("%s.unreadable-%s", f.path, f.now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(f.path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Close is a no-op; the file is only open during Load and Save.
func (f *JSONFile) Close() error {
	return nil
}

// EncodeLeads renders leads in the on-disk format: an indented JSON array
// with a trailing newline. Equal input always produces identical bytes.
func EncodeLeads(leads []models.Lead) ([]byte, error) {
	if leads == nil {
		leads = []models.Lead{}
	}
	data, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeLeads parses the on-disk format. A JSON null decodes to an empty
// collection.
func DecodeLeads(data []byte) ([]models.Lead, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var leads []models.Lead
	if err := dec.Decode(&leads); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after lead array")
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	return leads, nil
}
