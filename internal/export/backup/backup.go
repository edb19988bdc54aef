// Package backup writes timestamped lead archives into a directory and
// prunes old ones.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/export"
	"github.com/kimhsiao/leadbook/internal/logging"
	"github.com/kimhsiao/leadbook/internal/models"
)

const (
	filePrefix = "leads_"
	fileSuffix = ".tar.gz"
	timeLayout = "20060102_150405"
)

// Config holds the backup configuration.
type Config struct {
	Dir      string // Directory to store archives
	Keep     int    // Number of archives to keep (0 = unlimited)
	Password string // Password for encryption (empty = no encryption)
}

// ArchiveInfo represents metadata about a backup archive.
type ArchiveInfo struct {
	Path      string
	SizeBytes int64
	CreatedAt time.Time

	seq int // same-second counter from the file name, 1 when absent
}

// Manager writes and prunes backups.
type Manager struct {
	exporter export.Exporter
	config   Config
	logger   *logging.Logger
	now      func() time.Time
}

// NewManager creates a backup manager. A nil logger uses the global one.
func NewManager(exporter export.Exporter, config Config, logger *logging.Logger) *Manager {
	if config.Keep < 0 {
		config.Keep = 0
	}
	if logger == nil {
		logger = logging.Get()
	}
	return &Manager{
		exporter: exporter,
		config:   config,
		logger:   logger.With(map[string]any{"component": "backup"}),
		now:      time.Now,
	}
}

// Run writes one archive of leads and applies the retention policy.
func (m *Manager) Run(leads []models.Lead) (*export.Result, error) {
	if err := os.MkdirAll(m.config.Dir, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDestinationWrite, "create backup directory", err)
	}

	path := m.nextPath()
	result, err := m.exporter.ExportArchive(leads, path, m.config.Password)
	if err != nil {
		return nil, err
	}
	m.logger.Info("backup written", map[string]any{
		"file":       result.Path,
		"size_bytes": result.SizeBytes,
		"count":      result.Count,
		"encrypted":  m.config.Password != "",
	})

	if m.config.Keep > 0 {
		if err := m.applyRetentionPolicy(); err != nil {
			// The new archive is already safe on disk.
			m.logger.Error("retention policy failed", err)
		}
	}
	return result, nil
}

// List returns the archives in the backup directory, oldest first.
func (m *Manager) List() ([]*ArchiveInfo, error) {
	entries, err := os.ReadDir(m.config.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageRead, "list backups", err)
	}

	var archives []*ArchiveInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		created, seq, ok := parseName(name)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archives = append(archives, &ArchiveInfo{
			Path:      filepath.Join(m.config.Dir, name),
			SizeBytes: info.Size(),
			CreatedAt: created,
			seq:       seq,
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		a, b := archives[i], archives[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.seq < b.seq
	})
	return archives, nil
}

// parseName reads the timestamp and optional _N counter written by nextPath.
func parseName(name string) (time.Time, int, bool) {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if len(stamp) < len(timeLayout) {
		return time.Time{}, 0, false
	}
	created, err := time.ParseInLocation(timeLayout, stamp[:len(timeLayout)], time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}

	rest := stamp[len(timeLayout):]
	if rest == "" {
		return created, 1, true
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(rest, "_"))
	if err != nil || !strings.HasPrefix(rest, "_") || seq < 1 {
		return time.Time{}, 0, false
	}
	return created, seq, true
}

// Latest returns the newest archive, or NOT_FOUND when there is none.
func (m *Manager) Latest() (*ArchiveInfo, error) {
	archives, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		return nil, apperrors.New(apperrors.ErrNotFound, "no backups in "+m.config.Dir)
	}
	return archives[len(archives)-1], nil
}

// nextPath names the archive for now, adding a counter above any backup
// from the same second, including ones already pruned down to a later counter.
func (m *Manager) nextPath() string {
	stamp := m.now().Format(timeLayout)
	seq := 0
	archives, _ := m.List()
	for _, a := range archives {
		if a.CreatedAt.Format(timeLayout) == stamp {
			seq = max(seq, a.seq)
		}
	}

	for i := seq + 1; ; i++ {
		path := filepath.Join(m.config.Dir, filePrefix+stamp+fileSuffix)
		if i > 1 {
			path = filepath.Join(m.config.Dir, fmt.Sprintf("%s%s_%d%s", filePrefix, stamp, i, fileSuffix))
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}

// applyRetentionPolicy removes the oldest archives beyond Keep.
func (m *Manager) applyRetentionPolicy() error {
	archives, err := m.List()
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}
	if len(archives) <= m.config.Keep {
		return nil
	}

	for _, archive := range archives[:len(archives)-m.config.Keep] {
		if err := os.Remove(archive.Path); err != nil {
			m.logger.Error("failed to delete old archive", err, map[string]any{"path": archive.Path})
			continue
		}
		m.logger.Info("deleted old archive", map[string]any{"path": archive.Path})
	}
	return nil
}
