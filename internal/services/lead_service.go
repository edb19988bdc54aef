// Package services coordinates the lead store, exporters and backups for the
// presentation layers. LeadService serialises access to the store, which is
// not safe for concurrent use on its own.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kimhsiao/leadbook/internal/config"
	"github.com/kimhsiao/leadbook/internal/db"
	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/export"
	"github.com/kimhsiao/leadbook/internal/export/backup"
	"github.com/kimhsiao/leadbook/internal/logging"
	"github.com/kimhsiao/leadbook/internal/models"
	"github.com/kimhsiao/leadbook/internal/store"
)

// Event types passed to the event callback.
const (
	EventLeadCreated     = "leads.created"
	EventLeadUpdated     = "leads.updated"
	EventLeadDeleted     = "leads.deleted"
	EventLeadsSaved      = "leads.saved"
	EventLeadsRestored   = "leads.restored"
	EventExportCompleted = "export.completed"
	EventExportFailed    = "export.failed"
)

// EventFunc receives change notifications after the store lock is released.
type EventFunc func(event string, data map[string]any)

// Options configures a LeadService.
type Options struct {
	// ExportDir resolves relative export destinations.
	ExportDir string
	// Backup enables Backup and Restore when Dir is set.
	Backup backup.Config
	// BackupOnExit writes a backup from Close.
	BackupOnExit bool
}

// LeadService is the single entry point the CLI and desktop API use.
type LeadService struct {
	mu       sync.RWMutex
	store    *store.Store
	exporter export.Exporter
	backups  *backup.Manager
	opts     Options
	log      *logging.Logger

	onEvent EventFunc
}

// NewLeadService wraps an already loaded store.
func NewLeadService(st *store.Store, exporter export.Exporter, opts Options, log *logging.Logger) *LeadService {
	if log == nil {
		log = logging.Get()
	}
	s := &LeadService{
		store:    st,
		exporter: exporter,
		opts:     opts,
		log:      log.With(map[string]any{"component": "leads"}),
	}
	if opts.Backup.Dir != "" {
		s.backups = backup.NewManager(exporter, opts.Backup, log)
	}
	return s
}

// Open builds the persister selected by settings, loads the store and wires
// the exporters. A recovered unreadable file is reported by LoadWarning, not
// as an error.
func Open(settings *config.Settings, log *logging.Logger) (*LeadService, error) {
	if log == nil {
		log = logging.Get()
	}

	var p store.Persister
	switch settings.Storage.Backend {
	case config.BackendSQLite:
		repo, err := db.OpenRepository(settings.Storage.Dir())
		if err != nil {
			return nil, err
		}
		p = repo
	case config.BackendJSON, "":
		p = store.NewJSONFile(settings.Storage.Path)
	default:
		return nil, apperrors.Newf(apperrors.ErrConfigInvalid, "unknown storage backend %q", settings.Storage.Backend)
	}

	st := store.New(p, log)
	if err := st.Load(); err != nil {
		p.Close()
		return nil, err
	}

	exporter := export.NewService(export.Options{LogoPath: settings.Export.Logo}, log)
	return NewLeadService(st, exporter, Options{
		ExportDir: settings.Export.Dir,
		Backup: backup.Config{
			Dir:      settings.Backup.Dir,
			Keep:     settings.Backup.Keep,
			Password: settings.Backup.Password,
		},
		BackupOnExit: settings.Backup.OnExit,
	}, log), nil
}

// SetEventCallback registers fn for change notifications.
func (s *LeadService) SetEventCallback(fn EventFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = fn
}

func (s *LeadService) emit(event string, data map[string]any) {
	s.mu.RLock()
	fn := s.onEvent
	s.mu.RUnlock()
	if fn != nil {
		fn(event, data)
	}
}

// LoadWarning returns the recovered load error, if any.
func (s *LeadService) LoadWarning() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.LoadWarning()
}

// Location describes where leads are persisted.
func (s *LeadService) Location() string {
	return s.store.Location()
}

// Dirty reports unsaved changes.
func (s *LeadService) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Dirty()
}

// Len returns the number of leads.
func (s *LeadService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Len()
}

// List returns a copy of every lead in order.
func (s *LeadService) List() []models.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.All()
}

// Get returns a lead and its current position.
func (s *LeadService) Get(id string) (models.Lead, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, err := s.store.IndexOf(id)
	if err != nil {
		return models.Lead{}, -1, err
	}
	lead, err := s.store.At(i)
	return lead, i, err
}

// At returns the lead at position index.
func (s *LeadService) At(index int) (models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.At(index)
}

// Create adds a lead built from values.
func (s *LeadService) Create(values map[models.Field]string) (models.Lead, int, error) {
	s.mu.Lock()
	lead, index, err := s.store.Create(values)
	s.mu.Unlock()
	if err != nil {
		return models.Lead{}, -1, err
	}

	s.log.Info("lead created", map[string]any{"id": lead.ID, "index": index})
	s.emit(EventLeadCreated, map[string]any{"id": lead.ID, "index": index, "lead": lead})
	return lead, index, nil
}

// Update sets one field of the lead with the given ID and returns the
// updated lead.
func (s *LeadService) Update(id string, field models.Field, value string) (models.Lead, int, error) {
	s.mu.Lock()
	index, err := s.store.IndexOf(id)
	if err == nil {
		err = s.store.UpdateField(index, field, value)
	}
	var lead models.Lead
	if err == nil {
		lead, err = s.store.At(index)
	}
	s.mu.Unlock()
	if err != nil {
		return models.Lead{}, -1, err
	}

	s.updated(lead, index, field)
	return lead, index, nil
}

// UpdateAt sets one field of the lead at position index.
func (s *LeadService) UpdateAt(index int, field models.Field, value string) (models.Lead, error) {
	s.mu.Lock()
	err := s.store.UpdateField(index, field, value)
	var lead models.Lead
	if err == nil {
		lead, err = s.store.At(index)
	}
	s.mu.Unlock()
	if err != nil {
		return models.Lead{}, err
	}

	s.updated(lead, index, field)
	return lead, nil
}

func (s *LeadService) updated(lead models.Lead, index int, field models.Field) {
	s.log.Debug("lead updated", map[string]any{"id": lead.ID, "index": index, "field": string(field)})
	s.emit(EventLeadUpdated, map[string]any{"id": lead.ID, "index": index, "field": string(field), "lead": lead})
}

// Delete removes the lead with the given ID and returns it.
func (s *LeadService) Delete(id string) (models.Lead, error) {
	s.mu.Lock()
	index, err := s.store.IndexOf(id)
	if err != nil {
		s.mu.Unlock()
		return models.Lead{}, err
	}
	lead, err := s.deleteLocked(index)
	s.mu.Unlock()
	if err != nil {
		return models.Lead{}, err
	}
	s.deleted(lead, index)
	return lead, nil
}

// DeleteAt removes the lead at position index and returns it.
func (s *LeadService) DeleteAt(index int) (models.Lead, error) {
	s.mu.Lock()
	lead, err := s.deleteLocked(index)
	s.mu.Unlock()
	if err != nil {
		return models.Lead{}, err
	}
	s.deleted(lead, index)
	return lead, nil
}

func (s *LeadService) deleteLocked(index int) (models.Lead, error) {
	lead, err := s.store.At(index)
	if err != nil {
		return models.Lead{}, err
	}
	if err := s.store.Delete(index); err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

func (s *LeadService) deleted(lead models.Lead, index int) {
	s.log.Info("lead deleted", map[string]any{"id": lead.ID, "index": index})
	s.emit(EventLeadDeleted, map[string]any{"id": lead.ID, "index": index})
}

// Save persists the collection.
func (s *LeadService) Save() error {
	s.mu.Lock()
	err := s.store.Save()
	count := s.store.Len()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.emit(EventLeadsSaved, map[string]any{"count": count, "location": s.store.Location()})
	return nil
}

// ExportPath resolves a relative destination against the export directory.
func (s *LeadService) ExportPath(path string) string {
	if filepath.IsAbs(path) || s.opts.ExportDir == "" {
		return path
	}
	return filepath.Join(s.opts.ExportDir, path)
}

// Export writes every lead to path in format. A password only applies to
// archives.
func (s *LeadService) Export(ctx context.Context, format export.Format, path, password string) (*export.Result, error) {
	path = s.ExportPath(path)
	leads := s.List()

	res, err := s.export(ctx, format, leads, path, password)
	if err != nil {
		s.emit(EventExportFailed, map[string]any{
			"format": string(format),
			"path":   path,
			"code":   string(apperrors.CodeOf(err)),
			"error":  err.Error(),
		})
		return nil, err
	}
	s.emit(EventExportCompleted, map[string]any{
		"format":     string(res.Format),
		"path":       res.Path,
		"count":      res.Count,
		"size_bytes": res.SizeBytes,
		"checksum":   res.Checksum,
	})
	return res, nil
}

func (s *LeadService) export(ctx context.Context, format export.Format, leads []models.Lead, path, password string) (*export.Result, error) {
	// The configured export directory is created on first use.
	if dir := filepath.Dir(path); s.opts.ExportDir != "" && dir == filepath.Clean(s.opts.ExportDir) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDestinationWrite, "create "+dir, err)
		}
	}
	if format == export.FormatArchive && password != "" {
		return s.exporter.ExportArchive(leads, path, password)
	}
	return s.exporter.Export(ctx, format, leads, path)
}

// Backup writes a timestamped archive into the backup directory.
func (s *LeadService) Backup() (*export.Result, error) {
	if s.backups == nil {
		return nil, apperrors.New(apperrors.ErrConfigInvalid, "backup.dir is not configured")
	}
	return s.backups.Run(s.List())
}

// Backups lists the archives in the backup directory, oldest first.
func (s *LeadService) Backups() ([]*backup.ArchiveInfo, error) {
	if s.backups == nil {
		return nil, apperrors.New(apperrors.ErrConfigInvalid, "backup.dir is not configured")
	}
	return s.backups.List()
}

// LatestBackup returns the newest archive in the backup directory.
func (s *LeadService) LatestBackup() (*backup.ArchiveInfo, error) {
	if s.backups == nil {
		return nil, apperrors.New(apperrors.ErrConfigInvalid, "backup.dir is not configured")
	}
	return s.backups.Latest()
}

// Restore replaces the collection with the leads of an archive. The store
// is left untouched when the archive cannot be read. The result is not
// saved until Save or Close.
func (s *LeadService) Restore(path, password string) (int, error) {
	archive, err := export.ReadArchive(path, password)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.store.Replace(archive.Leads)
	count := s.store.Len()
	s.mu.Unlock()

	s.log.Info("leads restored", map[string]any{
		"archive":     path,
		"count":       count,
		"exported_at": archive.Manifest.ExportedAtTime().Format("2006-01-02 15:04:05"),
	})
	s.emit(EventLeadsRestored, map[string]any{"count": count, "archive": path})
	return count, nil
}

// Close saves pending changes, writes the exit backup when configured and
// releases the persister. The persister is closed even if saving fails.
func (s *LeadService) Close() error {
	var errs []error
	if s.Dirty() {
		if err := s.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.opts.BackupOnExit && s.backups != nil {
		if _, err := s.Backup(); err != nil {
			s.log.Error("exit backup failed", err)
		}
	}

	s.mu.Lock()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	s.mu.Unlock()

	return errors.Join(errs...)
}
