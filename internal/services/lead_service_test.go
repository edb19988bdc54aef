// Package services tests for lead orchestration.
package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kimhsiao/leadbook/internal/config"
	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/export"
	"github.com/kimhsiao/leadbook/internal/export/backup"
	"github.com/kimhsiao/leadbook/internal/logging"
	"github.com/kimhsiao/leadbook/internal/models"
	"github.com/kimhsiao/leadbook/internal/store"
)

type recordedEvent struct {
	name string
	data map[string]any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) record(name string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name, data})
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.name)
	}
	return out
}

func (r *eventRecorder) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func testLogger() *logging.Logger {
	return logging.New(&bytes.Buffer{}, logging.LevelError, logging.FormatJSON)
}

// newTestService returns a service over a JSON file in a temp dir.
func newTestService(t *testing.T, opts Options) (*LeadService, *eventRecorder, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "leads_data.json")

	st := store.New(store.NewJSONFile(path), testLogger())
	if err := st.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if opts.ExportDir == "" {
		opts.ExportDir = dir
	}
	svc := NewLeadService(st, export.NewService(export.Options{}, testLogger()), opts, testLogger())
	rec := &eventRecorder{}
	svc.SetEventCallback(rec.record)
	return svc, rec, path
}

func mustCreate(t *testing.T, svc *LeadService, first, last string) models.Lead {
	t.Helper()
	lead, _, err := svc.Create(map[models.Field]string{
		models.FieldFirstName: first,
		models.FieldLastName:  last,
	})
	if err != nil {
		t.Fatalf("Create(%s %s) error = %v", first, last, err)
	}
	return lead
}

// =====================================================
// CRUD Tests
// =====================================================

// TestLeadService_Create verifies creation, event emission and positions.
func TestLeadService_Create(t *testing.T) {
	svc, rec, _ := newTestService(t, Options{})

	a := mustCreate(t, svc, "Ann", "Able")
	b, index, err := svc.Create(map[models.Field]string{models.FieldFirstName: "Ben"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if index != 1 {
		t.Errorf("index = %d, want 1", index)
	}
	if b.Status != models.StatusInSystem {
		t.Errorf("Status = %q, want %q", b.Status, models.StatusInSystem)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("IDs not unique: %q, %q", a.ID, b.ID)
	}
	if svc.Len() != 2 || !svc.Dirty() {
		t.Errorf("Len() = %d, Dirty() = %v; want 2, true", svc.Len(), svc.Dirty())
	}

	names := rec.names()
	if len(names) != 2 || names[0] != EventLeadCreated {
		t.Errorf("events = %v, want two %s", names, EventLeadCreated)
	}
	if got := rec.last().data["index"]; got != 1 {
		t.Errorf("event index = %v, want 1", got)
	}
}

// TestLeadService_CreateInvalid verifies a bad enum value is rejected without an event.
func TestLeadService_CreateInvalid(t *testing.T) {
	svc, rec, _ := newTestService(t, Options{})

	_, _, err := svc.Create(map[models.Field]string{models.FieldJobType: "Industrial"})
	if !apperrors.Is(err, apperrors.ErrInvalidValue) {
		t.Fatalf("Create() error = %v, want INVALID_VALUE", err)
	}
	if svc.Len() != 0 || len(rec.names()) != 0 {
		t.Errorf("store or events changed on failure")
	}
}

func TestLeadService_GetAndAt(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	mustCreate(t, svc, "Ann", "Able")
	b := mustCreate(t, svc, "Ben", "Baker")

	got, index, err := svc.Get(b.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if index != 1 || got.FirstName != "Ben" {
		t.Errorf("Get() = %q at %d, want Ben at 1", got.FirstName, index)
	}

	if _, _, err := svc.Get("01890a5d-ac96-774b-bcce-b302099a8057"); !apperrors.Is(err, apperrors.ErrLeadNotFound) {
		t.Errorf("Get(unknown) error = %v, want LEAD_NOT_FOUND", err)
	}

	if _, err := svc.At(2); !apperrors.Is(err, apperrors.ErrIndexOutOfRange) {
		t.Errorf("At(2) error = %v, want INDEX_OUT_OF_RANGE", err)
	}
}

// TestLeadService_Update verifies field updates by ID and by position.
func TestLeadService_Update(t *testing.T) {
	svc, rec, _ := newTestService(t, Options{})
	a := mustCreate(t, svc, "Ann", "Able")
	mustCreate(t, svc, "Ben", "Baker")

	lead, index, err := svc.Update(a.ID, models.FieldPhone, "555-1212")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if index != 0 || lead.Phone != "555-1212" {
		t.Errorf("Update() = %q at %d", lead.Phone, index)
	}
	if e := rec.last(); e.name != EventLeadUpdated || e.data["field"] != "Phone" {
		t.Errorf("last event = %v", e)
	}

	lead, err = svc.UpdateAt(1, models.FieldLeadStatus, "good lead")
	if err != nil {
		t.Fatalf("UpdateAt() error = %v", err)
	}
	if lead.Status != models.StatusGoodLead {
		t.Errorf("Status = %q, want %q", lead.Status, models.StatusGoodLead)
	}

	if _, err := svc.UpdateAt(5, models.FieldPhone, "x"); !apperrors.Is(err, apperrors.ErrIndexOutOfRange) {
		t.Errorf("UpdateAt(5) error = %v, want INDEX_OUT_OF_RANGE", err)
	}
	if _, _, err := svc.Update(a.ID, models.Field("Favourite Colour"), "x"); !apperrors.Is(err, apperrors.ErrInvalidField) {
		t.Errorf("Update(bad field) error = %v, want INVALID_FIELD", err)
	}
}

// TestLeadService_Delete verifies deletion shifts later leads down.
func TestLeadService_Delete(t *testing.T) {
	svc, rec, _ := newTestService(t, Options{})
	a := mustCreate(t, svc, "Ann", "Able")
	b := mustCreate(t, svc, "Ben", "Baker")
	c := mustCreate(t, svc, "Cal", "Cole")

	deleted, err := svc.Delete(b.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted.ID != b.ID {
		t.Errorf("Delete() returned %q, want %q", deleted.ID, b.ID)
	}
	if e := rec.last(); e.name != EventLeadDeleted || e.data["index"] != 1 {
		t.Errorf("last event = %v", e)
	}

	if _, index, _ := svc.Get(c.ID); index != 1 {
		t.Errorf("Cal index = %d after delete, want 1", index)
	}

	deleted, err = svc.DeleteAt(0)
	if err != nil {
		t.Fatalf("DeleteAt() error = %v", err)
	}
	if deleted.ID != a.ID {
		t.Errorf("DeleteAt(0) returned %q, want %q", deleted.ID, a.ID)
	}

	if _, err := svc.Delete(b.ID); !apperrors.Is(err, apperrors.ErrLeadNotFound) {
		t.Errorf("Delete(again) error = %v, want LEAD_NOT_FOUND", err)
	}
	if _, err := svc.DeleteAt(1); !apperrors.Is(err, apperrors.ErrIndexOutOfRange) {
		t.Errorf("DeleteAt(1) error = %v, want INDEX_OUT_OF_RANGE", err)
	}
	if svc.Len() != 1 {
		t.Errorf("Len() = %d, want 1", svc.Len())
	}
}

// =====================================================
// Persistence Tests
// =====================================================

func TestLeadService_SaveAndClose(t *testing.T) {
	svc, rec, path := newTestService(t, Options{})
	mustCreate(t, svc, "Ann", "Able")

	if err := svc.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if svc.Dirty() {
		t.Error("Dirty() = true after Save")
	}
	if e := rec.last(); e.name != EventLeadsSaved || e.data["count"] != 1 {
		t.Errorf("last event = %v", e)
	}

	mustCreate(t, svc, "Ben", "Baker")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := store.New(store.NewJSONFile(path), testLogger())
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reopened.Len() != 2 {
		t.Errorf("persisted %d leads, want 2", reopened.Len())
	}
}

// failingPersister loads nothing and fails every write and close.
type failingPersister struct {
	saveErr  error
	closeErr error
}

func (p *failingPersister) Load() ([]models.Lead, error) { return nil, nil }
func (p *failingPersister) Save([]models.Lead) error     { return p.saveErr }
func (p *failingPersister) Location() string             { return "memory" }
func (p *failingPersister) Close() error                 { return p.closeErr }

// TestLeadService_CloseReportsEveryFailure verifies a failed save does not
// hide a failed close.
func TestLeadService_CloseReportsEveryFailure(t *testing.T) {
	p := &failingPersister{
		saveErr:  apperrors.New(apperrors.ErrStorageWrite, "disk full"),
		closeErr: errors.New("handle already released"),
	}
	st := store.New(p, testLogger())
	if err := st.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	svc := NewLeadService(st, export.NewService(export.Options{}, testLogger()), Options{}, testLogger())
	mustCreate(t, svc, "Ann", "Able")

	err := svc.Close()
	if err == nil {
		t.Fatal("Close() error = nil, want save and close failures")
	}
	if !errors.Is(err, p.saveErr) {
		t.Errorf("Close() error %q is missing the save failure", err)
	}
	if !errors.Is(err, p.closeErr) {
		t.Errorf("Close() error %q is missing the close failure", err)
	}
	if !apperrors.Is(err, apperrors.ErrStorageWrite) {
		t.Errorf("Close() error code = %v, want %v", apperrors.CodeOf(err), apperrors.ErrStorageWrite)
	}
}

// TestOpen verifies both storage backends open through settings.
func TestOpen(t *testing.T) {
	for _, backend := range []string{config.BackendJSON, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			settings := config.Defaults()
			settings.Storage.Backend = backend
			settings.Storage.Path = filepath.Join(dir, "leads_data.json")
			settings.Export.Dir = dir
			settings.Backup.Dir = filepath.Join(dir, "backups")

			svc, err := Open(settings, testLogger())
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			mustCreate(t, svc, "Ann", "Able")
			if err := svc.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			svc, err = Open(settings, testLogger())
			if err != nil {
				t.Fatalf("reopen error = %v", err)
			}
			defer svc.Close()
			if svc.Len() != 1 {
				t.Errorf("Len() = %d after reopen, want 1", svc.Len())
			}
		})
	}
}

func TestOpen_UnreadableFileIsAWarning(t *testing.T) {
	dir := t.TempDir()
	settings := config.Defaults()
	settings.Storage.Path = filepath.Join(dir, "leads_data.json")
	if err := os.WriteFile(settings.Storage.Path, []byte("{not valid"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc, err := Open(settings, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer svc.Close()

	if !apperrors.Is(svc.LoadWarning(), apperrors.ErrPersistedStateUnreadable) {
		t.Errorf("LoadWarning() = %v, want PERSISTED_STATE_UNREADABLE", svc.LoadWarning())
	}
	if svc.Len() != 0 {
		t.Errorf("Len() = %d, want 0", svc.Len())
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	settings := config.Defaults()
	settings.Storage.Backend = "mongo"
	if _, err := Open(settings, testLogger()); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("Open() error = %v, want CONFIG_INVALID", err)
	}
}

// =====================================================
// Export Tests
// =====================================================

// TestLeadService_Export verifies relative paths land in the export directory.
func TestLeadService_Export(t *testing.T) {
	svc, rec, _ := newTestService(t, Options{})
	mustCreate(t, svc, "Ann", "Able")

	res, err := svc.Export(context.Background(), export.FormatCSV, "out.csv", "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Path != svc.ExportPath("out.csv") || filepath.Base(res.Path) != "out.csv" || !filepath.IsAbs(res.Path) {
		t.Errorf("Path = %q", res.Path)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
	if e := rec.last(); e.name != EventExportCompleted || e.data["count"] != 1 {
		t.Errorf("last event = %v", e)
	}
}

func TestLeadService_ExportFailure(t *testing.T) {
	svc, rec, _ := newTestService(t, Options{})

	_, err := svc.Export(context.Background(), export.FormatTXT, filepath.Join(t.TempDir(), "missing", "out.txt"), "")
	if !apperrors.Is(err, apperrors.ErrDestinationWrite) {
		t.Fatalf("Export() error = %v, want DESTINATION_WRITE_FAILED", err)
	}
	e := rec.last()
	if e.name != EventExportFailed || e.data["code"] != string(apperrors.ErrDestinationWrite) {
		t.Errorf("last event = %v", e)
	}
}

func TestLeadService_ExportUsesExporter(t *testing.T) {
	dir := t.TempDir()
	exportDir := filepath.Join(dir, "exports")
	st := store.New(store.NewJSONFile(filepath.Join(dir, "leads.json")), testLogger())
	mock := export.NewMockExporter()
	svc := NewLeadService(st, mock, Options{ExportDir: exportDir}, testLogger())
	mustCreate(t, svc, "Ann", "Able")

	if _, err := svc.Export(context.Background(), export.FormatPDF, "leads.pdf", ""); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	format, path, leads := mock.GetLastCall()
	if format != export.FormatPDF || path != filepath.Join(exportDir, "leads.pdf") || len(leads) != 1 {
		t.Errorf("last call = %s %s %d", format, path, len(leads))
	}
	if info, err := os.Stat(exportDir); err != nil || !info.IsDir() {
		t.Errorf("export dir not created: %v", err)
	}
}

// =====================================================
// Backup Tests
// =====================================================

// TestLeadService_BackupRestore verifies a backup restores the collection it captured.
func TestLeadService_BackupRestore(t *testing.T) {
	backupDir := filepath.Join(t.TempDir(), "backups")
	svc, rec, _ := newTestService(t, Options{Backup: backup.Config{Dir: backupDir, Keep: 2}})
	mustCreate(t, svc, "Ann", "Able")
	mustCreate(t, svc, "Ben", "Baker")

	res, err := svc.Backup()
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	latest, err := svc.LatestBackup()
	if err != nil {
		t.Fatalf("LatestBackup() error = %v", err)
	}
	if latest.Path != res.Path {
		t.Errorf("LatestBackup() = %q, want %q", latest.Path, res.Path)
	}

	if _, err := svc.DeleteAt(0); err != nil {
		t.Fatal(err)
	}
	mustCreate(t, svc, "Cal", "Cole")

	count, err := svc.Restore(res.Path, "")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Restore() = %d, want 2", count)
	}
	leads := svc.List()
	if leads[0].FirstName != "Ann" || leads[1].FirstName != "Ben" {
		t.Errorf("restored %q, %q", leads[0].FirstName, leads[1].FirstName)
	}
	if !svc.Dirty() {
		t.Error("Dirty() = false after restore")
	}
	if e := rec.last(); e.name != EventLeadsRestored {
		t.Errorf("last event = %v", e)
	}
}

func TestLeadService_RestoreFailureKeepsLeads(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	mustCreate(t, svc, "Ann", "Able")

	if _, err := svc.Restore(filepath.Join(t.TempDir(), "missing.tar.gz"), ""); err == nil {
		t.Fatal("Restore(missing) succeeded")
	}
	if svc.Len() != 1 {
		t.Errorf("Len() = %d, want 1", svc.Len())
	}
}

func TestLeadService_BackupNotConfigured(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	if _, err := svc.Backup(); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("Backup() error = %v, want CONFIG_INVALID", err)
	}
	if _, err := svc.Backups(); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("Backups() error = %v, want CONFIG_INVALID", err)
	}
}

func TestLeadService_BackupOnExit(t *testing.T) {
	backupDir := filepath.Join(t.TempDir(), "backups")
	svc, _, _ := newTestService(t, Options{Backup: backup.Config{Dir: backupDir}, BackupOnExit: true})
	mustCreate(t, svc, "Ann", "Able")

	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("backups written = %d, want 1", len(entries))
	}
}

// TestLeadService_ConcurrentAccess verifies the service serialises concurrent callers.
func TestLeadService_ConcurrentAccess(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			lead, _, err := svc.Create(map[models.Field]string{models.FieldFirstName: "Worker"})
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			if _, _, err := svc.Update(lead.ID, models.FieldNotes, "touched"); err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = svc.List()
		}()
	}
	wg.Wait()

	if svc.Len() != 20 {
		t.Errorf("Len() = %d, want 20", svc.Len())
	}
}
