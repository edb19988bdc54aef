package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kimhsiao/leadbook/internal/export"
	"github.com/kimhsiao/leadbook/internal/services"
)

// ExportHandler handles export, backup and restore operations.
type ExportHandler struct {
	leads *services.LeadService
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(leads *services.LeadService) *ExportHandler {
	return &ExportHandler{leads: leads}
}

// ExportRequest represents the export request body.
type ExportRequest struct {
	Path     string `json:"path"`     // Destination; relative paths use export.dir
	Format   string `json:"format"`   // Optional, inferred from Path when empty
	Password string `json:"password"` // Optional, archives only
}

// RestoreRequest represents the restore request body.
type RestoreRequest struct {
	ArchivePath string `json:"archive_path"` // Empty restores the latest backup
	Password    string `json:"password"`
}

// Export handles POST /api/export
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		badRequest(w, "path is required")
		return
	}

	name := req.Path
	if req.Format != "" {
		name = req.Format
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Password != "" && format != export.FormatArchive {
		badRequest(w, "password only applies to archive exports")
		return
	}

	result, err := h.leads.Export(r.Context(), format, req.Path, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Backup handles POST /api/backup
func (h *ExportHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	result, err := h.leads.Backup()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListBackups handles GET /api/backups
func (h *ExportHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	archives, err := h.leads.Backups()
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(archives))
	for _, a := range archives {
		items = append(items, map[string]any{
			"path":       a.Path,
			"size_bytes": a.SizeBytes,
			"created_at": a.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// Restore handles POST /api/restore
func (h *ExportHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body: "+err.Error())
		return
	}

	path := req.ArchivePath
	if path == "" {
		latest, err := h.leads.LatestBackup()
		if err != nil {
			writeError(w, err)
			return
		}
		path = latest.Path
	}

	count, err := h.leads.Restore(path, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restored": count, "archive_path": path})
}
