package models

import "time"

// ArchiveManifestVersion is written into every backup archive.
const ArchiveManifestVersion = "1.0"

// ArchiveManifest describes the contents of a lead backup archive.
type ArchiveManifest struct {
	Version    string `json:"version"`
	ExportedAt int64  `json:"exported_at"`
	ItemCount  int    `json:"item_count"`
	Checksum   string `json:"checksum"` // SHA-256 of leads.json, hex
}

// ExportedAtTime returns the ExportedAt as time.Time.
func (m *ArchiveManifest) ExportedAtTime() time.Time {
	return time.Unix(m.ExportedAt, 0)
}
