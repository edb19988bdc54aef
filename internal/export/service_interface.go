package export

import (
	"context"

	"github.com/kimhsiao/leadbook/internal/models"
)

// Exporter is the export contract the presentation layers depend on.
type Exporter interface {
	// Export writes leads to path in the given format.
	Export(ctx context.Context, format Format, leads []models.Lead, path string) (*Result, error)

	// ExportArchive writes a backup archive, encrypted when password is set.
	ExportArchive(leads []models.Lead, path, password string) (*Result, error)
}

// Ensure *Service implements the interface at compile time.
var _ Exporter = (*Service)(nil)
