package store

import "github.com/kimhsiao/leadbook/internal/models"

// Persister is the durable representation of the lead collection. Load and
// Save always move the whole collection; there are no partial writes.
type Persister interface {
	// Load returns the persisted leads in stored order. A missing store
	// yields an empty collection. Content that cannot be parsed yields an
	// error coded PERSISTED_STATE_UNREADABLE.
	Load() ([]models.Lead, error)

	// Save overwrites the persisted collection with leads.
	Save(leads []models.Lead) error

	// Location describes where the leads live, for logs and messages.
	Location() string

	Close() error
}

// Quarantiner is implemented by persisters that can move unreadable content
// aside so the next Save does not destroy it.
type Quarantiner interface {
	// Quarantine moves the unreadable content and returns where it went.
	Quarantine() (string, error)
}
