// Package store owns the ordered in-memory lead collection and moves it to
// and from durable storage.
//
// A Store is not safe for concurrent use. Callers that share one across
// goroutines must serialise access themselves.
package store

import (
	"slices"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/logging"
	"github.com/kimhsiao/leadbook/internal/models"
	"github.com/kimhsiao/leadbook/internal/uuid"
)

// Store is the authoritative lead collection. Order is insertion order.
// Leads are addressed either by position or by their stable ID.
type Store struct {
	persister   Persister
	log         *logging.Logger
	leads       []models.Lead
	dirty       bool
	loadWarning error
}

// New creates an empty Store backed by p. A nil logger uses the global one.
func New(p Persister, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Get()
	}
	return &Store{
		persister: p,
		log:       log.With(map[string]any{"store": p.Location()}),
		leads:     []models.Lead{},
	}
}

// Load replaces the in-memory collection with the persisted one.
//
// Unreadable content is not an error: the collection becomes empty, the
// content is moved aside when the persister supports it, and the cause is
// kept for LoadWarning.
func (s *Store) Load() error {
	s.loadWarning = nil
	leads, err := s.persister.Load()
	if apperrors.Is(err, apperrors.ErrPersistedStateUnreadable) {
		ctx := map[string]any{}
		if q, ok := s.persister.(Quarantiner); ok {
			if moved, qerr := q.Quarantine(); qerr != nil {
				s.log.Error("could not move unreadable leads aside", qerr)
			} else {
				ctx["moved_to"] = moved
			}
		}
		s.log.Warn("persisted leads unreadable, starting empty", ctx, map[string]any{"cause": err.Error()})
		s.loadWarning = err
		s.leads = []models.Lead{}
		s.dirty = false
		return nil
	}
	if err != nil {
		return err
	}

	s.leads = leads
	s.dirty = s.ensureIDs()
	s.log.Debug("leads loaded", map[string]any{"count": len(s.leads)})
	return nil
}

// ensureIDs gives every lead a valid, unique ID and reports whether any
// lead changed.
func (s *Store) ensureIDs() bool {
	changed := false
	seen := make(map[string]bool, len(s.leads))
	for i := range s.leads {
		id, err := uuid.Normalize(s.leads[i].ID)
		if err != nil || seen[id] {
			id = uuid.New()
		}
		if id != s.leads[i].ID {
			s.leads[i].ID = id
			changed = true
		}
		seen[id] = true
	}
	return changed
}

// Save writes the whole collection, overwriting previous content.
func (s *Store) Save() error {
	if err := s.persister.Save(s.leads); err != nil {
		return err
	}
	s.dirty = false
	s.log.Debug("leads saved", map[string]any{"count": len(s.leads)})
	return nil
}

// Close releases the persister.
func (s *Store) Close() error {
	return s.persister.Close()
}

// LoadWarning returns why the last Load discarded persisted content, or nil.
func (s *Store) LoadWarning() error {
	return s.loadWarning
}

// Dirty reports whether the collection changed since the last Load or Save.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Location describes where the store persists its leads.
func (s *Store) Location() string {
	return s.persister.Location()
}

// Len returns the number of leads.
func (s *Store) Len() int {
	return len(s.leads)
}

// All returns a copy of the collection in order.
func (s *Store) All() []models.Lead {
	return slices.Clone(s.leads)
}

// At returns the lead at position index.
func (s *Store) At(index int) (models.Lead, error) {
	if err := s.checkIndex(index); err != nil {
		return models.Lead{}, err
	}
	return s.leads[index], nil
}

// Get returns the lead with the given ID.
func (s *Store) Get(id string) (models.Lead, error) {
	i, err := s.IndexOf(id)
	if err != nil {
		return models.Lead{}, err
	}
	return s.leads[i], nil
}

// IndexOf returns the current position of the lead with the given ID.
func (s *Store) IndexOf(id string) (int, error) {
	norm, err := uuid.Normalize(id)
	if err == nil {
		for i := range s.leads {
			if s.leads[i].ID == norm {
				return i, nil
			}
		}
	}
	return -1, apperrors.Newf(apperrors.ErrLeadNotFound, "no lead with ID %q", id)
}

// Create builds a lead from the entry-form values, appends it and returns
// it with its position. The new lead's status is always In System.
func (s *Store) Create(values map[models.Field]string) (models.Lead, int, error) {
	lead, err := models.NewLead(values)
	if err != nil {
		return models.Lead{}, -1, err
	}
	lead.ID = uuid.New()
	s.leads = append(s.leads, lead)
	s.dirty = true
	return lead, len(s.leads) - 1, nil
}

// Replace swaps in a whole new collection, e.g. one restored from a backup.
// Leads without a usable ID get a fresh one.
func (s *Store) Replace(leads []models.Lead) {
	s.leads = slices.Clone(leads)
	if s.leads == nil {
		s.leads = []models.Lead{}
	}
	s.ensureIDs()
	s.dirty = true
}

// UpdateField overwrites one field of the lead at position index. The
// collection is unchanged when an error is returned.
func (s *Store) UpdateField(index int, field models.Field, value string) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	f, err := models.ParseField(string(field))
	if err != nil {
		return err
	}
	lead := s.leads[index]
	if err := lead.Set(f, value); err != nil {
		return err
	}
	s.leads[index] = lead
	s.dirty = true
	return nil
}

// UpdateFieldByID is UpdateField addressed by lead ID.
func (s *Store) UpdateFieldByID(id string, field models.Field, value string) error {
	i, err := s.IndexOf(id)
	if err != nil {
		return err
	}
	return s.UpdateField(i, field, value)
}

// Delete removes the lead at position index. Later leads move down one
// position.
func (s *Store) Delete(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.leads = slices.Delete(s.leads, index, index+1)
	s.dirty = true
	return nil
}

// DeleteByID removes the lead with the given ID.
func (s *Store) DeleteByID(id string) error {
	i, err := s.IndexOf(id)
	if err != nil {
		return err
	}
	return s.Delete(i)
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.leads) {
		return apperrors.Newf(apperrors.ErrIndexOutOfRange, "lead index %d out of range [0,%d)", index, len(s.leads))
	}
	return nil
}
