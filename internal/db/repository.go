package db

import (
	"database/sql"
	"fmt"
	"sync"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/models"
	"github.com/kimhsiao/leadbook/internal/store"
)

const (
	selectLeadsQuery = `
	SELECT id, first_name, last_name, address_line1, address_line2, city, state, zip,
		   phone, email, notes, referred_by, referred_to, job_type, lead_status
	FROM leads ORDER BY position
	`

	insertLeadQuery = `
	INSERT INTO leads (position, id, first_name, last_name, address_line1, address_line2,
		city, state, zip, phone, email, notes, referred_by, referred_to, job_type, lead_status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	countLeadsQuery = `SELECT COUNT(*) FROM leads`
)

var _ store.Persister = (*Repository)(nil)

// Repository stores the lead collection in the leads table. Row order is
// kept in the position column.
type Repository struct {
	db *DB

	// Prepared statements are created on first use and reused.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a Repository on an open, migrated database.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// OpenRepository opens the database in dataDir, brings its schema up to date
// and returns a Repository that owns the connection.
func OpenRepository(dataDir string) (*Repository, error) {
	db, err := Open(dataDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "open database", err)
	}
	m := NewMigrator(db.DB, Migrations())
	if err := m.Up(); err != nil {
		db.Close()
		return nil, err
	}
	if err := m.Verify(); err != nil {
		db.Close()
		return nil, err
	}
	return NewRepository(db), nil
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	// Another goroutine may have stored one first; keep theirs.
	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Location returns the database file path.
func (r *Repository) Location() string {
	return r.db.Path()
}

// Load returns every lead in position order.
func (r *Repository) Load() ([]models.Lead, error) {
	stmt, err := r.PrepareStmt(selectLeadsQuery)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageRead, "prepare lead query", err)
	}
	rows, err := stmt.Query()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageRead, "query leads", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		var l models.Lead
		var jobType, status string
		err := rows.Scan(
			&l.ID, &l.FirstName, &l.LastName, &l.AddressLine1, &l.AddressLine2,
			&l.City, &l.State, &l.Zip, &l.Phone, &l.Email, &l.Notes,
			&l.ReferredBy, &l.ReferredTo, &jobType, &status,
		)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorageRead, "scan lead", err)
		}
		l.JobType = models.JobType(jobType)
		if jt, err := models.ParseJobType(jobType); err == nil {
			l.JobType = jt
		}
		l.Status = models.LeadStatus(status)
		if st, err := models.ParseLeadStatus(status); err == nil {
			l.Status = st
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageRead, "read leads", err)
	}
	return leads, nil
}

// Save replaces the whole table with leads in a single transaction.
func (r *Repository) Save(leads []models.Lead) error {
	insert, err := r.PrepareStmt(insertLeadQuery)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageWrite, "prepare insert", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageWrite, "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM leads"); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageWrite, "clear leads", err)
	}

	stmt := tx.Stmt(insert)
	for i, l := range leads {
		_, err := stmt.Exec(i, l.ID, l.FirstName, l.LastName, l.AddressLine1, l.AddressLine2,
			l.City, l.State, l.Zip, l.Phone, l.Email, l.Notes, l.ReferredBy, l.ReferredTo,
			string(l.JobType), string(l.Status))
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStorageWrite, fmt.Sprintf("insert lead %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageWrite, "commit leads", err)
	}
	return nil
}

// Count returns the number of stored leads.
func (r *Repository) Count() (int, error) {
	stmt, err := r.PrepareStmt(countLeadsQuery)
	if err != nil {
		return 0, err
	}
	var n int
	err = stmt.QueryRow().Scan(&n)
	return n, err
}

// Close closes all cached prepared statements and the database.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value any) bool {
		if err := value.(*sql.Stmt).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.stmtCache.Delete(key)
		return true
	})
	if err := r.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
