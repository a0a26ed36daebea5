package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Solve is a recorded solve. Pairs, Unmatched and Warnings hold JSON as
// produced by the engine.
type Solve struct {
	ID            string          `json:"id"`
	ProfileID     string          `json:"profile_id,omitempty"`
	Mode          string          `json:"mode"`
	Fingerprint   string          `json:"fingerprint"`
	ExpectedPairs int             `json:"expected_pairs"`
	FoundPairs    int             `json:"found_pairs"`
	Unmatched     json.RawMessage `json:"unmatched"`
	Pairs         json.RawMessage `json:"pairs"`
	Warnings      json.RawMessage `json:"warnings"`
	DryRun        bool            `json:"dry_run"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SolveRepository records and lists solves.
type SolveRepository struct {
	db *sql.DB
}

// Solves returns the solve repository for this store.
func (s *Store) Solves() *SolveRepository {
	return &SolveRepository{db: s.db}
}

func rawOrEmpty(m json.RawMessage) string {
	if len(m) == 0 {
		return "[]"
	}
	return string(m)
}

// Create records a solve.
func (r *SolveRepository) Create(s *Solve) error {
	s.CreatedAt = time.Now()

	var profileID any
	if s.ProfileID != "" {
		profileID = s.ProfileID
	}

	_, err := r.db.Exec(
		`INSERT INTO solves (id, profile_id, mode, fingerprint, expected_pairs, found_pairs,
		 unmatched, pairs, warnings, dry_run, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, profileID, s.Mode, s.Fingerprint, s.ExpectedPairs, s.FoundPairs,
		rawOrEmpty(s.Unmatched), rawOrEmpty(s.Pairs), rawOrEmpty(s.Warnings), s.DryRun, s.CreatedAt,
	)
	return err
}

const solveColumns = `id, profile_id, mode, fingerprint, expected_pairs, found_pairs, unmatched, pairs, warnings, dry_run, created_at`

func scanSolve(row scanner) (*Solve, error) {
	s := &Solve{}
	var profileID sql.NullString
	var unmatched, pairs, warnings string
	var dryRun int

	err := row.Scan(&s.ID, &profileID, &s.Mode, &s.Fingerprint, &s.ExpectedPairs, &s.FoundPairs,
		&unmatched, &pairs, &warnings, &dryRun, &s.CreatedAt)
	if err != nil {
		return nil, err
	}

	s.ProfileID = profileID.String
	s.Unmatched = json.RawMessage(unmatched)
	s.Pairs = json.RawMessage(pairs)
	s.Warnings = json.RawMessage(warnings)
	s.DryRun = dryRun != 0
	return s, nil
}

// GetByID retrieves a solve by its ID.
func (r *SolveRepository) GetByID(id string) (*Solve, error) {
	s, err := scanSolve(r.db.QueryRow(`SELECT `+solveColumns+` FROM solves WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns the most recent solves, newest first. A limit <= 0 returns
// all of them.
func (r *SolveRepository) List(limit int) ([]*Solve, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+solveColumns+` FROM solves ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var solves []*Solve
	for rows.Next() {
		s, err := scanSolve(rows)
		if err != nil {
			return nil, err
		}
		solves = append(solves, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return solves, nil
}

// DeleteBefore removes solves recorded before t and returns how many were
// removed.
func (r *SolveRepository) DeleteBefore(t time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM solves WHERE created_at < ?`, t)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
