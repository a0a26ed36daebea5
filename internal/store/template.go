package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Template is a stored card face image. Image holds the encoded PNG or JPEG.
type Template struct {
	ID        string
	Label     string
	Width     int
	Height    int
	Image     []byte
	CreatedAt time.Time
}

// TemplateRepository provides CRUD operations for templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

// Create inserts a new template into the database.
func (r *TemplateRepository) Create(t *Template) error {
	t.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO templates (id, label, width, height, image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Label, t.Width, t.Height, t.Image, t.CreatedAt,
	)
	return err
}

// GetByID retrieves a template, including its image, by ID.
func (r *TemplateRepository) GetByID(id string) (*Template, error) {
	t := &Template{}

	err := r.db.QueryRow(
		`SELECT id, label, width, height, image, created_at
		 FROM templates WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.Label, &t.Width, &t.Height, &t.Image, &t.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return t, nil
}

// GetByLabel retrieves a template by its label.
func (r *TemplateRepository) GetByLabel(label string) (*Template, error) {
	t := &Template{}

	err := r.db.QueryRow(
		`SELECT id, label, width, height, image, created_at
		 FROM templates WHERE label = ?`,
		label,
	).Scan(&t.ID, &t.Label, &t.Width, &t.Height, &t.Image, &t.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return t, nil
}

// List retrieves all templates ordered by label, which is the order
// detectors number them in. Images are included when withImages is set.
func (r *TemplateRepository) List(withImages bool) ([]*Template, error) {
	query := `SELECT id, label, width, height, x'', created_at FROM templates ORDER BY label`
	if withImages {
		query = `SELECT id, label, width, height, image, created_at FROM templates ORDER BY label`
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		if err := rows.Scan(&t.ID, &t.Label, &t.Width, &t.Height, &t.Image, &t.CreatedAt); err != nil {
			return nil, err
		}
		if !withImages {
			t.Image = nil
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return templates, nil
}

// Count returns the number of stored templates.
func (r *TemplateRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM templates`).Scan(&n)
	return n, err
}

// Delete removes a template from the database by its ID.
func (r *TemplateRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
