package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Templates table - card face images for template matching
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			image BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Profiles table - screen calibration for one board layout
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			mode TEXT NOT NULL CHECK(mode IN ('grid', 'template')),
			rows INTEGER NOT NULL DEFAULT 0,
			cols INTEGER NOT NULL DEFAULT 0,
			anchor_x REAL NOT NULL,
			anchor_y REAL NOT NULL,
			scale REAL NOT NULL CHECK(scale > 0),
			h_spacing REAL NOT NULL DEFAULT 123,
			v_spacing REAL NOT NULL DEFAULT 170,
			threshold REAL NOT NULL DEFAULT 0.5,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Solves table - history of solved boards
		`CREATE TABLE IF NOT EXISTS solves (
			id TEXT PRIMARY KEY,
			profile_id TEXT REFERENCES profiles(id) ON DELETE SET NULL,
			mode TEXT NOT NULL,
			fingerprint TEXT NOT NULL DEFAULT '',
			expected_pairs INTEGER NOT NULL,
			found_pairs INTEGER NOT NULL,
			unmatched TEXT NOT NULL DEFAULT '[]',
			pairs TEXT NOT NULL DEFAULT '[]',
			warnings TEXT NOT NULL DEFAULT '[]',
			dry_run INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_solves_profile_id ON solves(profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_solves_created_at ON solves(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
