// Package persist durably mirrors last_known_location to a single-row
// SQLite table (SPEC_FULL.md §3's "one piece of caching beyond last known
// location" exception). Grounded on the teacher's internal/state package:
// same OpenDB pragma set, same golang-migrate/iofs migration wiring.
package persist

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/resinat/locationd/internal/measurement"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsPath = "migrations"

// OpenDB opens (or creates) the SQLite database at path with the
// recommended single-writer pragma set, matching the teacher's
// internal/state.OpenDB.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("persist: exec %q on %s: %w", p, path, err)
		}
	}
	return db, nil
}

// Migrate applies pending migrations to db.
func Migrate(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, migrationsPath)
	if err != nil {
		return fmt.Errorf("persist: migrate: init source: %w", err)
	}
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("persist: migrate: init db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("persist: migrate: init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("persist: migrate: up: %w", err)
	}
	return nil
}

// Store is the single-row last-known-location persistence repo.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-migrated db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save upserts the single row (id 1), storing sourceID (the originating
// provider's ID, kept for diagnostics) alongside the position.
func (s *Store) Save(u measurement.Update[measurement.Position], sourceID string) error {
	_, err := s.db.Exec(`
		INSERT INTO last_known_location
			(id, latitude, longitude, altitude, horizontal_acc, vertical_acc, observed_at_ns, source_id)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			altitude = excluded.altitude,
			horizontal_acc = excluded.horizontal_acc,
			vertical_acc = excluded.vertical_acc,
			observed_at_ns = excluded.observed_at_ns,
			source_id = excluded.source_id
	`, u.Value.Latitude, u.Value.Longitude, u.Value.Altitude,
		u.Value.Accuracy.Horizontal, u.Value.Accuracy.Vertical, u.When.UnixNano(), sourceID)
	if err != nil {
		return fmt.Errorf("persist: save: %w", err)
	}
	return nil
}

// Load returns the persisted last-known location, or (zero, false, nil)
// if none has ever been saved.
func (s *Store) Load() (measurement.Update[measurement.Position], bool, error) {
	row := s.db.QueryRow(`
		SELECT latitude, longitude, altitude, horizontal_acc, vertical_acc, observed_at_ns
		FROM last_known_location WHERE id = 1
	`)

	var (
		lat, lon         float64
		alt, horiz, vert sql.NullFloat64
		observedAtNS     int64
	)
	if err := row.Scan(&lat, &lon, &alt, &horiz, &vert, &observedAtNS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return measurement.Update[measurement.Position]{}, false, nil
		}
		return measurement.Update[measurement.Position]{}, false, fmt.Errorf("persist: load: %w", err)
	}

	var altPtr, horizPtr, vertPtr *float64
	if alt.Valid {
		altPtr = &alt.Float64
	}
	if horiz.Valid {
		horizPtr = &horiz.Float64
	}
	if vert.Valid {
		vertPtr = &vert.Float64
	}

	pos, err := measurement.NewPosition(lat, lon, altPtr, measurement.Accuracy{Horizontal: horizPtr, Vertical: vertPtr})
	if err != nil {
		return measurement.Update[measurement.Position]{}, false, fmt.Errorf("persist: load: stored position invalid: %w", err)
	}
	return measurement.NewUpdate(pos, time.Unix(0, observedAtNS)), true, nil
}
