// Package storage keeps the sighting journal: a SQLite audit trail of every
// game server endpoint that registered, with first/last seen times.
// The live registry is never restored from it.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/beacon/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

const sightingColumns = `ip, port, auth_port, name, country_code, mods, count, first_seen, last_seen`

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New opens the database at dbPath, tunes the pool and applies migrations.
func New(ctx context.Context, dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// UpsertSighting records a registration of ip:port. Repeated registrations
// bump count and last_seen and refresh the descriptive columns.
func (r *Repository) UpsertSighting(ctx context.Context, s models.Sighting) error {
	query := `
	INSERT INTO sightings (` + sightingColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(ip, port) DO UPDATE SET
		count     = count + 1,
		last_seen = excluded.last_seen,
		auth_port = excluded.auth_port,
		name      = excluded.name,
		mods      = excluded.mods,

		-- keep a known country when the lookup came back empty
		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE sightings.country_code END;
	`

	_, err := r.db.ExecContext(ctx, query,
		s.IP, s.Port, s.AuthPort, s.Name, s.CountryCode, s.Mods,
		s.FirstSeen.UTC(), s.LastSeen.UTC(),
	)

	return err
}

// Sightings returns all journal rows, most recently seen first.
func (r *Repository) Sightings(ctx context.Context) ([]models.Sighting, error) {
	return r.query(ctx, `SELECT `+sightingColumns+` FROM sightings ORDER BY last_seen DESC`)
}

// Sighting returns one row, or nil when ip:port was never seen.
func (r *Repository) Sighting(ctx context.Context, ip string, port int) (*models.Sighting, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sightingColumns+` FROM sightings WHERE ip = ? AND port = ?`, ip, port)

	s, err := scanSighting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// DeleteSighting removes the row for ip:port.
func (r *Repository) DeleteSighting(ctx context.Context, ip string, port int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sightings WHERE ip = ? AND port = ?`, ip, port)
	return err
}

// PruneSeenBefore deletes rows last seen before cutoff and returns how many went.
func (r *Repository) PruneSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sightings WHERE last_seen < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSighting(row scanner) (models.Sighting, error) {
	var s models.Sighting
	err := row.Scan(
		&s.IP, &s.Port, &s.AuthPort, &s.Name, &s.CountryCode, &s.Mods,
		&s.Count, &s.FirstSeen, &s.LastSeen,
	)

	return s, err
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]models.Sighting, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sightings := []models.Sighting{}
	for rows.Next() {
		s, err := scanSighting(rows)
		if err != nil {
			return nil, err
		}
		sightings = append(sightings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sightings, nil
}
