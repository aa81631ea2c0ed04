// Package catalog persists a local history of conversion runs in
// sqlite, so past encodes can be inspected and compared.
package catalog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Run is one conversion recorded in the catalog.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     string

	VideoPath string
	SaveName  string

	Width      int
	Height     int
	FPS        float64
	FrameCount int
	LumaCutoff int

	Components int
	Wires      int
	Edges      int
}

// DB wraps the catalog database.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the catalog at path and migrates it to the
// latest schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Note: m is not closed here because that would close the underlying
	// DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate catalog schema: %w", err)
	}
	return nil
}

// RecordStart inserts a new running run and returns its id.
func (db *DB) RecordStart(r Run) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	started := r.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO runs (
			id, started_at_ms, status,
			video_path, save_name,
			width, height, fps, frame_count, luma_cutoff
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, started.UnixMilli(), StatusRunning,
		r.VideoPath, r.SaveName,
		r.Width, r.Height, r.FPS, r.FrameCount, r.LumaCutoff,
	)
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// RecordFinish marks a run finished and stores the final counters.
func (db *DB) RecordFinish(id, status string, components, wires, edges, frameCount int) error {
	res, err := db.Exec(`
		UPDATE runs SET
			finished_at_ms = ?, status = ?,
			components = ?, wires = ?, edges = ?, frame_count = ?
		WHERE id = ?`,
		time.Now().UnixMilli(), status,
		components, wires, edges, frameCount, id,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("record run finish: no run with id %s", id)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, started_at_ms, finished_at_ms, status,
		       video_path, save_name,
		       width, height, fps, frame_count, luma_cutoff,
		       components, wires, edges
		FROM runs ORDER BY started_at_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunByID looks up a single run.
func (db *DB) RunByID(id string) (*Run, error) {
	rows, err := db.Query(`
		SELECT id, started_at_ms, finished_at_ms, status,
		       video_path, save_name,
		       width, height, fps, frame_count, luma_cutoff,
		       components, wires, edges
		FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no run with id %s", id)
	}
	r, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var r Run
	var startedMs int64
	var finishedMs sql.NullInt64
	if err := rows.Scan(
		&r.ID, &startedMs, &finishedMs, &r.Status,
		&r.VideoPath, &r.SaveName,
		&r.Width, &r.Height, &r.FPS, &r.FrameCount, &r.LumaCutoff,
		&r.Components, &r.Wires, &r.Edges,
	); err != nil {
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(startedMs)
	if finishedMs.Valid {
		r.FinishedAt = time.UnixMilli(finishedMs.Int64)
	}
	return r, nil
}
