// Package sqlite provides a file-backed Store using the pure Go SQLite
// driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/mo"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"seriate/series"
	"seriate/storage"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS series (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		rule TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		max_occurrences INTEGER,
		status TEXT NOT NULL,
		created TEXT NOT NULL,
		modified TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		series_id TEXT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		instance_date TEXT NOT NULL,
		is_exception INTEGER NOT NULL DEFAULT 0,
		registrations INTEGER NOT NULL DEFAULT 0,
		created TEXT NOT NULL,
		modified TEXT NOT NULL,
		UNIQUE (series_id, instance_date)
	)`,
}

// Store persists series and instances in a single SQLite file.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (creating if needed) the database at path and ensures the
// schema exists.
func New(path string) (*Store, error) {
	if path == "" {
		path = "seriate.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// mapWriteError translates constraint violations into storage errors.
// SQLite reports which index failed only in the message text.
func mapWriteError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &storage.Error{Type: storage.ErrNotFound, Message: "series not found"}
	case strings.Contains(msg, "UNIQUE constraint failed: instances.series_id"):
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "series already holds this date",
			Err:     storage.ErrDuplicateDate,
		}
	case strings.Contains(msg, "UNIQUE constraint failed: series.slug"):
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "series slug already in use",
			Err:     storage.ErrSlugTaken,
		}
	case strings.Contains(msg, "UNIQUE constraint failed: instances.slug"):
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "instance slug already in use",
			Err:     storage.ErrSlugTaken,
		}
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "record already exists"}
	}
	return nil
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optString(o mo.Option[string]) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}

func optInt(o mo.Option[int]) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const seriesColumns = `id, slug, title, description, location, rule, start_date, end_date, max_occurrences, status, created, modified`

func scanSeries(sc rowScanner) (*storage.SeriesRecord, error) {
	var (
		rec               storage.SeriesRecord
		ruleJSON          string
		end               sql.NullString
		max               sql.NullInt64
		status            string
		created, modified string
	)
	err := sc.Scan(&rec.ID, &rec.Slug, &rec.Title, &rec.Description, &rec.Location,
		&ruleJSON, &rec.StartDate, &end, &max, &status, &created, &modified)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ruleJSON), &rec.Rule); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	if end.Valid {
		rec.EndDate = mo.Some(end.String)
	}
	if max.Valid {
		rec.MaxOccurrences = mo.Some(int(max.Int64))
	}
	rec.Status = series.Status(status)
	if rec.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("decode created: %w", err)
	}
	if rec.Modified, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return nil, fmt.Errorf("decode modified: %w", err)
	}
	return &rec, nil
}

const instanceColumns = `id, series_id, slug, title, description, location, instance_date, is_exception, registrations, created, modified`

func scanInstance(sc rowScanner) (*storage.InstanceRecord, error) {
	var (
		rec               storage.InstanceRecord
		created, modified string
	)
	err := sc.Scan(&rec.ID, &rec.SeriesID, &rec.Slug, &rec.Title, &rec.Description, &rec.Location,
		&rec.InstanceDate, &rec.IsException, &rec.Registrations, &created, &modified)
	if err != nil {
		return nil, err
	}
	if rec.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("decode created: %w", err)
	}
	if rec.Modified, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return nil, fmt.Errorf("decode modified: %w", err)
	}
	return &rec, nil
}

// Series operations

func (s *Store) GetSeries(ctx context.Context, id string) (*storage.SeriesRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE id = ?`, id)
	rec, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "series not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("select series: %w", err)
	}
	return rec, nil
}

func (s *Store) GetSeriesBySlug(ctx context.Context, slug string) (*storage.SeriesRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE slug = ?`, slug)
	rec, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "series not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("select series: %w", err)
	}
	return rec, nil
}

func (s *Store) ListSeries(ctx context.Context, opts *storage.ListSeriesOptions) ([]*storage.SeriesRecord, error) {
	query := `SELECT ` + seriesColumns + ` FROM series`
	var args []any
	if opts != nil && opts.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*opts.Status))
	}
	query += ` ORDER BY slug`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select series: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []*storage.SeriesRecord{}
	for rows.Next() {
		rec, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return out, nil
}

func (s *Store) CreateSeries(ctx context.Context, rec *storage.SeriesRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	ruleJSON, err := json.Marshal(rec.Rule)
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}

	now := time.Now()
	rec.Created = now
	rec.Modified = now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO series (`+seriesColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Slug, rec.Title, rec.Description, rec.Location,
		string(ruleJSON), rec.StartDate, optString(rec.EndDate), optInt(rec.MaxOccurrences),
		string(rec.Status), stamp(now), stamp(now))
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert series: %w", err)
	}
	return nil
}

func (s *Store) UpdateSeries(ctx context.Context, rec *storage.SeriesRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	ruleJSON, err := json.Marshal(rec.Rule)
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}

	rec.Modified = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE series SET slug = ?, title = ?, description = ?, location = ?, rule = ?,
			start_date = ?, end_date = ?, max_occurrences = ?, status = ?, modified = ?
		 WHERE id = ?`,
		rec.Slug, rec.Title, rec.Description, rec.Location, string(ruleJSON),
		rec.StartDate, optString(rec.EndDate), optInt(rec.MaxOccurrences),
		string(rec.Status), stamp(rec.Modified), rec.ID)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update series: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update series: %w", err)
	}
	if n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "series not found"}
	}
	return nil
}

func (s *Store) DeleteSeries(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	if n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "series not found"}
	}
	return nil
}

// Instance operations

func (s *Store) GetInstance(ctx context.Context, id string) (*storage.InstanceRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
	rec, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "instance not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("select instance: %w", err)
	}
	return rec, nil
}

func (s *Store) GetInstanceBySlug(ctx context.Context, slug string) (*storage.InstanceRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE slug = ?`, slug)
	rec, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "instance not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("select instance: %w", err)
	}
	return rec, nil
}

func (s *Store) ListInstances(ctx context.Context, seriesID string, opts *storage.ListInstancesOptions) ([]*storage.InstanceRecord, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE series_id = ?`
	args := []any{seriesID}
	if opts != nil && opts.From != nil {
		query += ` AND instance_date >= ?`
		args = append(args, *opts.From)
	}
	if opts != nil && opts.To != nil {
		query += ` AND instance_date <= ?`
		args = append(args, *opts.To)
	}
	query += ` ORDER BY instance_date, slug`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select instances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []*storage.InstanceRecord{}
	for rows.Next() {
		rec, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return out, nil
}

func (s *Store) ListInstanceDates(ctx context.Context, seriesID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instance_date FROM instances WHERE series_id = ? ORDER BY instance_date`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("select instance dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	dates := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan instance date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instance dates: %w", err)
	}
	return dates, nil
}

func (s *Store) CreateInstance(ctx context.Context, rec *storage.InstanceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	now := time.Now()
	rec.Created = now
	rec.Modified = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO instances (`+instanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SeriesID, rec.Slug, rec.Title, rec.Description, rec.Location,
		rec.InstanceDate, rec.IsException, rec.Registrations, stamp(now), stamp(now))
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

func (s *Store) UpdateInstance(ctx context.Context, rec *storage.InstanceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var prevSeries string
	err = tx.QueryRowContext(ctx, `SELECT series_id FROM instances WHERE id = ?`, rec.ID).Scan(&prevSeries)
	if errors.Is(err, sql.ErrNoRows) {
		return &storage.Error{Type: storage.ErrNotFound, Message: "instance not found"}
	}
	if err != nil {
		return fmt.Errorf("select instance: %w", err)
	}
	if prevSeries != rec.SeriesID {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "instance cannot move between series"}
	}

	rec.Modified = time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE instances SET slug = ?, title = ?, description = ?, location = ?,
			instance_date = ?, is_exception = ?, registrations = ?, modified = ?
		 WHERE id = ?`,
		rec.Slug, rec.Title, rec.Description, rec.Location,
		rec.InstanceDate, rec.IsException, rec.Registrations, stamp(rec.Modified), rec.ID)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update instance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) DeleteInstance(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "instance not found"}
	}
	return nil
}

// Registration operations

func (s *Store) AdjustRegistrations(ctx context.Context, instanceID string, delta int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT registrations FROM instances WHERE id = ?`, instanceID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &storage.Error{Type: storage.ErrNotFound, Message: "instance not found"}
	}
	if err != nil {
		return 0, fmt.Errorf("select registrations: %w", err)
	}

	next := current + delta
	if next < 0 {
		return current, &storage.Error{Type: storage.ErrInvalidInput, Message: "registrations cannot go negative"}
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE instances SET registrations = ?, modified = ? WHERE id = ?`,
		next, stamp(time.Now()), instanceID)
	if err != nil {
		return current, fmt.Errorf("update registrations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return current, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return next, nil
}
