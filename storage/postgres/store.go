// Package postgres provides a Postgres-backed Store for multi-process
// deployments.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/samber/mo"

	"seriate/series"
	"seriate/storage"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS series (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		rule JSONB NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		max_occurrences INTEGER,
		status TEXT NOT NULL,
		created TIMESTAMPTZ NOT NULL,
		modified TIMESTAMPTZ NOT NULL,
		CONSTRAINT series_slug_key UNIQUE (slug)
	)`,
	`CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		series_id TEXT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
		slug TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		instance_date TEXT NOT NULL,
		is_exception BOOLEAN NOT NULL DEFAULT FALSE,
		registrations INTEGER NOT NULL DEFAULT 0,
		created TIMESTAMPTZ NOT NULL,
		modified TIMESTAMPTZ NOT NULL,
		CONSTRAINT instances_slug_key UNIQUE (slug),
		CONSTRAINT instances_series_date_key UNIQUE (series_id, instance_date)
	)`,
}

// Store persists series and instances in Postgres.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New connects to the database at dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
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

// mapWriteError translates constraint violations into storage errors using
// the constraint names declared in the schema.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case "23503": // foreign_key_violation
		return &storage.Error{Type: storage.ErrNotFound, Message: "series not found"}
	case "23505": // unique_violation
		switch pgErr.ConstraintName {
		case "instances_series_date_key":
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: "series already holds this date",
				Err:     storage.ErrDuplicateDate,
			}
		case "series_slug_key":
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: "series slug already in use",
				Err:     storage.ErrSlugTaken,
			}
		case "instances_slug_key":
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: "instance slug already in use",
				Err:     storage.ErrSlugTaken,
			}
		default:
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "record already exists"}
		}
	}
	return nil
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
		rec      storage.SeriesRecord
		ruleJSON []byte
		end      sql.NullString
		max      sql.NullInt64
		status   string
	)
	err := sc.Scan(&rec.ID, &rec.Slug, &rec.Title, &rec.Description, &rec.Location,
		&ruleJSON, &rec.StartDate, &end, &max, &status, &rec.Created, &rec.Modified)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ruleJSON, &rec.Rule); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	if end.Valid {
		rec.EndDate = mo.Some(end.String)
	}
	if max.Valid {
		rec.MaxOccurrences = mo.Some(int(max.Int64))
	}
	rec.Status = series.Status(status)
	return &rec, nil
}

const instanceColumns = `id, series_id, slug, title, description, location, instance_date, is_exception, registrations, created, modified`

func scanInstance(sc rowScanner) (*storage.InstanceRecord, error) {
	var rec storage.InstanceRecord
	err := sc.Scan(&rec.ID, &rec.SeriesID, &rec.Slug, &rec.Title, &rec.Description, &rec.Location,
		&rec.InstanceDate, &rec.IsException, &rec.Registrations, &rec.Created, &rec.Modified)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Series operations

func (s *Store) GetSeries(ctx context.Context, id string) (*storage.SeriesRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE id = $1`, id)
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
	row := s.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE slug = $1`, slug)
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
		query += ` WHERE status = $1`
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
		`INSERT INTO series (`+seriesColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.Slug, rec.Title, rec.Description, rec.Location,
		string(ruleJSON), rec.StartDate, optString(rec.EndDate), optInt(rec.MaxOccurrences),
		string(rec.Status), now, now)
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
		`UPDATE series SET slug = $1, title = $2, description = $3, location = $4, rule = $5,
			start_date = $6, end_date = $7, max_occurrences = $8, status = $9, modified = $10
		 WHERE id = $11`,
		rec.Slug, rec.Title, rec.Description, rec.Location, string(ruleJSON),
		rec.StartDate, optString(rec.EndDate), optInt(rec.MaxOccurrences),
		string(rec.Status), rec.Modified, rec.ID)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id = $1`, id)
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
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id)
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
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE slug = $1`, slug)
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
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE series_id = $1`
	args := []any{seriesID}
	if opts != nil && opts.From != nil {
		args = append(args, *opts.From)
		query += fmt.Sprintf(` AND instance_date >= $%d`, len(args))
	}
	if opts != nil && opts.To != nil {
		args = append(args, *opts.To)
		query += fmt.Sprintf(` AND instance_date <= $%d`, len(args))
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
		`SELECT instance_date FROM instances WHERE series_id = $1 ORDER BY instance_date`, seriesID)
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
		`INSERT INTO instances (`+instanceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.SeriesID, rec.Slug, rec.Title, rec.Description, rec.Location,
		rec.InstanceDate, rec.IsException, rec.Registrations, now, now)
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
	err = tx.QueryRowContext(ctx, `SELECT series_id FROM instances WHERE id = $1 FOR UPDATE`, rec.ID).Scan(&prevSeries)
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
		`UPDATE instances SET slug = $1, title = $2, description = $3, location = $4,
			instance_date = $5, is_exception = $6, registrations = $7, modified = $8
		 WHERE id = $9`,
		rec.Slug, rec.Title, rec.Description, rec.Location,
		rec.InstanceDate, rec.IsException, rec.Registrations, rec.Modified, rec.ID)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = $1`, id)
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
	err = tx.QueryRowContext(ctx, `SELECT registrations FROM instances WHERE id = $1 FOR UPDATE`, instanceID).Scan(&current)
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
		`UPDATE instances SET registrations = $1, modified = $2 WHERE id = $3`,
		next, time.Now(), instanceID)
	if err != nil {
		return current, fmt.Errorf("update registrations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return current, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return next, nil
}
