package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MiX1964/wforecast/internal/weather"
)

//go:embed sql
var sqlFS embed.FS

// dialect holds the statements that differ between database engines.
type dialect struct {
	schema string
	insert string
}

var dialectDirs = map[string]string{
	"sqlite3": "sql/sqlite",
	"mysql":   "sql/mysql",
}

var (
	getPlaceByNameSQL = mustReadSQL("sql/common/get-place-by-name.sql")
	getPlaceByIDSQL   = mustReadSQL("sql/common/get-place-by-id.sql")
	placeExistsSQL    = mustReadSQL("sql/common/place-exists.sql")
	deletePlaceSQL    = mustReadSQL("sql/common/delete-place.sql")
	listPlacesSQL     = mustReadSQL("sql/common/list-places.sql")
)

// SQLStore is a PlaceCache backed by database/sql. Uniqueness of the place id
// is enforced by the primary key; inserts never overwrite.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLStore prepares the places table for driver ("sqlite3" or "mysql").
// Every write is a single auto-committed statement.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	dir, ok := dialectDirs[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	d := dialect{
		schema: mustReadSQL(dir + "/schema.sql"),
		insert: mustReadSQL(dir + "/insert-place.sql"),
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return nil, fmt.Errorf("ensure places table: %w", err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) GetByName(ctx context.Context, name string) (weather.Place, bool, error) {
	return scanPlace(s.db.QueryRowContext(ctx, getPlaceByNameSQL, name))
}

func (s *SQLStore) GetByID(ctx context.Context, id int64) (weather.Place, bool, error) {
	return scanPlace(s.db.QueryRowContext(ctx, getPlaceByIDSQL, id))
}

func (s *SQLStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, placeExistsSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("place exists %d: %w", id, err)
	}
	return exists, nil
}

// InsertIfAbsent stores place unless a row with its id exists. Losing a
// concurrent race is reported as (false, nil).
func (s *SQLStore) InsertIfAbsent(ctx context.Context, place weather.Place) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.insert,
		place.ID, place.Name, place.CountryCode, place.Latitude, place.Longitude)
	if err != nil {
		return false, fmt.Errorf("insert place %d: %w", place.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert place %d: rows affected: %w", place.ID, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, deletePlaceSQL, id); err != nil {
		return fmt.Errorf("delete place %d: %w", id, err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]weather.Place, error) {
	rows, err := s.db.QueryContext(ctx, listPlacesSQL)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close places rows", "error", err)
		}
	}()

	out := []weather.Place{}
	for rows.Next() {
		var p weather.Place
		if err := rows.Scan(&p.ID, &p.Name, &p.CountryCode, &p.Latitude, &p.Longitude); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlace(row *sql.Row) (weather.Place, bool, error) {
	var p weather.Place
	err := row.Scan(&p.ID, &p.Name, &p.CountryCode, &p.Latitude, &p.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Place{}, false, nil
	}
	if err != nil {
		return weather.Place{}, false, fmt.Errorf("scan place: %w", err)
	}
	return p, true, nil
}

// mustReadSQL loads an embedded statement, dropping the trailing semicolon
// (the mysql driver rejects it outside multi-statement mode).
func mustReadSQL(path string) string {
	b, err := sqlFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("embedded sql %s: %v", path, err))
	}
	return strings.TrimSuffix(strings.TrimSpace(string(b)), ";")
}
