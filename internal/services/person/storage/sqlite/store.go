// Package sqlite provides a SQLite-backed person storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sqlitemigrate "github.com/louisbranch/personql/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/personql/internal/services/person/storage"
	"github.com/louisbranch/personql/internal/services/person/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists person records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite person store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ListPersons returns all person records in ascending id order.
func (s *Store) ListPersons(ctx context.Context) ([]storage.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, email FROM persons ORDER BY id ASC`)
	if err != nil {
		return nil, storeError("list persons", err)
	}
	defer rows.Close()

	persons := make([]storage.Person, 0)
	for rows.Next() {
		var person storage.Person
		if err := rows.Scan(&person.ID, &person.Name, &person.Email); err != nil {
			return nil, fmt.Errorf("list persons: %w", err)
		}
		persons = append(persons, person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	return persons, nil
}

// SavePersons writes the batch in one transaction. Records without an id are
// inserted and receive one; records with an id replace that row or create it.
// Any failure rolls the whole batch back.
func (s *Store) SavePersons(ctx context.Context, persons []storage.Person) ([]storage.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := validateBatch(persons); err != nil {
		return nil, err
	}
	saved := make([]storage.Person, 0, len(persons))
	if len(persons) == 0 {
		return saved, nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("save persons: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO persons (name, email) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("save persons: prepare insert: %w", err)
	}
	defer insertStmt.Close()
	upsertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO persons (id, name, email) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email`)
	if err != nil {
		return nil, fmt.Errorf("save persons: prepare upsert: %w", err)
	}
	defer upsertStmt.Close()

	for idx, person := range persons {
		if person.ID == 0 {
			result, err := insertStmt.ExecContext(ctx, person.Name, person.Email)
			if err != nil {
				return nil, saveError(idx, err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return nil, saveError(idx, err)
			}
			if id > storage.MaxID {
				return nil, fmt.Errorf("%w: person %d would be assigned id %d above %d", storage.ErrInvalidBatch, idx, id, storage.MaxID)
			}
			person.ID = id
		} else if _, err := upsertStmt.ExecContext(ctx, person.ID, person.Name, person.Email); err != nil {
			return nil, saveError(idx, err)
		}
		saved = append(saved, person)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeError("save persons: commit", err)
	}
	return saved, nil
}

// FindPersonByEmail returns the lowest-id person whose email matches exactly.
func (s *Store) FindPersonByEmail(ctx context.Context, email string) (storage.Person, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.Person{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Person{}, false, fmt.Errorf("storage is not configured")
	}

	var person storage.Person
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, email
		   FROM persons
		  WHERE email = ?
		  ORDER BY id ASC
		  LIMIT 1`,
		email,
	).Scan(&person.ID, &person.Name, &person.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Person{}, false, nil
	}
	if err != nil {
		return storage.Person{}, false, storeError("find person by email", err)
	}
	return person, true, nil
}

func validateBatch(persons []storage.Person) error {
	seen := make(map[int64]int, len(persons))
	for idx, person := range persons {
		if person.ID < 0 {
			return fmt.Errorf("%w: person %d has negative id %d", storage.ErrInvalidBatch, idx, person.ID)
		}
		if person.ID > storage.MaxID {
			return fmt.Errorf("%w: person %d has id %d above %d", storage.ErrInvalidBatch, idx, person.ID, storage.MaxID)
		}
		if person.ID == 0 {
			continue
		}
		if first, ok := seen[person.ID]; ok {
			return fmt.Errorf("%w: persons %d and %d share id %d", storage.ErrInvalidBatch, first, idx, person.ID)
		}
		seen[person.ID] = idx
	}
	return nil
}

func saveError(idx int, err error) error {
	if isConstraintViolation(err) {
		return fmt.Errorf("%w: person %d: %v", storage.ErrInvalidBatch, idx, err)
	}
	return storeError(fmt.Sprintf("save persons: person %d", idx), err)
}

// storeError tags lock contention as ErrUnavailable so callers can answer
// with a retryable status.
func storeError(op string, err error) error {
	if isBusy(err) {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "database is locked") || strings.Contains(value, "sqlite_busy")
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}

var _ storage.PersonStore = (*Store)(nil)
