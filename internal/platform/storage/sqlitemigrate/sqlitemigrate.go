// Package sqlitemigrate applies embedded SQL migrations to a SQLite handle.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	migrationTable = "schema_migrations"
	upMarker       = "-- +migrate Up"
	downMarker     = "-- +migrate Down"
)

// ApplyMigrations executes the *.sql files under root in lexical order, each
// at most once. Every file runs in its own transaction together with the row
// that records it, so a failed file leaves no trace and is retried next time.
func ApplyMigrations(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS, root string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}
	if migrationFS == nil {
		return fmt.Errorf("migration fs is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	files, err := listMigrations(migrationFS, root)
	if err != nil {
		return err
	}

	if _, err := sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, name := range files {
		key := name
		if root != "." {
			key = path.Join(root, name)
		}
		if err := applyOne(ctx, sqlDB, migrationFS, path.Join(root, name), key); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func listMigrations(migrationFS fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func applyOne(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS, filePath, key string) error {
	applied, err := isApplied(ctx, sqlDB, key)
	if err != nil {
		return fmt.Errorf("check applied: %w", err)
	}
	if applied {
		return nil
	}

	content, err := fs.ReadFile(migrationFS, filePath)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	upSQL := ExtractUpMigration(string(content))
	if strings.TrimSpace(upSQL) == "" {
		return nil
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for idx, stmt := range SplitStatements(upSQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil && !IsAlreadyExistsError(err) {
			return fmt.Errorf("exec statement %d: %w", idx+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
		key,
		time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section, or the
// whole content when the file carries no markers.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(body, downMarker); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

// SplitStatements breaks a migration body into single statements so that one
// idempotent "already exists" failure does not skip the statements after it.
// Semicolons inside quotes, comments and CREATE TRIGGER bodies do not split.
func SplitStatements(sqlText string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stripComments(stmt) != "" {
			statements = append(statements, stmt)
		}
	}

	for i := 0; i < len(sqlText); i++ {
		ch := sqlText[i]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			end := i + 1
			for end < len(sqlText) {
				if sqlText[end] == ch {
					if end+1 < len(sqlText) && sqlText[end+1] == ch {
						end += 2
						continue
					}
					break
				}
				end++
			}
			if end >= len(sqlText) {
				end = len(sqlText) - 1
			}
			current.WriteString(sqlText[i : end+1])
			i = end
		case ch == '-' && i+1 < len(sqlText) && sqlText[i+1] == '-':
			end := strings.IndexByte(sqlText[i:], '\n')
			if end == -1 {
				end = len(sqlText) - i - 1
			}
			current.WriteString(sqlText[i : i+end+1])
			i += end
		case ch == '/' && i+1 < len(sqlText) && sqlText[i+1] == '*':
			end := strings.Index(sqlText[i+2:], "*/")
			if end == -1 {
				current.WriteString(sqlText[i:])
				i = len(sqlText)
				continue
			}
			current.WriteString(sqlText[i : i+2+end+2])
			i += 2 + end + 1
		case ch == ';':
			if inTriggerBody(current.String()) {
				current.WriteByte(ch)
				continue
			}
			flush()
		default:
			current.WriteByte(ch)
		}
	}
	flush()
	return statements
}

// inTriggerBody reports whether stmt opens a CREATE TRIGGER whose END has
// not been reached yet.
func inTriggerBody(stmt string) bool {
	fields := strings.Fields(strings.ToUpper(stripComments(stmt)))
	if len(fields) < 2 || fields[0] != "CREATE" {
		return false
	}
	idx := 1
	if fields[idx] == "TEMP" || fields[idx] == "TEMPORARY" {
		idx++
	}
	if idx >= len(fields) || fields[idx] != "TRIGGER" {
		return false
	}
	return fields[len(fields)-1] != "END"
}

func stripComments(stmt string) string {
	for {
		start := strings.Index(stmt, "/*")
		if start == -1 {
			break
		}
		end := strings.Index(stmt[start+2:], "*/")
		if end == -1 {
			stmt = stmt[:start]
			break
		}
		stmt = stmt[:start] + " " + stmt[start+2+end+2:]
	}
	var out strings.Builder
	for _, line := range strings.Split(stmt, "\n") {
		if idx := strings.Index(line, "--"); idx != -1 {
			line = line[:idx]
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return strings.TrimSpace(out.String())
}

// IsAlreadyExistsError reports whether err indicates idempotent DDL success.
func IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func isApplied(ctx context.Context, sqlDB *sql.DB, name string) (bool, error) {
	var found int
	err := sqlDB.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
