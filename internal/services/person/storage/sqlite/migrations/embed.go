package migrations

import "embed"

// FS contains embedded SQLite migrations for person storage.
//
//go:embed *.sql
var FS embed.FS
