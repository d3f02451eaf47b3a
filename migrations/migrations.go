// Package migrations embeds the per-dialect schema migrations.
//
// Files are applied in lexical order by internal/core/db and must never be
// edited once released: the runner rejects a database whose recorded
// checksum differs from the embedded file.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
