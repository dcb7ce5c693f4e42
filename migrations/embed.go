// Package migrations embeds the SQL schema migrations into the binary.
package migrations

import "embed"

// FS holds every *.sql migration at its root; pass "." as the directory.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS that holds the migration files.
const Dir = "."
