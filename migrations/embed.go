// Package migrations embeds the schema migrations applied by efilingctl
// and, when enabled, by the API server on boot.
package migrations

import "embed"

// FS holds the SQL migration files
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory inside FS that holds the migrations
const Dir = "."
