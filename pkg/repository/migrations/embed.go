// Package migrations holds the PostgreSQL schema for the content repository.
package migrations

import "embed"

// FS contains the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
