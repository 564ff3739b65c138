package migrations

import "embed"

// FS embeds the SQLite schema for the local timesheet store.
//
//go:embed *.sql
var FS embed.FS
