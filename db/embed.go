// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema creates the client_state table holding persisted session snapshots.
//
//go:embed migrations/001_schema.sql
var Schema string
