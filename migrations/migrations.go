// Package migrations embeds the database schema so tests and tooling can
// apply it without reaching into the repository tree at runtime.
package migrations

import _ "embed"

//go:embed schema.sql
var Schema string
