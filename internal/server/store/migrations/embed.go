// Package migrations embeds the goose SQL migrations of the PostgreSQL
// store driver.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
