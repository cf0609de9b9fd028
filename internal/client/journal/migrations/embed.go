// Package migrations embeds the goose SQL migrations for the local upload journal.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
