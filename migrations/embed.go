// Package migrations embeds the numbered Postgres migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
