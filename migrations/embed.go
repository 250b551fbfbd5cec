// Package migrations embeds the source-registry schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
