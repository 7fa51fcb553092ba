// Package migrations embeds the goose migrations for the SQL docstore
// backends, one directory per dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
