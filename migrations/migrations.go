// Package migrations embeds the schema for each supported store driver.
package migrations

import "embed"

// FS holds one directory of golang-migrate files per driver.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
