// Package migrations embeds the goose SQL migration set applied by every
// service's AutoMigrate startup step (pkg/database.RunMigrations).
package migrations

import "embed"

// PostgresMigrations holds the goose-formatted *.sql files under postgres/.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
