// Package migrations embeds the SQL schema migrations. The server applies
// them with db.RunMigrations when MIGRATE_ON_START is set; otherwise run
// them with the golang-migrate CLI:
//
//	migrate -database "$DATABASE_URL" -path internal/db/migrations up
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
