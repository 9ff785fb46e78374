package auth

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded DDL for the auth relations (users,
// credentials, roles, preferences, refresh_tokens, password_reset_tokens).
// Host applications feed it to their migration runner alongside their own
// schema files.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
