package academy

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// MigrationsRoot returns the migrations tree, one directory per dialect.
func MigrationsRoot() (fs.FS, error) {
	return fs.Sub(migrationsFS, "data/sql/migrations")
}
