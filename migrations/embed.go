// Package migrations embeds the SQL schema files for each store backend.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var root embed.FS

// Postgres returns the migration files for the Postgres store.
func Postgres() fs.FS {
	sub, err := fs.Sub(root, "postgres")
	if err != nil {
		panic(err) // embedded directory is part of the build
	}
	return sub
}

// SQLite returns the migration files for the SQLite store.
func SQLite() fs.FS {
	sub, err := fs.Sub(root, "sqlite")
	if err != nil {
		panic(err)
	}
	return sub
}
