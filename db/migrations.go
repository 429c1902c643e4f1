// Package db embeds the SQL migrations for the postgres document store.
package db

import (
	"embed"
	"io/fs"
)

//go:embed pg/*.sql
var files embed.FS

// Migrations returns the postgres migrations rooted at the directory holding the .sql files.
func Migrations() fs.FS {
	sub, err := fs.Sub(files, "pg")
	if err != nil {
		panic(err)
	}
	return sub
}
