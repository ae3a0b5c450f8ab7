// Package migrations embeds the SQL schema.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

//go:embed *.sql
var files embed.FS

// Script is one migration file.
type Script struct {
	Name string
	SQL  string
}

// Scripts returns the migrations in apply order.
func Scripts() ([]Script, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	scripts := make([]Script, 0, len(names))
	for _, name := range names {
		body, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, Script{Name: name, SQL: string(body)})
	}
	return scripts, nil
}
