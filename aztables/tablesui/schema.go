package tablesui

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/acksell/nadella/aztables/schema"
	"github.com/acksell/nadella/aztables/table"
)

// LoadedSchema is the merged view over every schema file matched by
// the glob pattern, indexed by table name.
type LoadedSchema struct {
	Tables map[string]schema.Table

	// Sources maps each table to the file it was declared in, for
	// diagnostics.
	Sources map[string]string
}

// LoadSchemas loads and merges all schema files matching the pattern.
// The same table declared in two files is an error.
func LoadSchemas(pattern string) (*LoadedSchema, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad schema pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no schema files match %q", pattern)
	}
	sort.Strings(paths)

	loaded := &LoadedSchema{
		Tables:  make(map[string]schema.Table),
		Sources: make(map[string]string),
	}
	for _, path := range paths {
		s, err := schema.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, t := range s.Tables {
			if prev, dup := loaded.Sources[t.Name]; dup {
				return nil, fmt.Errorf("table %q declared in both %s and %s", t.Name, prev, path)
			}
			loaded.Tables[t.Name] = t
			loaded.Sources[t.Name] = path
		}
	}
	return loaded, nil
}

// Definitions converts the loaded tables to store definitions, in
// name order.
func (l *LoadedSchema) Definitions() []table.Definition {
	names := make([]string, 0, len(l.Tables))
	for name := range l.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]table.Definition, 0, len(names))
	for _, name := range names {
		t := l.Tables[name]
		defs = append(defs, table.Definition{Name: t.Name, SoftDelete: t.SoftDelete})
	}
	return defs
}
