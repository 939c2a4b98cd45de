// Package schema defines the data types for table schema documents.
// Deployments declare their table topology in a schema_aztables.yaml
// next to the binary; provisioning code loads it and feeds the
// definitions to the store's lifecycle surface.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/acksell/nadella/aztables/table"
)

// Schema is the root type containing all table definitions.
type Schema struct {
	Tables []Table `yaml:"tables"`
}

// Table describes one table and the entity types stored in it.
type Table struct {
	Name       string   `yaml:"name"`
	SoftDelete bool     `yaml:"softDelete,omitempty"`
	Entities   []Entity `yaml:"entities,omitempty"`
}

// Entity describes an entity type stored in a table.
type Entity struct {
	Type   string  `yaml:"type"`
	Fields []Field `yaml:"fields,omitempty"`
}

// Field describes an entity field and its column mapping.
type Field struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column,omitempty"`
	Type   string `yaml:"type"`
	// Role is empty for plain columns, or one of partitionKey,
	// rowKey, etag, timestamp.
	Role string `yaml:"role,omitempty"`
	JSON bool   `yaml:"json,omitempty"`
}

// Load reads and validates a schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Definitions converts the schema to store table definitions.
func (s *Schema) Definitions() []table.Definition {
	defs := make([]table.Definition, 0, len(s.Tables))
	for _, t := range s.Tables {
		defs = append(defs, table.Definition{Name: t.Name, SoftDelete: t.SoftDelete})
	}
	return defs
}

var roles = map[string]bool{
	"partitionKey": true,
	"rowKey":       true,
	"etag":         true,
	"timestamp":    true,
}

// Validate catches definition errors at config-load time: duplicate
// tables, duplicate roles within an entity, and column names that
// collide with the reserved attributes.
func (s *Schema) Validate() error {
	seenTables := make(map[string]bool)
	for _, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("schema: table with empty name")
		}
		if seenTables[t.Name] {
			return fmt.Errorf("schema: duplicate table %q", t.Name)
		}
		seenTables[t.Name] = true

		for _, e := range t.Entities {
			if err := validateEntity(t.Name, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateEntity(tableName string, e Entity) error {
	seenRoles := make(map[string]string)
	seenColumns := make(map[string]string)
	for _, f := range e.Fields {
		if f.Role != "" {
			if !roles[f.Role] {
				return fmt.Errorf("schema: %s/%s: field %s has unknown role %q", tableName, e.Type, f.Name, f.Role)
			}
			if prev, dup := seenRoles[f.Role]; dup {
				return fmt.Errorf("schema: %s/%s: fields %s and %s both declare role %s", tableName, e.Type, prev, f.Name, f.Role)
			}
			seenRoles[f.Role] = f.Name
			continue
		}

		column := f.Column
		if column == "" {
			column = f.Name
		}
		switch column {
		case table.ColumnPartitionKey, table.ColumnRowKey, table.ColumnTimestamp, table.ColumnETag, table.ColumnIsDeleted:
			return fmt.Errorf("schema: %s/%s: field %s maps to reserved column %q", tableName, e.Type, f.Name, column)
		}
		if prev, dup := seenColumns[column]; dup {
			return fmt.Errorf("schema: %s/%s: fields %s and %s both map to column %q", tableName, e.Type, prev, f.Name, column)
		}
		seenColumns[column] = f.Name
	}
	return nil
}
