// Package table defines the row model for the table store: the closed
// union of storage-native property kinds, the generic Row record with
// validated composite keys, and table definitions.
package table

// Definition describes a table as the store needs to know it.
type Definition struct {
	Name string
	// SoftDelete marks the table as using the reserved IsDeleted column
	// instead of physical deletes.
	SoftDelete bool
}
