// Package store provides the local stores behind the ClipHaven core: the
// in-memory item store (the live working set), secret stores for provider
// credentials, and blob stores for usage persistence.
package store

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}
