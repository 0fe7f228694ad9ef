// Package id generates ULID identifiers for journal records.
//
// ULIDs sort lexicographically by generation time, which keeps SQLite
// indexes on record ids in insertion order.
package id

import "github.com/oklog/ulid/v2"

// New returns a fresh ULID string.
func New() string {
	return ulid.Make().String()
}
