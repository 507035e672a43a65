package id

import "github.com/oklog/ulid/v2"

// New returns a time-sortable ULID string. Dispatch jobs carry one so the
// log lines of a single delivery can be grepped together.
func New() string {
	return ulid.Make().String()
}
