package entity

import "errors"

// ErrNotFound is returned by lookups across the storage layer. Attribution
// treats it as a fall-through signal, not a failure.
var ErrNotFound = errors.New("not found")
