package books

import "errors"

// ErrNotFound is returned by Store lookups for unknown keys.
var ErrNotFound = errors.New("not found")
