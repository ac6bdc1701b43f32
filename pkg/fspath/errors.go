package fspath

import "errors"

// ErrInvalidPath is returned for malformed path strings and illegal
// components. Callers test for it with errors.Is.
var ErrInvalidPath = errors.New("invalid path")
