package domain

import "errors"

// ErrNotFound is returned by repositories when a row does not exist. Callers
// map it to protocol feedback; it never carries row identity, the call site
// has that.
var ErrNotFound = errors.New("resource not found")
