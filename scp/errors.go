package scp

import "errors"

// ErrInvalidStatement is the sentinel spec.md §7 "InvalidStatement"
// wraps: the statement fails sanity and is discarded, but the session
// that carried it is not dropped for this alone.
var ErrInvalidStatement = errors.New("scp: invalid statement")
