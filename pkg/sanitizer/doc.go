// Package sanitizer normalizes user-supplied text before validation and
// storage.
//
// Every function is idempotent and never fails: bad input degrades to an
// empty string or empty slice, and validation decides whether that is
// acceptable.
package sanitizer
