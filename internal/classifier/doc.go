// Package classifier maps raw HTTP responses from the identity platform to
// typed outcomes.
//
// Every function here is pure: no I/O, no state between calls. The response
// patterns mirror the platform's public error contract; anything that does
// not match a known pattern falls back to the conservative outcome for its
// check kind.
package classifier
