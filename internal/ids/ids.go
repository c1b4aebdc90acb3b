package ids

import "github.com/oklog/ulid/v2"

// RequestID returns a lexicographically sortable identifier used to
// correlate the log and audit lines of one request.
func RequestID() string {
	return ulid.Make().String()
}

// Valid reports whether s is a well-formed ULID, so that inbound
// X-Request-ID values can be propagated instead of replaced.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
