package sqlkit

import "regexp"

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier reports whether name is safe to splice into SQL as a
// bare identifier (table or column name). The query builder never quotes
// identifiers on the caller's behalf, so Dynamic CRUD's table-name
// allow-list calls this before accepting a runtime-discovered table name.
func IsValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}
