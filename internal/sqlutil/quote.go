// Package sqlutil provides helpers for building verification queries.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteIdentifier quotes a MySQL identifier with backticks, doubling any
// embedded backtick.
// Example: "customers" -> "`customers`"
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier reports whether name contains only alphanumerics and
// underscores.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// QuoteQualified validates and quotes a possibly schema-qualified name such
// as "erp.customers".
func QuoteQualified(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", &InvalidIdentifierError{Name: name}
	}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		if !IsValidIdentifier(p) {
			return "", &InvalidIdentifierError{Name: name}
		}
		quoted[i] = QuoteIdentifier(p)
	}
	return strings.Join(quoted, "."), nil
}

// Placeholders returns n comma-separated "?" markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
