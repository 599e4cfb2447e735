// Package sqlutil provides SQL identifier utilities for GoFresh.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteBacktick quotes a MySQL/SQLite identifier with backticks.
// It escapes any existing backticks by doubling them.
// Example: "my_table" -> "`my_table`"
func QuoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteDouble quotes a Postgres identifier with double quotes.
// It escapes any existing double quotes by doubling them.
// Example: "my_table" -> `"my_table"`
func QuoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// validIdentifierRegex matches valid identifier characters.
// For safety, we restrict to alphanumeric and underscore only.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier checks if a name is a valid SQL identifier.
// This is a defense-in-depth measure against SQL injection, since table
// names flow into DROP TABLE statements that cannot be parameterized.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
