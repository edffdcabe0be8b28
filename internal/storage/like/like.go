// Package like prepares user input for LIKE/ILIKE patterns.
package like

import "strings"

var escaper = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_",
	"%", "\\%",
)

// Escape trims s and escapes the LIKE wildcards so it matches literally
// inside a '%...%' pattern (backslash is the default escape character in postgres).
func Escape(s string) string {
	return escaper.Replace(strings.TrimSpace(s))
}
