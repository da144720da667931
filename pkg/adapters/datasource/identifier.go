package datasource

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

// MaxIdentifierLength is the longest catalog/schema/table name the engine
// will interpolate into a statement.
const MaxIdentifierLength = 255

// QuoteIdentifier escapes an externally supplied identifier for safe
// interpolation into statements the driver cannot parameterize (SHOW TABLES
// IN DATABASE <name>, dynamic INFORMATION_SCHEMA queries). The identifier is
// wrapped in double quotes and embedded double quotes are doubled, per
// standard SQL identifier quoting.
//
// Every call site that builds metadata SQL by string interpolation must route
// the identifier through this function; skipping it is a SQL-injection vector.
func QuoteIdentifier(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: identifier must not be empty", apperrors.ErrInvalidIdentifier)
	}
	if utf8.RuneCountInString(name) > MaxIdentifierLength {
		return "", fmt.Errorf("%w: identifier exceeds %d characters", apperrors.ErrInvalidIdentifier, MaxIdentifierLength)
	}
	// A NUL terminates the string early in some drivers, splitting the quoted
	// region; no real catalog object carries one.
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: identifier contains a NUL byte", apperrors.ErrInvalidIdentifier)
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}
