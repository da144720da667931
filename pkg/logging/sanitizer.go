package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a SQL statement to log.
	MaxQueryLogLength = 120
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter); covers libpq
	// keyword DSNs and Snowflake connection parameters.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in URL-style DSNs (postgresql://, snowflake account DSNs).
	dsnCredsPattern = regexp.MustCompile(`(://)?[^:/\s]+:[^@\s]+@[^/\s]+`)

	// token=xxx or private_key=xxx query parameters.
	tokenPattern = regexp.MustCompile(`(?i)(token|private_key)=[^;&\s]+`)
)

// SanitizeDSN removes credentials from a connection string before logging.
func SanitizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	out := passwordPattern.ReplaceAllString(dsn, "${1}="+RedactedText)
	out = dsnCredsPattern.ReplaceAllString(out, "${1}"+RedactedText+"@"+RedactedText)
	return out
}

// SanitizeError scrubs credentials from error text originating in database
// drivers. Driver errors can echo back the DSN they failed to connect with.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	out := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	out = tokenPattern.ReplaceAllString(out, "${1}="+RedactedText)
	out = dsnCredsPattern.ReplaceAllString(out, "${1}"+RedactedText+"@"+RedactedText)
	return out
}

// SanitizeQuery truncates a SQL statement for logging and scrubs credential
// patterns that can appear in literals.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	out := query
	if len(out) > MaxQueryLogLength {
		out = out[:MaxQueryLogLength] + "..."
	}
	out = passwordPattern.ReplaceAllString(out, "${1}="+RedactedText)
	return out
}
