// Package redact removes sensitive fragments from strings before they are
// logged. Error strings from the stores can carry connection strings, SQL
// with bound values, emails, ids, password hashes and tokens.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedHashPlaceholder       = "[REDACTED_HASH]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedUUIDPlaceholder       = "[REDACTED_UUID]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedHostPlaceholder       = "[REDACTED_HOST]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
	SQLValuesPlaceholder          = "[SQL_VALUES_REDACTED]"
	SQLWherePlaceholder           = "[SQL_WHERE_REDACTED]"
)

type rule struct {
	pattern *regexp.Regexp
	// replacement may reference capture groups, e.g. "${1}".
	replacement string
}

// rules run in order. Token-shaped values go first so the key rule does not
// split them; SQL statements go before the value rules because everything
// after the statement target is dropped; emails go before hosts.
var rules = []rule{
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), RedactedJWTPlaceholder},
	{regexp.MustCompile(`\$2[abxy]?\$\d{2}\$[./A-Za-z0-9]{53}`), RedactedHashPlaceholder},

	{regexp.MustCompile(`\bSELECT\b[\s\S]*?\bFROM\b[\s\S]*`), "SELECT FROM... " + SQLValuesPlaceholder},
	{regexp.MustCompile(`\b(INSERT\s+INTO\s+[\w."]+)[\s\S]*`), "${1} " + SQLValuesPlaceholder},
	{regexp.MustCompile(`\b(UPDATE\s+[\w."]+)\s+SET\b[\s\S]*`), "${1} " + SQLValuesPlaceholder},
	{regexp.MustCompile(`\b(DELETE\s+FROM\s+[\w."]+)\s+WHERE\b[\s\S]*`), "${1} " + SQLWherePlaceholder},

	{regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|mysql|mongodb)://[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[=:]\s*['"]?[^'"&\s,;]+['"]?`), RedactedCredentialPlaceholder},
	{
		regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|token|access[_-]?key)\s*[=:]\s*['"]?[A-Za-z0-9_\-.~+/]{8,}['"]?`),
		RedactedKeyPlaceholder,
	},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmailPlaceholder},
	{
		regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`),
		RedactedUUIDPlaceholder,
	},

	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), RedactedStackPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\\s]+(\\[^\\\s]+)+`), RedactedPathPlaceholder},
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
	{
		regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`),
		RedactedHostPlaceholder,
	},
}

// String redacts sensitive information from input.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from err.Error(). A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
