// Package redact scrubs potential document fragments out of messages
// that end up in logs or the audit trail. Scrubbing is deliberately
// aggressive: losing detail in an error message is acceptable, leaking
// a name is not.
package redact

import "regexp"

// Placeholder replaces every scrubbed fragment.
const Placeholder = "[REDACTED]"

var (
	// Anything quoted may be document text.
	quotedPattern = regexp.MustCompile(`"[^"]*"|'[^']*'|«[^»]*»|“[^”]*”`)

	// Two or more capitalized words in a row look like a name.
	// Single capitalized words stay, otherwise every sentence start
	// would be scrubbed.
	namePattern = regexp.MustCompile(`\p{Lu}[\p{L}'-]*(?:\s+\p{Lu}[\p{L}'-]*)+`)

	// Long digit runs look like phone numbers or identifiers.
	digitPattern = regexp.MustCompile(`\d[\d .-]{7,}\d`)
)

// Message returns a copy of the message with quoted text, capitalized
// sequences and long digit runs replaced by the placeholder.
func Message(message string) string {
	scrubbed := quotedPattern.ReplaceAllString(message, Placeholder)
	scrubbed = namePattern.ReplaceAllString(scrubbed, Placeholder)
	scrubbed = digitPattern.ReplaceAllString(scrubbed, Placeholder)
	return scrubbed
}

// Error is a nil safe Message over an error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Message(err.Error())
}
