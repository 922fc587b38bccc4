package logging

import (
	"regexp"
	"strings"
)

// Credential material must never reach a log file. Field values whose key
// names secret material are masked, and password-shaped fragments inside
// free-form messages are masked as well.

const mask = "***"

var sensitiveKeyParts = []string{"password", "passphrase", "secret", "token"}

var sensitivePattern = regexp.MustCompile(`(?i)(password|passphrase|secret|token)(["']?\s*[:=]\s*["']?)([^"'\s,}]+)`)

// redactMessage masks password-shaped fragments in a message
func redactMessage(msg string) string {
	return sensitivePattern.ReplaceAllString(msg, "${1}${2}"+mask)
}

// redactFields returns a copy of fields with sensitive values masked.
// The input map is never mutated.
func redactFields(fields Fields) Fields {
	if len(fields) == 0 {
		return fields
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = mask
		} else {
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
