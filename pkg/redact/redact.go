package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// key=value and key: value pairs, including URL query parameters echoed in
	// transport errors.
	secretKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?key(?:[_-]?id)?|secret(?:[_-]?access[_-]?key|[_-]?key)?|token|password)\b(\s*[:=]\s*)[^\s"'&]+`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = secretKVRe.ReplaceAllString(out, "$1$2<redacted>")
	return strings.TrimSpace(out)
}
