package log

import "strings"

// sensitiveKeywords flags fields whose values must be masked. Both
// provider API keys and any future webhook credentials match.
var sensitiveKeywords = []string{
	"password", "passwd", "pwd",
	"api_key", "apikey", "api-key",
	"token", "access_token",
	"secret", "auth", "authorization",
	"credential", "private_key", "privatekey",
	"dsn", "source",
}

// SanitizeField masks the value when the key looks credential-bearing.
func SanitizeField(key, value string) string {
	if value == "" {
		return value
	}

	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return maskValue(value)
		}
	}
	return value
}

// maskValue shows only the first and last 4 characters of long values.
func maskValue(value string) string {
	if len(value) <= 8 {
		if len(value) <= 2 {
			return strings.Repeat("*", len(value))
		}
		return string(value[0]) + strings.Repeat("*", len(value)-2) + string(value[len(value)-1])
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
