package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
// Comma separated lists are masked element by element.
func RedactEmail(email string) string {
	if strings.Contains(email, ",") {
		parts := strings.Split(email, ",")
		for i, p := range parts {
			parts[i] = RedactEmail(strings.TrimSpace(p))
		}
		return strings.Join(parts, ",")
	}
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
