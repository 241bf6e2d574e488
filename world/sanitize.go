package world

import (
	"regexp"
	"strings"
)

const (
	maxNameLength = 20
	maxChatLength = 200
)

var nameDisallowed = regexp.MustCompile(`[^A-Za-z0-9_ \-]`)

// SanitizeName keeps letters, digits, underscore, space and hyphen, trims the
// result and cuts it to 20 characters. An empty return means the name should
// not change.
func SanitizeName(name string) string {
	clean := strings.TrimSpace(nameDisallowed.ReplaceAllString(name, ""))
	return strings.TrimSpace(truncate(clean, maxNameLength))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
