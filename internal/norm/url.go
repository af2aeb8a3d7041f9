package norm

import (
	"net/url"
	"strings"
)

// IsURLField reports whether a field holds a URL, i.e. its last
// underscore-separated token is "url" ("url", "website_url", ...)
func IsURLField(name string) bool {
	tokens := strings.Split(name, "_")
	return tokens[len(tokens)-1] == "url"
}

// IsAbsoluteURL reports whether s parses as a URL with a scheme
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != ""
}

// FindRelativeURL returns the first URL field (in sorted field order) whose
// value is a non-empty string without a scheme. Empty values mean "unknown".
func FindRelativeURL(fields map[string]any, order []string) (string, bool) {
	for _, k := range order {
		if !IsURLField(k) {
			continue
		}
		s, ok := fields[k].(string)
		if !ok || s == "" {
			continue
		}
		if !IsAbsoluteURL(s) {
			return k, true
		}
	}
	return "", false
}
