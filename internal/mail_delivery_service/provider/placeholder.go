package provider

import "strings"

// placeholderValues are the defaults shipped in sample env files. A credential
// equal to one of them is treated as unset.
var placeholderValues = map[string]struct{}{
	"changeme":             {},
	"change-me":            {},
	"change_me":            {},
	"placeholder":          {},
	"xxx":                  {},
	"xxxx":                 {},
	"todo":                 {},
	"none":                 {},
	"null":                 {},
	"undefined":            {},
	"your_smtp_user":       {},
	"your_smtp_pass":       {},
	"your_api_key":         {},
	"your-api-key":         {},
	"your_password":        {},
	"your_email@gmail.com": {},
}

// IsPlaceholder reports whether a credential value is empty or a known
// placeholder sentinel.
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	if _, ok := placeholderValues[v]; ok {
		return true
	}
	if strings.HasPrefix(v, "your_") || strings.HasPrefix(v, "your-") {
		return true
	}
	return strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">")
}

// configured reports whether none of values is a placeholder.
func configured(values ...string) bool {
	for _, v := range values {
		if IsPlaceholder(v) {
			return false
		}
	}
	return true
}
