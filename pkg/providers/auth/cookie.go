package auth

import (
	"net/url"
	"strings"
)

// ParseCookieString parses a raw "k=v; k2=v2" cookie fragment into a
// map. Malformed segments without '=' are skipped. Operators paste these
// fragments straight out of browser devtools, so parsing is lenient.
func ParseCookieString(raw string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		cookies[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return cookies
}

// BuildCookieHeader renders ordered name/value pairs as a Cookie header.
// Order is caller-controlled because some vendors are sensitive to it.
func BuildCookieHeader(pairs [][2]string) string {
	var b strings.Builder
	for i, pair := range pairs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(pair[0])
		b.WriteString("=")
		b.WriteString(pair[1])
	}
	return b.String()
}

// XSRFToken extracts and URL-decodes the XSRF-TOKEN cookie from a parsed
// cookie map. Returns the empty string when absent.
func XSRFToken(cookies map[string]string) string {
	raw, ok := cookies["XSRF-TOKEN"]
	if !ok {
		return ""
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
