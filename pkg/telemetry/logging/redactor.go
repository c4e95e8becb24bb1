package logging

import (
	"regexp"
	"strings"
)

// credentialPatterns match credential material that can appear inside
// free-form string values: bearer headers, JWTs, cookie assignments and
// the vendor signing headers.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`(sessionid|sessionid_ss|tongyi_sso_ticket|XSRF-TOKEN|uid|sid)=[^;\s]+`),
	regexp.MustCompile(`(x-ds-pow-response|x-signature|X-Sign|yy):\s*\S+`),
}

var credentialReplacements = []string{
	"Bearer ***",
	"eyJ***",
	"$1=***",
	"$1: ***",
}

// sensitiveKeys are attribute names whose values are credentials
// regardless of shape.
var sensitiveKeys = []string{
	"token", "cookie", "secret", "signature", "credential",
	"authorization", "ticket", "password",
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(k, sensitive) {
			return true
		}
	}
	return false
}

// RedactString replaces any embedded credential material in a string.
func RedactString(value string) string {
	if value == "" {
		return value
	}
	for i, pattern := range credentialPatterns {
		value = pattern.ReplaceAllString(value, credentialReplacements[i])
	}
	return value
}

// RedactCredential redacts a value known to be a credential, keeping a
// short prefix so operators can tell credentials apart.
func RedactCredential(value string) string {
	if len(value) <= 4 {
		return "***"
	}
	return value[:4] + "***"
}
