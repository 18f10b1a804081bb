package deploy

import (
	"regexp"
	"strings"
)

var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
	paramPattern  = regexp.MustCompile(`(?i)(access_token|token|api_key|apikey|cookie|set-cookie)\s*[=:]\s*[^\s;&"']+`)
	urlPattern    = regexp.MustCompile(`(?i)\b(https?|s3|ftp)://[^\s"'<>]+`)
)

// Redact strips credential material from free text and collapses any
// embedded URL to scheme://host/... so engine hostnames and paths never
// reach logs or responses.
func Redact(text string) string {
	if text == "" {
		return ""
	}
	text = bearerPattern.ReplaceAllString(text, "Bearer [REDACTED]")
	text = paramPattern.ReplaceAllStringFunc(text, func(match string) string {
		if i := strings.IndexAny(match, "=:"); i >= 0 {
			return match[:i+1] + "[REDACTED]"
		}
		return "[REDACTED]"
	})
	text = urlPattern.ReplaceAllStringFunc(text, collapseURL)
	return text
}

func collapseURL(raw string) string {
	rest := raw
	scheme := ""
	if i := strings.Index(rest, "://"); i >= 0 {
		scheme = rest[:i]
		rest = rest[i+3:]
	}
	host := rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		host = rest[:i]
	}
	// user:pass@host
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	return scheme + "://" + host + "/..."
}
