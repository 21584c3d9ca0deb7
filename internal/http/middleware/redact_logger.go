// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the scrubber used by AccessLog. It never sees bodies; it
// cleans query strings and header values before they reach the log:
//   - session tokens in the "token" query parameter are masked
//   - emails, phone numbers and UUIDs are replaced with placeholders
//   - Authorization, Cookie and Set-Cookie (plus configured headers) are
//     masked entirely
package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// RedactOptions configures extra masking for AccessLog.
type RedactOptions struct {
	// MaskHeaders are additional header names masked in full (case-insensitive).
	MaskHeaders []string
	// MaskQuery are additional query parameters masked in full.
	MaskQuery []string
}

var (
	// UUIDs go first so the loose phone pattern cannot eat their digit groups.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

type redactor struct {
	headers map[string]struct{}
	query   map[string]struct{}
}

func newRedactor(opts RedactOptions) *redactor {
	r := &redactor{
		headers: map[string]struct{}{"authorization": {}, "cookie": {}, "set-cookie": {}},
		query:   map[string]struct{}{"token": {}},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.headers[h] = struct{}{}
		}
	}
	for _, q := range opts.MaskQuery {
		if q = strings.TrimSpace(q); q != "" {
			r.query[q] = struct{}{}
		}
	}
	return r
}

func (r *redactor) scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// rawQuery masks sensitive parameters, then scrubs what is left.
func (r *redactor) rawQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		k, _, _ := strings.Cut(p, "=")
		if name, err := url.QueryUnescape(k); err == nil {
			k = name
		}
		if _, ok := r.query[k]; ok {
			parts[i] = k + "=[REDACTED]"
		}
	}
	return r.scrub(strings.Join(parts, "&"))
}

func (r *redactor) header(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.headers[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.scrub(strings.Join(vv, ", "))
	}
	return out
}
