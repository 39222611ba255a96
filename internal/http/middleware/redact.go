package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

var (
	redactUUID  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	redactEmail = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so it cannot eat the hex groups of a UUID.
	redactPhone = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redactor scrubs obvious PII from values that end up in access logs.
// Request and response bodies are never logged.
type Redactor struct {
	mask map[string]struct{}
}

// NewRedactor returns a Redactor that fully masks Authorization, Cookie,
// Set-Cookie and the given extra headers (case-insensitive).
func NewRedactor(maskHeaders ...string) *Redactor {
	r := &Redactor{mask: map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}}
	for _, h := range maskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.mask[h] = struct{}{}
		}
	}
	return r
}

// Redact replaces UUIDs, email addresses and phone numbers in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	// UUIDs first: the phone pattern is the loosest.
	s = redactUUID.ReplaceAllString(s, "[REDACTED:id]")
	s = redactEmail.ReplaceAllString(s, "[REDACTED:email]")
	return redactPhone.ReplaceAllString(s, "[REDACTED:phone]")
}

// Headers returns a flattened copy of h with masked headers replaced and
// the rest passed through Redact.
func (r *Redactor) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.mask[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.Redact(strings.Join(vv, ", "))
	}
	return out
}
