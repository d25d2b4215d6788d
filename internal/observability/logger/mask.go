package logger

import (
	"net/http"
	"strings"
)

const redacted = "****"

// Substrings that mark a JSON key as carrying a credential. Stripe client
// secrets and webhook signing secrets both match "secret".
var secretKeyMarkers = []string{"secret", "password", "token", "api_key", "signature", "authorization"}

var headerMaskers = map[string]func(string) string{
	"authorization":    MaskAuthorization,
	"stripe-signature": MaskSignature,
	"x-api-key":        tail,
}

// MaskAuthorization keeps the auth scheme and the last four characters of the credential.
func MaskAuthorization(value string) string {
	scheme, credential, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok {
		return tail(value)
	}
	return scheme + " " + tail(credential)
}

// MaskSignature masks every v* entry of a Stripe-Signature header and leaves the timestamp readable.
func MaskSignature(value string) string {
	entries := strings.Split(strings.TrimSpace(value), ",")
	for i, entry := range entries {
		key, sig, ok := strings.Cut(strings.TrimSpace(entry), "=")
		switch {
		case !ok:
			entries[i] = tail(entry)
		case key == "t":
			entries[i] = key + "=" + sig
		default:
			entries[i] = key + "=" + tail(sig)
		}
	}
	return strings.Join(entries, ",")
}

// MaskHeaders flattens headers into a loggable map with credentials masked.
func MaskHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		value := strings.Join(values, ",")
		if mask, ok := headerMaskers[strings.ToLower(name)]; ok {
			value = mask(value)
		}
		out[name] = value
	}
	return out
}

// MaskJSON copies a decoded JSON object, masking values stored under credential-looking keys.
func MaskJSON(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		if looksSecret(key) {
			if s, ok := value.(string); ok {
				out[key] = tail(s)
			} else {
				out[key] = redacted
			}
			continue
		}
		out[key] = maskNested(value)
	}
	return out
}

// RequestFields summarizes a request for access logs.
func RequestFields(req *http.Request) map[string]any {
	if req == nil {
		return map[string]any{}
	}
	size := req.ContentLength
	if size < 0 {
		size = 0
	}
	return map[string]any{
		"method":         req.Method,
		"path":           req.URL.Path,
		"content_length": size,
		"headers":        MaskHeaders(req.Header),
	}
}

func maskNested(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return MaskJSON(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = maskNested(v[i])
		}
		return out
	}
	return value
}

func looksSecret(key string) bool {
	key = strings.ToLower(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func tail(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return ""
	case len(value) <= 4:
		return redacted + value
	}
	return redacted + value[len(value)-4:]
}
