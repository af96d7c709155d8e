package security

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const redactedValue = "[REDACTED]"

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
}

// sensitiveFields are matched as substrings of lower-cased JSON keys and
// query parameter names.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"apikey",
	"api_key",
	"authorization",
	"private_key",
	"llave",
	"sello",
	"certificado",
	"credential",
}

// cfdiSecretAttrs matches the seal and certificate attributes of a signed
// CFDI, which are both large and sensitive.
var cfdiSecretAttrs = regexp.MustCompile(`\b(Sello|SelloCFD|SelloSAT|Certificado)="[^"]*"`)

// SanitizeHeaders returns a flat copy of headers with credentials redacted.
func SanitizeHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			out[key] = redactedValue
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// SanitizeBody turns a PAC request or response body into JSON safe to log
// and persist. JSON bodies keep their shape with sensitive keys redacted;
// XML and plain text are wrapped; binary data is base64 encoded.
func SanitizeBody(body []byte, maxSize int) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if !utf8.Valid(body) {
		return marshal(map[string]any{
			"_binary": true,
			"_size":   len(body),
			"_base64": base64.StdEncoding.EncodeToString(body),
		})
	}

	var data any
	if err := json.Unmarshal(body, &data); err == nil {
		sanitized := marshal(sanitizeValue(data))
		if maxSize > 0 && len(sanitized) > maxSize {
			return truncated(string(sanitized), maxSize)
		}
		return sanitized
	}

	text := RedactXML(string(body))
	if maxSize > 0 && len(text) > maxSize {
		return truncated(text, maxSize)
	}
	format := "text"
	if strings.HasPrefix(strings.TrimSpace(text), "<") {
		format = "xml"
	}
	return marshal(map[string]any{"_format": format, "_raw": text})
}

// RedactXML blanks seal and certificate attribute values in CFDI XML.
func RedactXML(s string) string {
	return cfdiSecretAttrs.ReplaceAllString(s, `$1="`+redactedValue+`"`)
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, value := range val {
			if isSensitive(key) {
				out[key] = redactedValue
				continue
			}
			out[key] = sanitizeValue(value)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, value := range val {
			out[i] = sanitizeValue(value)
		}
		return out
	case string:
		return RedactXML(val)
	default:
		return val
	}
}

// SanitizeURL redacts sensitive query parameters.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for key := range q {
		if isSensitive(key) {
			q.Set(key, redactedValue)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, f := range sensitiveFields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

func truncated(preview string, maxSize int) json.RawMessage {
	return marshal(map[string]any{
		"_truncated": true,
		"_size":      len(preview),
		"_preview":   preview[:maxSize],
	})
}

func marshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"_error":"unserializable body"}`)
	}
	return b
}
