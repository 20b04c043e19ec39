package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BrowserFingerprint is the client-supplied browser attribute blob. It keeps the
// raw JSON so callers can tell objects from strings, arrays and primitives.
type BrowserFingerprint struct {
	raw json.RawMessage
}

// NewBrowserFingerprint wraps raw JSON. Whitespace and a literal null are treated
// as absent.
func NewBrowserFingerprint(raw []byte) BrowserFingerprint {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return BrowserFingerprint{}
	}
	return BrowserFingerprint{raw: append(json.RawMessage(nil), trimmed...)}
}

func (b *BrowserFingerprint) UnmarshalJSON(data []byte) error {
	*b = NewBrowserFingerprint(data)
	return nil
}

func (b BrowserFingerprint) MarshalJSON() ([]byte, error) {
	if len(b.raw) == 0 {
		return []byte("null"), nil
	}
	return b.raw, nil
}

// IsZero reports whether no fingerprint was supplied.
func (b BrowserFingerprint) IsZero() bool {
	return len(b.raw) == 0
}

// IsObject reports whether the fingerprint is a well-formed JSON object. Only
// objects are used as match keys or persisted.
func (b BrowserFingerprint) IsObject() bool {
	if len(b.raw) == 0 || b.raw[0] != '{' {
		return false
	}
	var obj map[string]any
	return json.Unmarshal(b.raw, &obj) == nil
}

// Object returns the compacted JSON object, or nil when the fingerprint is not
// an object.
func (b BrowserFingerprint) Object() json.RawMessage {
	if !b.IsObject() {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b.raw); err != nil {
		return nil
	}
	return buf.Bytes()
}

// Sanitized drops anything that is not an object.
func (b BrowserFingerprint) Sanitized() BrowserFingerprint {
	if !b.IsObject() {
		return BrowserFingerprint{}
	}
	return BrowserFingerprint{raw: b.Object()}
}

// UserAgent extracts the user agent: the object's truthy userAgent member, or the
// fingerprint itself when it is a JSON string. Otherwise nil.
func (b BrowserFingerprint) UserAgent() *string {
	if len(b.raw) == 0 {
		return nil
	}

	switch b.raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b.raw, &s); err != nil {
			return nil
		}
		return &s
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(b.raw, &obj); err != nil {
			return nil
		}
		var ua string
		switch v := obj["userAgent"].(type) {
		case string:
			ua = v
		case float64:
			if v == 0 {
				return nil
			}
			ua = fmt.Sprint(v)
		case bool:
			if !v {
				return nil
			}
			ua = "true"
		case nil:
			return nil
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil
			}
			ua = string(encoded)
		}
		if ua == "" {
			return nil
		}
		return &ua
	}

	return nil
}
