// Package canonical produces the deterministic JSON form that request
// signatures are computed over. Signer and verifier must byte-for-byte
// agree on the serialized body, so the rule is explicit: sorted keys,
// compact output, nulls stripped. Relying on whatever a JSON encoder
// happens to emit is how signatures break silently.
package canonical

import (
	"encoding/json"
	"fmt"
)

// Marshal converts v to its canonical JSON string. It round-trips the
// value through a generic structure so map keys sort on re-marshal
// (encoding/json sorts map keys), then strips nulls.
func Marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical: marshal: %w", err)
	}

	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return "", fmt.Errorf("canonical: unmarshal: %w", err)
	}

	out, err := json.Marshal(stripNulls(generic))
	if err != nil {
		return "", fmt.Errorf("canonical: re-marshal: %w", err)
	}

	return string(out), nil
}

// MarshalBytes is like Marshal but starts from raw JSON bytes, as read
// off an HTTP request body. Empty input canonicalizes to the empty
// object, matching a body-less signed request.
func MarshalBytes(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "{}", nil
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("canonical: parse body: %w", err)
	}

	out, err := json.Marshal(stripNulls(generic))
	if err != nil {
		return "", fmt.Errorf("canonical: re-marshal: %w", err)
	}

	return string(out), nil
}

// SignedString builds the canonical signed string for a request:
// extensionID + ":" + timestamp + ":" + canonical JSON body.
func SignedString(extensionID, timestamp string, body []byte) (string, error) {
	canon, err := MarshalBytes(body)
	if err != nil {
		return "", err
	}
	return extensionID + ":" + timestamp + ":" + canon, nil
}

// stripNulls recursively removes null members from objects. Arrays keep
// their nulls; dropping elements would change positions.
func stripNulls(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, member := range val {
			if member != nil {
				result[k] = stripNulls(member)
			}
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = stripNulls(item)
		}
		return result
	default:
		return v
	}
}
