package docstore

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Encode marshals a value for storage.
func Encode(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("docstore: invalid raw json")
		}
		return raw, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	return b, nil
}

// Decode unmarshals a stored document into dst.
func Decode(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	return nil
}

// EncodeFields marshals a merge patch, rejecting nil values so that every
// backend merges identically.
func EncodeFields(fields map[string]any) (json.RawMessage, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("docstore: empty update")
	}
	for k, v := range fields {
		if v == nil {
			return nil, fmt.Errorf("docstore: nil value for field %q", k)
		}
	}
	return Encode(fields)
}

// Merge applies a shallow merge of patch onto doc. Both must be JSON objects.
func Merge(doc, patch []byte) (json.RawMessage, error) {
	var base map[string]json.RawMessage
	if err := json.Unmarshal(doc, &base); err != nil || base == nil {
		return nil, ErrNotObject
	}
	var p map[string]json.RawMessage
	if err := json.Unmarshal(patch, &p); err != nil {
		return nil, fmt.Errorf("docstore: patch: %w", err)
	}
	for k, v := range p {
		base[k] = v
	}
	return json.Marshal(base)
}

// FieldEquals reports whether doc is an object whose field holds the string
// expected.
func FieldEquals(doc []byte, field, expected string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc, &m); err != nil {
		return false
	}
	raw, ok := m[field]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == expected
}

// NewPushKey returns a time-ordered key for Push.
func NewPushKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("docstore: push key: %w", err)
	}
	return id.String(), nil
}
