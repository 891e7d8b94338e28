package dbx

import "encoding/json"

// JSONB encodes v for a JSONB column. nil slices are stored as "[]" so the
// column never holds SQL NULL or JSON null for list-valued fields.
func JSONB(v any) (string, error) {
	if s, ok := v.([]string); ok && s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Strings decodes a JSONB array of strings. Empty input yields an empty slice.
func Strings(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
