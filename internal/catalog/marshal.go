package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalJSON converts a column value to JSON TEXT for storage.
// Map keys are sorted and HTML escaping is disabled so identical snapshots
// produce identical rows.
func marshalJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func marshalConfig(cfg map[string]any) (string, error) {
	if len(cfg) == 0 {
		return "{}", nil
	}
	s, err := marshalJSON(cfg, "{}")
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return s, nil
}

func marshalStrings(field string, values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	s, err := marshalJSON(values, "[]")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	return s, nil
}

func unmarshalConfig(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(s), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func unmarshalStrings(field, s string) ([]string, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return values, nil
}
