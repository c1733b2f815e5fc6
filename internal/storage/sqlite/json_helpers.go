package sqlite

import (
	"encoding/json"
)

// formatJSONStringArray serializes a string slice for TEXT column storage.
// nil and empty both serialize to "[]" so scans round-trip cleanly.
func formatJSONStringArray(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// parseJSONStringArray deserializes a TEXT column into a string slice.
// Malformed data yields nil rather than an error: cache columns are
// rebuildable and must never brick a read path.
func parseJSONStringArray(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

// formatJSONStringMap serializes a string map for TEXT column storage.
func formatJSONStringMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// parseJSONStringMap deserializes a TEXT column into a string map.
func parseJSONStringMap(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}
