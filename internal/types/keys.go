package types

import (
	"strings"
)

// MakeKey builds the human identifier "<type>:<name>".
func MakeKey(t ArtifactType, name string) string {
	return string(t) + ":" + name
}

// ParseKey splits an artifact key into its type and name parts.
// The type must be valid and the name non-empty.
func ParseKey(key string) (ArtifactType, string, error) {
	idx := strings.Index(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", NewDetailError(KindValidation, "types.ParseKey",
			"invalid_artifact_key", "expected \"<type>:<name>\", got %q", key)
	}
	t := ArtifactType(key[:idx])
	name := key[idx+1:]
	if !t.IsValid() {
		return "", "", NewDetailError(KindValidation, "types.ParseKey",
			"invalid_artifact_key", "unknown artifact type %q in key %q", t, key)
	}
	return t, name, nil
}

// Slugify lowercases s and collapses every run of non-alphanumerics into a
// single hyphen, trimming leading and trailing hyphens. Empty results are
// the caller's error to reject.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// CompositeID returns the composite identifier for a parent name, or an
// error when the name slugifies to nothing.
func CompositeID(name string) (string, error) {
	slug := Slugify(name)
	if slug == "" {
		return "", NewDetailError(KindValidation, "types.CompositeID",
			"empty_slug", "plugin name %q produces an empty slug", name)
	}
	return "composite:" + slug, nil
}
