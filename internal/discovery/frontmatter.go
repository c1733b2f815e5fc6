package discovery

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the normalized YAML header of an artifact manifest.
type Frontmatter struct {
	Name        string
	Description string
	Version     string
	Source      string
	Scope       string
	Tags        []string
}

// keyAliases maps frontmatter spellings seen in the wild onto the
// canonical keys.
var keyAliases = map[string]string{
	"title":    "name",
	"upstream": "source",
}

var frontmatterDelim = []byte("---")

// ExtractFrontmatter splits a manifest into its YAML header and body.
// Documents without a leading "---" block return a nil Frontmatter and
// the input unchanged. Keys are lowercased and alias-normalized
// (title becomes name, upstream becomes source).
func ExtractFrontmatter(data []byte) (*Frontmatter, []byte, error) {
	rest, ok := cutDelimLine(data)
	if !ok {
		return nil, data, nil
	}

	var header []byte
	body := rest
	for {
		line, after, found := bytes.Cut(body, []byte("\n"))
		if isDelimLine(line) {
			body = after
			break
		}
		header = append(header, line...)
		header = append(header, '\n')
		if !found {
			// Unterminated header block.
			return nil, data, fmt.Errorf("frontmatter not terminated")
		}
		body = after
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(header, &raw); err != nil {
		return nil, data, fmt.Errorf("parsing frontmatter: %w", err)
	}

	fm := &Frontmatter{}
	// Aliased spellings first so a canonical key present alongside its
	// alias always wins.
	for _, aliased := range []bool{true, false} {
		for key, value := range raw {
			k := strings.ToLower(strings.TrimSpace(key))
			alias, isAlias := keyAliases[k]
			if isAlias != aliased {
				continue
			}
			if isAlias {
				k = alias
			}
			switch k {
			case "name":
				fm.Name = asString(value)
			case "description":
				fm.Description = asString(value)
			case "version":
				fm.Version = asString(value)
			case "source":
				fm.Source = asString(value)
			case "scope":
				fm.Scope = asString(value)
			case "tags":
				fm.Tags = asStringList(value)
			}
		}
	}
	return fm, body, nil
}

// cutDelimLine strips a leading "---" line, tolerating a UTF-8 BOM and
// CRLF endings.
func cutDelimLine(data []byte) ([]byte, bool) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	line, rest, found := bytes.Cut(data, []byte("\n"))
	if !found || !isDelimLine(line) {
		return nil, false
	}
	return rest, true
}

func isDelimLine(line []byte) bool {
	return bytes.Equal(bytes.TrimRight(line, "\r"), frontmatterDelim)
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// asStringList accepts a YAML sequence or a comma-separated scalar and
// returns the trimmed, non-empty items.
func asStringList(v interface{}) []string {
	var items []string
	switch list := v.(type) {
	case []interface{}:
		for _, item := range list {
			if s := asString(item); s != "" {
				items = append(items, s)
			}
		}
	case string:
		for _, part := range strings.Split(list, ",") {
			if s := strings.TrimSpace(part); s != "" {
				items = append(items, s)
			}
		}
	}
	return items
}
