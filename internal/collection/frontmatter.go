package collection

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/utils"
)

var frontmatterDelim = []byte("---")

// NormalizeTags trims each tag, drops empties, and deduplicates with the
// first occurrence winning, preserving order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// RewriteManifestTags replaces the tags: list in an artifact manifest's
// YAML frontmatter, under the collection lock. Every other frontmatter
// key keeps its position, value, and comments; the body is untouched. A
// manifest without frontmatter gains a header holding only the tags.
func (s *Store) RewriteManifestTags(ctx context.Context, path string, tags []string) error {
	return s.withLock(ctx, func() error {
		return rewriteManifestTags(path, tags)
	})
}

func rewriteManifestTags(path string, tags []string) error {
	const op = "collection.RewriteManifestTags"
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the collection manifest
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewDetailError(types.KindNotFound, op,
				"missing_manifest", "no artifact manifest at %s", path)
		}
		return types.WrapError(types.KindTransientIO, op, err)
	}

	header, body, found, err := splitHeader(data)
	if err != nil {
		return &types.Error{Kind: types.KindValidation, Op: op,
			Detail: "frontmatter_parse",
			Msg:    fmt.Sprintf("frontmatter of %s is unusable", path),
			Err:    err}
	}
	if !found {
		body = data
	}

	var doc yaml.Node
	if found {
		if err := yaml.Unmarshal(header, &doc); err != nil {
			return &types.Error{Kind: types.KindValidation, Op: op,
				Detail: "frontmatter_parse",
				Msg:    fmt.Sprintf("frontmatter of %s does not parse", path),
				Err:    err}
		}
	}
	mapping, ok := documentMapping(&doc)
	if !ok {
		return types.NewDetailError(types.KindValidation, op,
			"frontmatter_parse", "frontmatter of %s is not a mapping", path)
	}
	setTagsNode(mapping, NormalizeTags(tags))

	var buf bytes.Buffer
	buf.Write(frontmatterDelim)
	buf.WriteByte('\n')
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	if err := enc.Close(); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	buf.Write(frontmatterDelim)
	buf.WriteByte('\n')
	buf.Write(body)

	if err := utils.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return types.WrapError(types.KindTransientIO, op, err)
	}
	return nil
}

// ReadManifestTags returns the tags: list from an artifact manifest's
// frontmatter. A manifest without frontmatter, or without tags, returns
// nil.
func ReadManifestTags(path string) ([]string, error) {
	const op = "collection.ReadManifestTags"
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the collection manifest
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewDetailError(types.KindNotFound, op,
				"missing_manifest", "no artifact manifest at %s", path)
		}
		return nil, types.WrapError(types.KindTransientIO, op, err)
	}

	header, _, found, err := splitHeader(data)
	if err != nil || !found {
		return nil, nil
	}
	var fm struct {
		Tags []string `yaml:"tags"`
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, nil
	}
	return fm.Tags, nil
}

// splitHeader separates a leading "---" frontmatter block from the body,
// tolerating a UTF-8 BOM and CRLF endings. found is false when the file
// has no header. An unterminated header is an error: rewriting a file we
// cannot split safely would destroy content.
func splitHeader(data []byte) (header, body []byte, found bool, err error) {
	trimmed := bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	line, rest, cut := bytes.Cut(trimmed, []byte("\n"))
	if !cut || !isDelimLine(line) {
		return nil, nil, false, nil
	}

	body = rest
	for {
		line, after, cut := bytes.Cut(body, []byte("\n"))
		if isDelimLine(line) {
			return header, after, true, nil
		}
		header = append(header, line...)
		header = append(header, '\n')
		if !cut {
			return nil, nil, false, fmt.Errorf("frontmatter not terminated")
		}
		body = after
	}
}

func isDelimLine(line []byte) bool {
	return bytes.Equal(bytes.TrimRight(line, "\r"), frontmatterDelim)
}

// documentMapping returns the document's top-level mapping, creating the
// document and mapping nodes when the header was empty or absent. A
// header that parses to something other than a mapping returns ok=false.
func documentMapping(doc *yaml.Node) (*yaml.Node, bool) {
	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	m := doc.Content[0]
	if m.Kind == yaml.ScalarNode && m.Tag == "!!null" {
		*m = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	if m.Kind != yaml.MappingNode {
		return nil, false
	}
	return m, true
}

// setTagsNode replaces the value of the mapping's tags key with a fresh
// sequence, appending the key when it is absent.
func setTagsNode(m *yaml.Node, tags []string) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, t := range tags {
		seq.Content = append(seq.Content, &yaml.Node{
			Kind: yaml.ScalarNode, Tag: "!!str", Value: t,
		})
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if strings.EqualFold(m.Content[i].Value, "tags") {
			m.Content[i+1] = seq
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "tags"},
		seq)
}
