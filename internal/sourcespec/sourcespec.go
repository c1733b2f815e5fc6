// Package sourcespec parses artifact source references.
//
// Two families are accepted: the marketplace shorthand
// "owner/repo/path[@version]" and full GitHub URLs
// ("https://github.com/owner/repo/tree/<branch>/path" or the blob
// equivalent for single files).
package sourcespec

import (
	"net/url"
	"strings"

	"github.com/skillmeat/skillmeat/internal/types"
)

const op = "sourcespec.Parse"

// Spec identifies an artifact source inside a remote repository.
type Spec struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Path    string `json:"path,omitempty"`    // repo-relative, slash-separated
	Ref     string `json:"ref,omitempty"`     // branch or tag, URL forms only
	Version string `json:"version,omitempty"` // "@version" pin, shorthand only
}

// String reconstructs the shorthand form.
func (s *Spec) String() string {
	out := s.Owner + "/" + s.Repo
	if s.Path != "" {
		out += "/" + s.Path
	}
	if s.Version != "" {
		out += "@" + s.Version
	}
	return out
}

// RepoURL returns the web URL of the containing repository.
func (s *Spec) RepoURL() string {
	return "https://github.com/" + s.Owner + "/" + s.Repo
}

// Parse accepts a shorthand or GitHub URL reference.
func Parse(raw string) (*Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, types.NewDetailError(types.KindValidation, op,
			"malformed_source_spec", "empty source spec")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return parseURL(raw)
	}
	return parseShorthand(raw)
}

func parseShorthand(raw string) (*Spec, error) {
	spec := &Spec{}
	if idx := strings.LastIndex(raw, "@"); idx >= 0 {
		spec.Version = raw[idx+1:]
		raw = raw[:idx]
		if spec.Version == "" {
			return nil, types.NewDetailError(types.KindValidation, op,
				"malformed_source_spec", "empty version after @")
		}
	}

	segments := strings.Split(raw, "/")
	if len(segments) < 2 {
		return nil, types.NewDetailError(types.KindValidation, op,
			"malformed_source_spec", "%q: want owner/repo[/path]", raw)
	}
	for _, seg := range segments {
		if seg == "" || seg == ".." {
			return nil, types.NewDetailError(types.KindValidation, op,
				"malformed_source_spec", "%q: empty or traversing path segment", raw)
		}
	}
	spec.Owner = segments[0]
	spec.Repo = segments[1]
	spec.Path = strings.Join(segments[2:], "/")
	return spec, nil
}

// parseURL handles github.com tree and blob URLs. The idiom mirrors the
// marker-segment walks used for issue URLs elsewhere: split the path and
// key off the "tree"/"blob" segment.
func parseURL(raw string) (*Spec, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, types.NewDetailError(types.KindValidation, op,
			"malformed_source_spec", "%q: %v", raw, err)
	}
	host := strings.TrimPrefix(parsed.Host, "www.")
	if host != "github.com" {
		return nil, types.NewDetailError(types.KindValidation, op,
			"malformed_source_spec", "%q: only github.com URLs are supported", raw)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return nil, types.NewDetailError(types.KindValidation, op,
			"malformed_source_spec", "%q: want github.com/owner/repo", raw)
	}
	spec := &Spec{
		Owner: segments[0],
		Repo:  strings.TrimSuffix(segments[1], ".git"),
	}
	if len(segments) == 2 {
		return spec, nil
	}

	switch segments[2] {
	case "tree", "blob":
		if len(segments) < 4 {
			return nil, types.NewDetailError(types.KindValidation, op,
				"malformed_source_spec", "%q: missing branch after /%s/", raw, segments[2])
		}
		spec.Ref = segments[3]
		spec.Path = strings.Join(segments[4:], "/")
		return spec, nil
	default:
		return nil, types.NewDetailError(types.KindValidation, op,
			"malformed_source_spec", "%q: unsupported URL form", raw)
	}
}
