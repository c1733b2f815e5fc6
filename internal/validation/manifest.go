package validation

import (
	"fmt"
	"strings"

	"github.com/skillmeat/skillmeat/internal/discovery"
	"github.com/skillmeat/skillmeat/internal/types"
)

// MissingField describes one manifest field an artifact type expects.
type MissingField struct {
	Field string `json:"field"`
	Hint  string `json:"hint"`
}

// LintError collects every expected manifest field an artifact's
// frontmatter lacks, so one report covers the whole header.
type LintError struct {
	Key     string         `json:"key"`
	Missing []MissingField `json:"missing"`
}

func (e *LintError) Error() string {
	if len(e.Missing) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s manifest is missing:", e.Key)
	for _, m := range e.Missing {
		fmt.Fprintf(&b, "\n  - %s (%s)", m.Field, m.Hint)
	}
	return b.String()
}

// expectedFields maps artifact types to the frontmatter fields a
// well-formed manifest carries. Types absent here have no frontmatter
// conventions (hooks and MCP configs are plain JSON).
var expectedFields = map[types.ArtifactType][]MissingField{
	types.TypeSkill: {
		{Field: "name", Hint: "the skill's invocation name"},
		{Field: "description", Hint: "when the assistant should reach for this skill"},
	},
	types.TypeCommand: {
		{Field: "description", Hint: "one line shown in the command palette"},
	},
	types.TypeAgent: {
		{Field: "name", Hint: "the subagent's name"},
		{Field: "description", Hint: "what to delegate to this agent"},
	},
	types.TypeSpec: {
		{Field: "description", Hint: "one-line summary shown in listings"},
	},
	types.TypeRule: {
		{Field: "description", Hint: "one-line summary shown in listings"},
	},
	types.TypeTemplate: {
		{Field: "description", Hint: "one-line summary shown in listings"},
	},
}

// LintManifest checks an artifact's frontmatter against the type's
// expected fields. A nil return means the manifest is complete or the
// type has no conventions. A nil frontmatter counts every field missing.
func LintManifest(t types.ArtifactType, key string, fm *discovery.Frontmatter) *LintError {
	expected := expectedFields[t]
	if len(expected) == 0 {
		return nil
	}

	var missing []MissingField
	for _, f := range expected {
		if fm == nil || !fieldPresent(fm, f.Field) {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &LintError{Key: key, Missing: missing}
}

func fieldPresent(fm *discovery.Frontmatter, field string) bool {
	switch field {
	case "name":
		return fm.Name != ""
	case "description":
		return fm.Description != ""
	case "version":
		return fm.Version != ""
	case "source":
		return fm.Source != ""
	}
	return false
}
