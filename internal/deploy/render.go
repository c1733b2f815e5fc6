package deploy

import (
	"regexp"
	"time"

	"github.com/skillmeat/skillmeat/internal/types"
)

// variablePattern matches {{VARIABLE}} placeholders.
var variablePattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// allowedVars is the closed substitution whitelist. Rendering is plain
// text replacement; nothing here is ever evaluated.
var allowedVars = map[string]bool{
	"PROJECT_NAME":             true,
	"PROJECT_DESCRIPTION":      true,
	"AUTHOR":                   true,
	"DATE":                     true,
	"ARCHITECTURE_DESCRIPTION": true,
}

// prepareVars validates caller-supplied variables against the whitelist
// and fills defaults. PROJECT_NAME must be supplied; DATE defaults to
// today in ISO form.
func prepareVars(vars map[string]string) (map[string]string, error) {
	const op = "deploy.Vars"
	out := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		if !allowedVars[k] {
			return nil, types.NewDetailError(types.KindValidation, op,
				"disallowed_variable", "variable %q is not in the substitution whitelist", k)
		}
		out[k] = v
	}
	if out["PROJECT_NAME"] == "" {
		return nil, types.NewDetailError(types.KindValidation, op,
			"missing_variable", "PROJECT_NAME is required")
	}
	if _, ok := out["DATE"]; !ok {
		out["DATE"] = time.Now().Format("2006-01-02")
	}
	return out, nil
}

// renderVars replaces whitelisted {{NAME}} placeholders that have a
// value. Everything else, including whitelisted names without a value,
// passes through verbatim.
func renderVars(content []byte, vars map[string]string) []byte {
	if !variablePattern.Match(content) {
		return content
	}
	return variablePattern.ReplaceAllFunc(content, func(match []byte) []byte {
		name := string(match[2 : len(match)-2])
		if !allowedVars[name] {
			return match
		}
		if val, ok := vars[name]; ok {
			return []byte(val)
		}
		return match
	})
}
