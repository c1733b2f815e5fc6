// Package validation checks artifacts before they enter the collection.
// Validators are small composable checks; Chain stops at the first
// failure so callers get one actionable error at a time.
package validation

import (
	"strings"

	"github.com/skillmeat/skillmeat/internal/types"
)

// Validator checks one discovered artifact.
type Validator func(*types.DiscoveredArtifact) error

// Chain composes validators into one, executed in order. The first
// error stops the chain.
func Chain(validators ...Validator) Validator {
	return func(d *types.DiscoveredArtifact) error {
		for _, v := range validators {
			if err := v(d); err != nil {
				return err
			}
		}
		return nil
	}
}

// Exists validates that the artifact is not nil.
func Exists() Validator {
	return func(d *types.DiscoveredArtifact) error {
		if d == nil {
			return types.NewDetailError(types.KindValidation, "validation.Exists",
				"nil_artifact", "no artifact to import")
		}
		return nil
	}
}

// HasValidType validates the artifact type against the known set.
func HasValidType() Validator {
	return func(d *types.DiscoveredArtifact) error {
		if !d.Type.IsValid() {
			return types.NewDetailError(types.KindValidation, "validation.HasValidType",
				"bad_type", "unknown artifact type %q", d.Type)
		}
		return nil
	}
}

// HasName validates that the artifact carries a name.
func HasName() Validator {
	return func(d *types.DiscoveredArtifact) error {
		if strings.TrimSpace(d.Name) == "" {
			return types.NewDetailError(types.KindValidation, "validation.HasName",
				"missing_name", "artifact at %s has no name", d.Path)
		}
		return nil
	}
}

// NameWellFormed rejects names that would misbehave as keys or paths:
// path separators, parent references, leading dots, control characters.
// Slash-separated nested names ("git/commit") are allowed; each segment
// is checked on its own.
func NameWellFormed() Validator {
	const op = "validation.NameWellFormed"
	return func(d *types.DiscoveredArtifact) error {
		name := d.Name
		if strings.ContainsAny(name, "\\\n\r\t\x00") {
			return types.NewDetailError(types.KindValidation, op,
				"bad_name", "artifact name %q contains forbidden characters", name)
		}
		for _, seg := range strings.Split(name, "/") {
			if seg == "" || seg == "." || seg == ".." {
				return types.NewDetailError(types.KindValidation, op,
					"bad_name", "artifact name %q has an empty or dot segment", name)
			}
			if strings.HasPrefix(seg, ".") {
				return types.NewDetailError(types.KindValidation, op,
					"bad_name", "artifact name %q has a hidden segment", name)
			}
		}
		return nil
	}
}

// MinConfidence rejects hits below a detection confidence floor.
func MinConfidence(min int) Validator {
	return func(d *types.DiscoveredArtifact) error {
		if d.Confidence < min {
			return types.NewDetailError(types.KindValidation, "validation.MinConfidence",
				"low_confidence", "%s detected at confidence %d, below the %d floor",
				d.Key(), d.Confidence, min)
		}
		return nil
	}
}

// ForImport returns the chain the importer runs before touching storage.
func ForImport() Validator {
	return Chain(Exists(), HasValidType(), HasName(), NameWellFormed())
}
