package discovery

import (
	"github.com/skillmeat/skillmeat/internal/types"
)

// PreScanResult partitions discovered candidates by importability.
// A candidate present in both the collection and the project is no longer
// an import candidate; one present in neither, or in only one of the two,
// still is.
type PreScanResult struct {
	Importable     []types.DiscoveredArtifact `json:"importable"`
	AlreadyPresent []types.DiscoveredArtifact `json:"already_present"`
}

// PreScan classifies candidates against the collection's artifact keys
// and, when projectPath is non-empty, against a scan of the project tree.
// collectionKeys holds "<type>:<name>" keys from the manifest.
func PreScan(candidates []types.DiscoveredArtifact, collectionKeys map[string]bool, projectPath string) (*PreScanResult, error) {
	projectKeys := make(map[string]bool)
	if projectPath != "" {
		hits, err := Scan(projectPath, ModeProject)
		if err != nil {
			// A project without a .claude tree simply contributes no keys.
			if !types.IsKind(err, types.KindNotFound) {
				return nil, err
			}
		}
		for i := range hits {
			projectKeys[hits[i].Key()] = true
		}
	}

	result := &PreScanResult{}
	for _, c := range candidates {
		key := c.Key()
		if collectionKeys[key] && projectKeys[key] {
			result.AlreadyPresent = append(result.AlreadyPresent, c)
			continue
		}
		result.Importable = append(result.Importable, c)
	}
	return result, nil
}
