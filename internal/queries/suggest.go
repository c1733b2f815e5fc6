package queries

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// suggestMaxDistance caps how far a candidate may drift from the query
// before it stops being a plausible typo.
const suggestMaxDistance = 3

// Suggest ranks candidates by closeness to a query that matched nothing,
// for did-you-mean output. Substring and subsequence hits come first,
// then near misses by edit distance; at most max names are returned.
func Suggest(query string, candidates []string, max int) []string {
	if query == "" || len(candidates) == 0 || max <= 0 {
		return nil
	}

	type scored struct {
		name string
		dist int
	}
	var ranked []scored
	lowered := strings.ToLower(query)

	for _, candidate := range candidates {
		switch {
		case strings.Contains(strings.ToLower(candidate), lowered):
			ranked = append(ranked, scored{candidate, 0})
		case fuzzy.MatchFold(query, candidate):
			ranked = append(ranked, scored{candidate, 1})
		default:
			if d := fuzzy.LevenshteinDistance(lowered, strings.ToLower(candidate)); d <= suggestMaxDistance {
				ranked = append(ranked, scored{candidate, d + 1})
			}
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].dist != ranked[j].dist {
			return ranked[i].dist < ranked[j].dist
		}
		return ranked[i].name < ranked[j].name
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}
	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.name
	}
	return names
}
