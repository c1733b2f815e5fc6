// Package lineage builds and queries version ancestry chains.
//
// A lineage is the ordered list of content hashes from a version's root to
// the version itself. Chains are stored denormalized on each version row,
// so ancestry queries are list operations, not graph walks.
package lineage

import (
	"context"

	"github.com/skillmeat/skillmeat/internal/storage"
)

// Build computes the lineage for a new version given its parent's lineage.
//
//   - no parent: the version is a root, lineage is just itself
//   - parent with a lineage: extend it
//   - parent without one (legacy row): synthesize the two-element chain
func Build(parentLineage []string, parentHash, currentHash string) []string {
	if parentHash == "" {
		return []string{currentHash}
	}
	if len(parentLineage) > 0 {
		out := make([]string, 0, len(parentLineage)+1)
		out = append(out, parentLineage...)
		return append(out, currentHash)
	}
	return []string{parentHash, currentHash}
}

// CommonAncestor returns the most recent hash present in both lineages,
// or empty when either lineage is empty or they share nothing.
func CommonAncestor(a, b []string) string {
	if len(a) == 0 || len(b) == 0 {
		return ""
	}
	inB := make(map[string]bool, len(b))
	for _, h := range b {
		inB[h] = true
	}
	for i := len(a) - 1; i >= 0; i-- {
		if inB[a[i]] {
			return a[i]
		}
	}
	return ""
}

// Slice returns the ordered hashes between from and to within one lineage,
// inclusive, reversed when to precedes from. Nil when either hash is
// absent.
func Slice(chain []string, from, to string) []string {
	iFrom, iTo := -1, -1
	for i, h := range chain {
		if h == from {
			iFrom = i
		}
		if h == to {
			iTo = i
		}
	}
	if iFrom < 0 || iTo < 0 {
		return nil
	}
	if iFrom <= iTo {
		out := make([]string, iTo-iFrom+1)
		copy(out, chain[iFrom:iTo+1])
		return out
	}
	out := make([]string, 0, iFrom-iTo+1)
	for i := iFrom; i >= iTo; i-- {
		out = append(out, chain[i])
	}
	return out
}

// BuildLineage computes the lineage a new version with the given parent
// would carry. A missing parent row downgrades to a root lineage rather
// than failing: registries imported from older layouts contain orphans.
func BuildLineage(ctx context.Context, st storage.Storage, parentHash, currentHash string) ([]string, error) {
	if parentHash == "" {
		return []string{currentHash}, nil
	}
	parent, err := st.GetVersionByHash(ctx, parentHash)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return []string{currentHash}, nil
	}
	return Build(parent.Lineage, parentHash, currentHash), nil
}

// CommonAncestorOf loads both versions and intersects their lineages.
// Unknown hashes and empty lineages yield empty, not an error.
func CommonAncestorOf(ctx context.Context, st storage.Storage, hashA, hashB string) (string, error) {
	va, err := st.GetVersionByHash(ctx, hashA)
	if err != nil {
		return "", err
	}
	vb, err := st.GetVersionByHash(ctx, hashB)
	if err != nil {
		return "", err
	}
	if va == nil || vb == nil {
		return "", nil
	}
	return CommonAncestor(va.Lineage, vb.Lineage), nil
}

// TracePath returns the ordered hashes from one version to another along
// whichever lineage contains both, or nil when the versions are unrelated.
func TracePath(ctx context.Context, st storage.Storage, from, to string) ([]string, error) {
	vFrom, err := st.GetVersionByHash(ctx, from)
	if err != nil {
		return nil, err
	}
	if vFrom != nil {
		if path := Slice(vFrom.Lineage, from, to); path != nil {
			return path, nil
		}
	}
	vTo, err := st.GetVersionByHash(ctx, to)
	if err != nil {
		return nil, err
	}
	if vTo != nil {
		if path := Slice(vTo.Lineage, from, to); path != nil {
			return path, nil
		}
	}
	return nil, nil
}
