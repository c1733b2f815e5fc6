// Package resolver flattens deployment-set graphs into ordered,
// deduplicated artifact lists.
package resolver

import (
	"context"
	"strconv"
	"strings"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/types"
)

// DefaultMaxDepth bounds set nesting during resolution. The mutation
// side already rejects cycles, so a path longer than this is a
// pathological hierarchy rather than a legal one.
const DefaultMaxDepth = 20

// ResolveSet flattens the set graph rooted at rootSetID into artifact
// UUIDs: members in position order, group members expanded in their own
// position order, nested sets recursed into depth-first with the
// traversal path extended by the child set id. The first occurrence of
// a UUID wins and later duplicates are dropped, so the output order is
// the order of first sighting. maxDepth <= 0 means DefaultMaxDepth.
//
// The full membership and group tables are prefetched into memory, so
// resolution runs two queries regardless of hierarchy size.
func ResolveSet(ctx context.Context, store storage.Storage, rootSetID int64, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if _, err := store.GetSet(ctx, rootSetID); err != nil {
		return nil, err
	}

	members, err := store.GetAllSetMembers(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := store.GetAllGroupMembers(ctx)
	if err != nil {
		return nil, err
	}

	r := &resolution{
		members:  members,
		groups:   groups,
		maxDepth: maxDepth,
		seen:     make(map[string]bool),
	}
	if err := r.walk(rootSetID, []int64{rootSetID}); err != nil {
		return nil, err
	}
	debug.Logf("resolved set %d: %d artifacts", rootSetID, len(r.out))
	return r.out, nil
}

type resolution struct {
	members  map[int64][]*types.DeploymentSetMember
	groups   map[int64][]string
	maxDepth int
	seen     map[string]bool
	out      []string
}

func (r *resolution) walk(setID int64, path []int64) error {
	if len(path) > r.maxDepth {
		return types.NewDetailError(types.KindDepthExceeded, "resolver.ResolveSet",
			"depth_exceeded", "set %d: nesting depth %d exceeds limit %d (path %s)",
			setID, len(path), r.maxDepth, formatPath(path))
	}
	for _, m := range r.members[setID] {
		switch m.Kind {
		case types.MemberArtifact:
			r.emit(m.ArtifactUUID)
		case types.MemberGroup:
			for _, uuid := range r.groups[m.GroupID] {
				r.emit(uuid)
			}
		case types.MemberSet:
			if err := r.walk(m.ChildSetID, append(path, m.ChildSetID)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolution) emit(uuid string) {
	if r.seen[uuid] {
		return
	}
	r.seen[uuid] = true
	r.out = append(r.out, uuid)
}

func formatPath(path []int64) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, " -> ")
}
