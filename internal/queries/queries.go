// Package queries implements the read side of the sm CLI: list row
// assembly, collection status summaries, outdated version computation,
// natural-language date cutoffs, and did-you-mean suggestions. Commands
// call in here so the presentation layer never touches SQL.
package queries

import (
	"context"
	"time"

	"github.com/skillmeat/skillmeat/internal/storage"
	"github.com/skillmeat/skillmeat/internal/types"
)

// ListOptions narrows a collection listing.
type ListOptions struct {
	CollectionID  string
	Type          types.ArtifactType
	Tag           string
	Search        string
	DeployedSince time.Time
}

// ListEntry is one row of sm list: the registry artifact joined with its
// tags and collection pin.
type ListEntry struct {
	Artifact *types.Artifact           `json:"artifact"`
	Tags     []string                  `json:"tags,omitempty"`
	Pin      *types.CollectionArtifact `json:"pin,omitempty"`
}

func (e *ListEntry) Key() string {
	return e.Artifact.Key()
}

// List assembles the rows for sm list. Search routes through the
// full-text index; everything else is a filtered registry listing. The
// outdated flag is recomputed from the version pair on the way out so
// stale stamps never reach the display.
func List(ctx context.Context, st storage.Storage, opts ListOptions) ([]*ListEntry, error) {
	filter := types.ArtifactFilter{
		Type:         opts.Type,
		CollectionID: opts.CollectionID,
	}
	if opts.Tag != "" {
		filter.Tags = []string{opts.Tag}
	}

	var (
		artifacts []*types.Artifact
		err       error
	)
	if opts.Search != "" {
		artifacts, err = st.SearchArtifacts(ctx, opts.Search, filter)
	} else {
		artifacts, err = st.ListArtifacts(ctx, filter)
	}
	if err != nil {
		return nil, err
	}

	entries := make([]*ListEntry, 0, len(artifacts))
	for _, a := range artifacts {
		if !opts.DeployedSince.IsZero() {
			if a.DeployedVersion == "" || a.UpdatedAt.Before(opts.DeployedSince) {
				continue
			}
		}
		MarkOutdated(a)

		entry := &ListEntry{Artifact: a}
		tags, err := st.GetArtifactTags(ctx, a.UUID)
		if err != nil {
			return nil, err
		}
		for _, tag := range tags {
			entry.Tags = append(entry.Tags, tag.Name)
		}
		if opts.CollectionID != "" {
			pin, err := st.GetCollectionArtifact(ctx, opts.CollectionID, a.UUID)
			if err == nil {
				entry.Pin = pin
			} else if !types.IsKind(err, types.KindNotFound) {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Summary is the aggregate view behind sm status and the list footer.
type Summary struct {
	Artifacts     int                        `json:"artifacts"`
	ByType        map[types.ArtifactType]int `json:"by_type"`
	Deployed      int                        `json:"deployed"`
	Outdated      int                        `json:"outdated"`
	LocalModified int                        `json:"local_modified"`
	Tags          int                        `json:"tags"`
	Groups        int                        `json:"groups"`
	Sets          int                        `json:"sets"`
}

// Status aggregates one collection's registry state.
func Status(ctx context.Context, st storage.Storage, collectionID string) (*Summary, error) {
	artifacts, err := st.ListArtifacts(ctx, types.ArtifactFilter{CollectionID: collectionID})
	if err != nil {
		return nil, err
	}

	s := &Summary{ByType: make(map[types.ArtifactType]int)}
	for _, a := range artifacts {
		s.Artifacts++
		s.ByType[a.Type]++
		if a.DeployedVersion != "" {
			s.Deployed++
		}
		MarkOutdated(a)
		if a.Outdated {
			s.Outdated++
		}
		if a.LocalModified {
			s.LocalModified++
		}
	}

	tags, err := st.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	s.Tags = len(tags)

	groups, err := st.CountGroups(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	s.Groups = groups

	sets, err := st.ListSets(ctx)
	if err != nil {
		return nil, err
	}
	s.Sets = len(sets)

	return s, nil
}
