package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/config"
	"github.com/skillmeat/skillmeat/internal/resolver"
	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var setCmd = &cobra.Command{
	Use:     "set",
	GroupID: "deploy",
	Short:   "Compose deployment sets",
	Long: `Compose named deployment sets out of artifacts, groups, and other
sets. Sets may nest; resolution walks the tree depth-first, skips
duplicates, and rejects cycles.

Members are referenced as:
  <type>:<name>   an artifact (skill:code-review)
  group:<name>    every artifact in a group
  set:<name>      another set, resolved recursively

Examples:
  sm set create backend --description "API service baseline"
  sm set add backend skill:code-review
  sm set add backend group:quality
  sm set add full-stack set:backend
  sm set show full-stack
  sm set resolve full-stack`,
}

var setCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a deployment set",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		owner, _ := cmd.Flags().GetString("owner")

		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		s, err := store.CreateSet(rootCtx, &types.DeploymentSet{
			Name:        args[0],
			Description: description,
			Owner:       owner,
		})
		if err != nil {
			FatalErrorRespectJSON("creating set %q: %v", args[0], err)
		}

		if jsonOutput {
			outputJSON(s)
			return
		}
		fmt.Printf("%s Created set %s\n", ui.RenderPass("✓"), s.Name)
	},
}

var setAddCmd = &cobra.Command{
	Use:   "add <set> <member>",
	Short: "Add an artifact, group, or nested set to a set",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		s := mustFindSet(args[0])
		members, err := store.GetSetMembers(rootCtx, s.ID)
		if err != nil {
			FatalErrorRespectJSON("reading set %q: %v", s.Name, err)
		}
		member := parseSetMember(args[1])
		member.SetID = s.ID
		member.Position = len(members)

		if err := store.AddSetMember(rootCtx, member); err != nil {
			FatalErrorRespectJSON("adding %s to %s: %v", args[1], s.Name, err)
		}

		if jsonOutput {
			outputJSON(member)
			return
		}
		fmt.Printf("%s Added %s to %s\n", ui.RenderPass("✓"), args[1], s.Name)
	},
}

var setRmCmd = &cobra.Command{
	Use:   "rm <set> <position>",
	Short: "Remove the member at a position (see 'sm set show')",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		s := mustFindSet(args[0])
		var position int
		if _, err := fmt.Sscanf(args[1], "%d", &position); err != nil {
			FatalErrorRespectJSON("position must be a number, got %q", args[1])
		}
		if err := store.RemoveSetMember(rootCtx, s.ID, position); err != nil {
			FatalErrorRespectJSON("removing member %d from %s: %v", position, s.Name, err)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"set": s.Name, "removed_position": position})
			return
		}
		fmt.Printf("%s Removed member %d from %s\n", ui.RenderPass("✓"), position, s.Name)
	},
}

var setShowCmd = &cobra.Command{
	Use:   "show <set>",
	Short: "Show a set's member tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		s := mustFindSet(args[0])
		root := setNodeFor(s, map[int64]bool{})

		if jsonOutput {
			outputJSON(root)
			return
		}
		fmt.Println(ui.RenderSetTree(root))
	},
}

var setResolveCmd = &cobra.Command{
	Use:   "resolve <set>",
	Short: "Print the flattened deployment order",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		s := mustFindSet(args[0])
		uuids, err := resolver.ResolveSet(rootCtx, store, s.ID, config.GetInt("resolve.max-depth"))
		if err != nil {
			FatalErrorRespectJSON("resolving %s: %v", s.Name, err)
		}

		keys := make([]string, 0, len(uuids))
		for _, uuid := range uuids {
			a, err := store.GetArtifact(rootCtx, uuid)
			if err != nil {
				continue
			}
			keys = append(keys, types.MakeKey(a.Type, a.Name))
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"set": s.Name, "artifacts": keys})
			return
		}
		for i, key := range keys {
			fmt.Printf("%2d. %s\n", i+1, key)
		}
	},
}

var setListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployment sets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		sets, err := store.ListSets(rootCtx)
		if err != nil {
			FatalErrorRespectJSON("listing sets: %v", err)
		}

		if jsonOutput {
			outputJSON(sets)
			return
		}
		views := make([]struct {
			Name string
			Root *ui.SetNode
		}, len(sets))
		for i, s := range sets {
			views[i].Name = s.Name
			views[i].Root = setNodeFor(s, map[int64]bool{})
		}
		fmt.Println(ui.RenderSetsTable(views, ui.GetWidth()))
	},
}

// mustFindSet resolves a set by name.
func mustFindSet(name string) *types.DeploymentSet {
	s, err := store.GetSetByName(rootCtx, name)
	if err != nil {
		FatalErrorRespectJSON("no deployment set %q (see 'sm set list')", name)
	}
	return s
}

// parseSetMember maps a member reference onto the typed join row.
func parseSetMember(ref string) *types.DeploymentSetMember {
	if name, ok := strings.CutPrefix(ref, "group:"); ok {
		g := mustFindGroup(name)
		return &types.DeploymentSetMember{Kind: types.MemberGroup, GroupID: g.ID}
	}
	if name, ok := strings.CutPrefix(ref, "set:"); ok {
		child := mustFindSet(name)
		return &types.DeploymentSetMember{Kind: types.MemberSet, ChildSetID: child.ID}
	}
	a := mustFindArtifact(ref)
	return &types.DeploymentSetMember{Kind: types.MemberArtifact, ArtifactUUID: a.UUID}
}

// setNodeFor builds the display tree for a set, guarding against cycles
// that predate the storage-level check.
func setNodeFor(s *types.DeploymentSet, seen map[int64]bool) *ui.SetNode {
	node := &ui.SetNode{Label: s.Name}
	if seen[s.ID] {
		node.Label += " (cycle)"
		return node
	}
	seen[s.ID] = true
	defer delete(seen, s.ID)

	members, err := store.GetSetMembers(rootCtx, s.ID)
	if err != nil {
		return node
	}
	for _, m := range members {
		switch m.Kind {
		case types.MemberArtifact:
			if a, err := store.GetArtifact(rootCtx, m.ArtifactUUID); err == nil {
				node.Children = append(node.Children, &ui.SetNode{Label: types.MakeKey(a.Type, a.Name)})
			}
		case types.MemberGroup:
			if g, err := store.GetGroup(rootCtx, m.GroupID); err == nil {
				child := &ui.SetNode{Label: "group:" + g.Name}
				for _, key := range groupMemberKeys(g.ID) {
					child.Children = append(child.Children, &ui.SetNode{Label: key})
				}
				node.Children = append(node.Children, child)
			}
		case types.MemberSet:
			if child, err := store.GetSet(rootCtx, m.ChildSetID); err == nil {
				node.Children = append(node.Children, setNodeFor(child, seen))
			}
		}
	}
	return node
}

func init() {
	setCreateCmd.Flags().String("description", "", "Set description")
	setCreateCmd.Flags().String("owner", "", "Owning team or person")
	setCmd.AddCommand(setCreateCmd, setAddCmd, setRmCmd, setShowCmd, setResolveCmd, setListCmd)
	rootCmd.AddCommand(setCmd)
}
