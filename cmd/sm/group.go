package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillmeat/skillmeat/internal/types"
	"github.com/skillmeat/skillmeat/internal/ui"
)

var groupCmd = &cobra.Command{
	Use:     "group",
	GroupID: "artifacts",
	Short:   "Organize artifacts into ordered groups",
	Long: `Organize collection artifacts into named, ordered groups. Group
changes write through to the [[groups]] section of collection.toml.

Examples:
  sm group create backend --description "API service artifacts"
  sm group add backend skill:code-review
  sm group rm backend skill:code-review
  sm group list
  sm group delete backend`,
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		color, _ := cmd.Flags().GetString("color")
		icon, _ := cmd.Flags().GetString("icon")

		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		position, err := store.CountGroups(rootCtx, mainCollectionID)
		if err != nil {
			FatalErrorRespectJSON("counting groups: %v", err)
		}
		g, err := store.CreateGroup(rootCtx, &types.Group{
			CollectionID: mainCollectionID,
			Name:         args[0],
			Description:  description,
			Color:        color,
			Icon:         icon,
			Position:     position,
		})
		if err != nil {
			FatalErrorRespectJSON("creating group %q: %v", args[0], err)
		}
		warnOnSyncFailure()

		if jsonOutput {
			outputJSON(g)
			return
		}
		fmt.Printf("%s Created group %s\n", ui.RenderPass("✓"), g.Name)
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group> <artifact-key>",
	Short: "Add an artifact to a group",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		g := mustFindGroup(args[0])
		a := mustFindArtifact(args[1])
		members, err := store.GetGroupMembers(rootCtx, g.ID)
		if err != nil {
			FatalErrorRespectJSON("reading group %q: %v", g.Name, err)
		}
		if err := store.AddGroupMember(rootCtx, g.ID, a.UUID, len(members)); err != nil {
			FatalErrorRespectJSON("adding %s to %s: %v", args[1], g.Name, err)
		}
		warnOnSyncFailure()

		if jsonOutput {
			outputJSON(map[string]interface{}{"group": g.Name, "added": args[1], "position": len(members)})
			return
		}
		fmt.Printf("%s Added %s to %s\n", ui.RenderPass("✓"), args[1], g.Name)
	},
}

var groupRmCmd = &cobra.Command{
	Use:   "rm <group> <artifact-key>",
	Short: "Remove an artifact from a group",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		g := mustFindGroup(args[0])
		a := mustFindArtifact(args[1])
		if err := store.RemoveGroupMember(rootCtx, g.ID, a.UUID); err != nil {
			FatalErrorRespectJSON("removing %s from %s: %v", args[1], g.Name, err)
		}
		warnOnSyncFailure()

		if jsonOutput {
			outputJSON(map[string]string{"group": g.Name, "removed": args[1]})
			return
		}
		fmt.Printf("%s Removed %s from %s\n", ui.RenderPass("✓"), args[1], g.Name)
	},
}

var groupDeleteCmd = &cobra.Command{
	Use:   "delete <group>",
	Short: "Delete a group (artifacts stay in the collection)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		g := mustFindGroup(args[0])
		if err := store.DeleteGroup(rootCtx, g.ID); err != nil {
			FatalErrorRespectJSON("deleting group %q: %v", g.Name, err)
		}
		warnOnSyncFailure()

		if jsonOutput {
			outputJSON(map[string]string{"deleted": g.Name})
			return
		}
		fmt.Printf("%s Deleted group %s\n", ui.RenderPass("✓"), g.Name)
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups with their members",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := openWorkspace(); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		groups, err := store.ListGroups(rootCtx, mainCollectionID)
		if err != nil {
			FatalErrorRespectJSON("listing groups: %v", err)
		}

		type groupView struct {
			*types.Group
			Members []string `json:"members"`
		}
		views := make([]groupView, len(groups))
		for i, g := range groups {
			views[i] = groupView{Group: g, Members: groupMemberKeys(g.ID)}
		}

		if jsonOutput {
			outputJSON(views)
			return
		}
		if len(views) == 0 {
			fmt.Println(ui.RenderMuted("No groups defined."))
			return
		}
		for _, v := range views {
			fmt.Println(ui.RenderAccent(v.Name) + ui.RenderMuted(fmt.Sprintf("  %d member(s)", len(v.Members))))
			if v.Description != "" {
				fmt.Println(ui.RenderMuted("  " + v.Description))
			}
			for _, key := range v.Members {
				fmt.Println("  - " + key)
			}
		}
	},
}

// mustFindGroup resolves a group by name within the main collection.
func mustFindGroup(name string) *types.Group {
	groups, err := store.ListGroups(rootCtx, mainCollectionID)
	if err != nil {
		FatalErrorRespectJSON("listing groups: %v", err)
	}
	for _, g := range groups {
		if g.Name == name {
			return g
		}
	}
	FatalErrorRespectJSON("no group %q (see 'sm group list')", name)
	return nil
}

// groupMemberKeys resolves a group's members to artifact keys in order.
func groupMemberKeys(groupID int64) []string {
	members, err := store.GetGroupMembers(rootCtx, groupID)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(members))
	for _, m := range members {
		a, err := store.GetArtifact(rootCtx, m.ArtifactUUID)
		if err != nil {
			continue
		}
		keys = append(keys, types.MakeKey(a.Type, a.Name))
	}
	return keys
}

// warnOnSyncFailure pushes the group/tag snapshot out to collection.toml
// and reports write-through failures without failing the command.
func warnOnSyncFailure() {
	if err := syncer.SyncManifest(rootCtx, col, mainCollectionID); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func init() {
	groupCreateCmd.Flags().String("description", "", "Group description")
	groupCreateCmd.Flags().String("color", "", "Display color (hex)")
	groupCreateCmd.Flags().String("icon", "", "Display icon name")
	groupCmd.AddCommand(groupCreateCmd, groupAddCmd, groupRmCmd, groupDeleteCmd, groupListCmd)
	rootCmd.AddCommand(groupCmd)
}
