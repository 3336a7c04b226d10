package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mod-gobot/internal/storage"
)

// GroupStore is the storage the groups commands work on
type GroupStore interface {
	ListGroups() ([]storage.Group, error)
	GetGroup(groupID int64) (*storage.Group, error)
	DeleteGroup(groupID int64) error
}

func newGroupsCommand(store GroupStore) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Inspect the groups the bot knows",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracked groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listGroups(cmd.OutOrStdout(), store)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <group id>",
		Short: "Forget a group, its settings and its warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%q is not a group id", args[0])
			}
			return forgetGroup(cmd.OutOrStdout(), store, id)
		},
	})

	return cmd
}

func listGroups(out io.Writer, store GroupStore) error {
	groups, err := store.ListGroups()
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}
	if len(groups) == 0 {
		fmt.Fprintln(out, "No groups tracked yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRULES\tWELCOME\tCONTROL\tRELATED")
	for _, g := range groups {
		control := "-"
		if g.ControlChannelID != 0 {
			control = strconv.FormatInt(g.ControlChannelID, 10)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
			g.ID, g.Title, yesNo(g.Rules != ""), yesNo(g.WelcomeEnabled), control, len(g.RelatedChats))
	}
	return w.Flush()
}

func forgetGroup(out io.Writer, store GroupStore, id int64) error {
	g, err := store.GetGroup(id)
	if errors.Is(err, storage.ErrGroupNotFound) {
		return fmt.Errorf("group %d is not tracked", id)
	}
	if err != nil {
		return err
	}
	if err := store.DeleteGroup(id); err != nil {
		return fmt.Errorf("failed to forget group %d: %w", id, err)
	}
	fmt.Fprintf(out, "Forgot %s (%d)\n", g.Title, id)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
