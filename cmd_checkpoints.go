package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tcode/checkpoint"
	"tcode/ui"
)

func newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"cp"},
		Short:   "List, revert or prune file checkpoints",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent checkpoints, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				cps, err := a.checkpoints.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printCheckpoints(a, cps)
				return nil
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of checkpoints (0 for all)")

	cmd.AddCommand(list)
	cmd.AddCommand(&cobra.Command{
		Use:   "revert <id>",
		Short: "Restore a file to its checkpointed state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				cp, err := a.checkpoints.Revert(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if cp.Existed {
					fmt.Fprintf(a.out, "%s restored %s\n", ui.SuccessStyle.Render("✓"), cp.FilePath)
				} else {
					fmt.Fprintf(a.out, "%s removed %s (it did not exist at the checkpoint)\n", ui.SuccessStyle.Render("✓"), cp.FilePath)
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: fmt.Sprintf("Delete checkpoints older than %s", checkpoint.Retention),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				n, err := a.checkpoints.Prune(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Pruned %d checkpoint(s).\n", n)
				return nil
			})
		},
	})
	return cmd
}

func printCheckpoints(a *app, cps []checkpoint.Checkpoint) {
	if len(cps) == 0 {
		fmt.Fprintln(a.out, "No checkpoints.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSTATE\tCREATED")
	for _, cp := range cps {
		state := "existed"
		if !cp.Existed {
			state = "absent"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cp.ID, cp.FilePath, state, cp.Age)
	}
	tw.Flush()
}

// withApp runs fn with an app that has storage but no backends.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := openApp(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
