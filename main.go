package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	License = "Apache-2.0"
)

type rootOptions struct {
	dir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tcode",
		Short: "tcode - a terminal coding assistant",
		Long: "tcode answers coding requests with a ranked set of model backends, " +
			"reading and changing files in your project behind a permission gate.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts, chatOptions{})
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.dir, "dir", "C", "", "project directory (default: current directory)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newModeCmd())
	cmd.AddCommand(newCheckpointsCmd())
	cmd.AddCommand(newProvidersCmd())
	cmd.AddCommand(newHistoryCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tcode %s (%s)\n", Version, License)
		},
	}
}

func execute(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newRootCmd())
	stop()
	os.Exit(code)
}
