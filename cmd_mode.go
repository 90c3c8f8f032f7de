package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tcode/config"
	"tcode/permission"
	"tcode/ui"
)

func newModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Show or change the permission mode",
		Long:  modeHelp(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModeShow(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current permission mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModeShow(cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "set <mode>",
		Short:     "Set the permission mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: permission.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := permission.ParseMode(args[0])
			if err != nil {
				return err
			}
			return saveMode(cmd, m)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cycle",
		Short: "Advance to the next permission mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			current, err := permission.ParseMode(cfg.PermissionMode)
			if err != nil {
				current = permission.Default
			}
			return saveMode(cmd, current.Next())
		},
	})
	return cmd
}

func runModeShow(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	m, err := permission.ParseMode(cfg.PermissionMode)
	if err != nil {
		return fmt.Errorf("invalid permission_mode in config (repair with \"tcode mode set\"): %w", err)
	}
	printMode(cmd, m)
	return nil
}

func saveMode(cmd *cobra.Command, m permission.Mode) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.SavePermissionMode(cfg.DataDir(), string(m)); err != nil {
		return err
	}
	printMode(cmd, m)
	return nil
}

func printMode(cmd *cobra.Command, m permission.Mode) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s - %s\n", ui.HighlightStyle.Render(string(m)), m.Description())
}

func modeHelp() string {
	var sb strings.Builder
	sb.WriteString("The permission mode decides how file changes are handled:\n")
	for _, m := range permission.Modes() {
		fmt.Fprintf(&sb, "\n  %-10s %s", m, m.Description())
	}
	return sb.String()
}
