package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tcode/config"
	"tcode/orchestrator"
	"tcode/provider"
	"tcode/ui"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show backend status and run one health check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				if err := a.startOrchestrator(ctx); err != nil {
					return err
				}
				a.orch.CheckHealth(ctx)

				printProviderStatus(a.out, a.orch.Providers())

				loaded := make(map[string]bool)
				for _, s := range a.orch.Providers() {
					loaded[s.Name] = true
				}
				for _, id := range a.cfg.RankedProviders() {
					if !loaded[id] {
						fmt.Fprintf(a.out, "%s %s unavailable (see debug log)\n", ui.ErrorStyle.Render("✗"), id)
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(newProvidersSetKeyCmd())
	cmd.AddCommand(newProvidersEnableCmd(true))
	cmd.AddCommand(newProvidersEnableCmd(false))
	cmd.AddCommand(newProvidersOrderCmd())
	cmd.AddCommand(newProvidersLogCmd())
	return cmd
}

func printProviderStatus(w io.Writer, statuses []orchestrator.Status) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPROVIDER\tMODEL\tHEALTH\tCHECKED")
	for _, s := range statuses {
		name := s.Name
		if s.Current {
			name = "*" + name
		}
		health := "healthy"
		if !s.Healthy {
			health = "unhealthy"
		}
		checked := "never"
		if !s.LastHealthCheck.IsZero() {
			checked = humanize.Time(s.LastHealthCheck)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Rank+1, name, s.Model, health, checked)
	}
	tw.Flush()
}

func newProvidersSetKeyCmd() *cobra.Command {
	var skipValidation bool

	cmd := &cobra.Command{
		Use:   "set-key <provider> <api-key>",
		Short: "Validate and store an API key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, key := args[0], strings.TrimSpace(args[1])
			if !config.IsKnownProvider(id) {
				return fmt.Errorf("unknown provider: %s", id)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if !skipValidation {
				pc, _ := cfg.Provider(id)
				if err := provider.Validate(cmd.Context(), id, pc.BaseURL, key); err != nil {
					return fmt.Errorf("key not saved: %w", err)
				}
			}

			if err := config.SetAPIKey(cfg.DataDir(), id, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s saved API key for %s\n", ui.SuccessStyle.Render("✓"), id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipValidation, "no-validate", false, "store the key without contacting the provider")
	return cmd
}

func newProvidersEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <provider>", "Enable a provider"
	if !enable {
		use, short = "disable <provider>", "Disable a provider"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.SetProviderEnabled(cfg.DataDir(), args[0], enable); err != nil {
				return err
			}
			state := "enabled"
			if !enable {
				state = "disabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], state)
			return nil
		},
	}
}

func newProvidersOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <provider>...",
		Short: "Set the failover order, most preferred first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			var order []string
			for _, arg := range args {
				for _, id := range strings.Split(arg, ",") {
					if id = strings.TrimSpace(id); id != "" {
						order = append(order, id)
					}
				}
			}
			if err := config.SetProviderOrder(cfg.DataDir(), order); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Provider order: %s\n", strings.Join(order, " → "))
			return nil
		},
	}
}

func newProvidersLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent backend calls and failovers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				ctx := cmd.Context()

				calls, err := a.db.RecentCalls(ctx, limit)
				if err != nil {
					return err
				}
				failovers, err := a.db.RecentFailovers(ctx, limit)
				if err != nil {
					return err
				}

				fmt.Fprintln(a.out, ui.TitleStyle.Render("Calls"))
				tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tPROVIDER\tRESULT\tLATENCY\tTOKENS")
				for _, c := range calls {
					result := "ok"
					if !c.Success {
						result = fmt.Sprintf("%d %s", c.StatusCode, c.ErrorMessage)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\t%d\n",
						humanize.Time(c.CreatedAt), c.Provider, result, c.LatencyMS, c.TokensUsed)
				}
				tw.Flush()

				fmt.Fprintln(a.out)
				fmt.Fprintln(a.out, ui.TitleStyle.Render("Failovers"))
				tw = tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tFROM\tTO\tRESULT\tREASON")
				for _, f := range failovers {
					result := "ok"
					if !f.Success {
						result = "failed"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						humanize.Time(f.CreatedAt), f.From, f.To, result, f.Reason)
				}
				tw.Flush()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "rows per table")
	return cmd
}
