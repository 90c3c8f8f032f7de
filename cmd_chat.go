package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tcode/engine"
	"tcode/permission"
	"tcode/ui"
)

type chatOptions struct {
	conversation string
	mode         string
}

func newChatCmd(root *rootOptions) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: "Starts a read-eval loop. Commands: /mode [default|auto-edit|plan-only] shows, sets or cycles " +
			"the permission mode, /provider [name] shows or switches the backend, /new starts a new " +
			"conversation and /quit exits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.conversation, "conversation", "", "continue the conversation with this id")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "initial permission mode")
	return cmd
}

func runChat(cmd *cobra.Command, root *rootOptions, opts chatOptions) error {
	ctx := cmd.Context()

	a, err := openApp(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.resolveMode(opts.mode); err != nil {
		return err
	}
	if err := a.startEngine(ctx, root.dir); err != nil {
		return err
	}
	if opts.conversation != "" {
		if err := a.resume(ctx, opts.conversation); err != nil {
			return err
		}
	}

	interval, err := a.cfg.HealthCheckInterval()
	if err != nil {
		return err
	}
	if err := a.orch.StartHealthChecks(interval); err != nil {
		return err
	}

	fmt.Fprintln(a.out, ui.TitleStyle.Render("tcode "+Version)+" "+
		ui.DimStyle.Render(fmt.Sprintf("%s · mode %s · /quit to exit", a.orch.Current(), a.mode.Mode())))

	for {
		line, err := a.prompter.ReadLine(ctx, "> ")
		if errors.Is(err, io.EOF) || isCancelled(err) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := a.slashCommand(line)
			if err != nil {
				fmt.Fprintln(a.out, ui.ErrorStyle.Render("Error: ")+err.Error())
			}
			if quit {
				return nil
			}
			continue
		}

		res, err := a.engine.ProcessRequest(ctx, line, engine.RequestOptions{Mode: a.mode.Mode()})
		if lockErr := a.lockActive(); lockErr != nil {
			a.logger.Warn("failed to lock conversation", zap.Error(lockErr))
		}
		if isCancelled(err) {
			return nil
		}
		if err != nil {
			printSummary(a, res)
			fmt.Fprintln(a.out, ui.ErrorStyle.Render("Error: ")+err.Error())
			continue
		}
		printAnswer(a, res, false, false)
		printSummary(a, res)
	}
}

// slashCommand handles a REPL command and reports whether to exit.
func (a *app) slashCommand(line string) (bool, error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/mode":
		var m permission.Mode
		if len(args) == 0 {
			m = a.mode.Cycle()
		} else {
			parsed, err := permission.ParseMode(args[0])
			if err != nil {
				return false, err
			}
			a.mode.Set(parsed)
			m = parsed
		}
		fmt.Fprintf(a.out, "Permission mode: %s (%s)\n", ui.HighlightStyle.Render(string(m)), m.Description())

	case "/provider":
		if len(args) == 0 {
			printProviderStatus(a.out, a.orch.Providers())
			return false, nil
		}
		if err := a.orch.SwitchProvider(args[0]); err != nil {
			return false, err
		}
		fmt.Fprintf(a.out, "Switched to %s (%s)\n", ui.HighlightStyle.Render(a.orch.Current()), a.orch.CurrentModel())

	case "/new":
		if err := a.lock.Unlock(); err != nil {
			return false, err
		}
		a.lock = nil
		a.engine.ResetConversation()
		fmt.Fprintln(a.out, "Started a new conversation.")

	case "/help":
		fmt.Fprintln(a.out, ui.FormatFooter(
			"/mode", "cycle or set mode",
			"/provider", "show or switch backend",
			"/new", "new conversation",
			"/quit", "exit",
		))

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}
