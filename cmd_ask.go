package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tcode/engine"
	"tcode/model"
	"tcode/ui"
)

type askOptions struct {
	conversation string
	mode         string
	copy         bool
	raw          bool
}

func newAskCmd(root *rootOptions) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one request and print the answer",
		Long: "Sends a single request, runs any tool calls the model makes and prints the final answer. " +
			"Use --conversation to continue an earlier conversation.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, root, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.conversation, "conversation", "", "continue the conversation with this id")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "permission mode: default, auto-edit or plan-only")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "copy the answer to the clipboard")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "stream plain text instead of rendering markdown")
	return cmd
}

func runAsk(cmd *cobra.Command, root *rootOptions, opts askOptions, message string) error {
	ctx := cmd.Context()

	a, err := openApp(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	mode, err := a.resolveMode(opts.mode)
	if err != nil {
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

	ro := engine.RequestOptions{Mode: mode}
	var stream *chunkWriter
	if opts.raw {
		stream = &chunkWriter{w: a.out}
		ro.OnChunk = stream.write
	}

	res, err := a.engine.ProcessRequest(ctx, message, ro)
	if err != nil {
		printSummary(a, res)
		return err
	}

	printAnswer(a, res, stream != nil && stream.wrote, opts.raw)
	printSummary(a, res)

	if opts.copy {
		if err := clipboard.WriteAll(res.Content); err != nil {
			return fmt.Errorf("failed to copy answer: %w", err)
		}
		fmt.Fprintln(a.out, ui.DimStyle.Render("Copied to clipboard."))
	}
	return nil
}

// chunkWriter writes streamed text as it arrives.
type chunkWriter struct {
	w     io.Writer
	wrote bool
}

func (c *chunkWriter) write(chunk string, _ []model.ToolCall) error {
	if chunk == "" {
		return nil
	}
	c.wrote = true
	_, err := io.WriteString(c.w, chunk)
	return err
}

// printAnswer prints the final answer unless it was already streamed.
// Raw answers from backends that do not stream are printed as they are.
func printAnswer(a *app, res *engine.Result, streamed, raw bool) {
	if streamed {
		if !strings.HasSuffix(res.Content, "\n") {
			fmt.Fprintln(a.out)
		}
		return
	}
	if raw {
		fmt.Fprintln(a.out, res.Content)
		return
	}
	fmt.Fprintln(a.out, ui.RenderMarkdown(res.Content, a.width))
}

func printSummary(a *app, res *engine.Result) {
	if res == nil {
		return
	}

	for _, w := range res.Writes {
		if w.Success {
			fmt.Fprintf(a.out, "%s %s %s %s\n",
				ui.SuccessStyle.Render("✓"), w.Kind, w.Path,
				ui.DimStyle.Render("(checkpoint "+w.CheckpointID+")"))
		} else {
			fmt.Fprintf(a.out, "%s %s %s: %s\n", ui.ErrorStyle.Render("✗"), w.Kind, w.Path, w.Error)
		}
	}
	if len(res.Planned) > 0 {
		fmt.Fprintln(a.out, ui.HelpStyle.Render(fmt.Sprintf("%d change(s) planned, none written.", len(res.Planned))))
	}

	parts := []string{}
	if res.Provider != "" {
		parts = append(parts, res.Provider+"/"+res.Model)
	}
	if res.Usage.TotalTokens > 0 {
		parts = append(parts, humanize.Comma(int64(res.Usage.TotalTokens))+" tokens")
	}
	if res.Rounds > 0 {
		parts = append(parts, fmt.Sprintf("%d tool round(s)", res.Rounds))
	}
	if res.ConversationID != "" {
		parts = append(parts, "conversation "+res.ConversationID)
	}
	if len(parts) > 0 {
		fmt.Fprintln(a.out, ui.DimStyle.Render(strings.Join(parts, " · ")))
	}
}
