package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"tcode/model"
	"tcode/ui"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		search string
	)

	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "List conversations or print one",
		Long: "Without arguments, lists recent conversations. With a conversation id, prints its " +
			"messages in order. --search finds messages containing a phrase.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				ctx := cmd.Context()

				switch {
				case search != "":
					msgs, err := a.db.SearchMessages(ctx, search, limit)
					if err != nil {
						return err
					}
					if len(msgs) == 0 {
						fmt.Fprintln(a.out, "No matches.")
					}
					for _, m := range msgs {
						fmt.Fprintf(a.out, "%s %s\n", ui.DimStyle.Render(m.ConversationID+" "+humanize.Time(m.CreatedAt)), roleLabel(m.Role))
						fmt.Fprintln(a.out, "  "+excerpt(m.Content, search, a.width))
					}
					return nil

				case len(args) == 1:
					conv, err := a.db.GetConversation(ctx, args[0])
					if err != nil {
						return err
					}
					msgs, err := a.db.GetMessages(ctx, conv.ID, 0)
					if err != nil {
						return err
					}
					fmt.Fprintln(a.out, ui.TitleStyle.Render(conv.Title))
					for i := len(msgs) - 1; i >= 0; i-- {
						printMessage(a, msgs[i])
					}
					return nil
				}

				convs, err := a.db.ListConversations(ctx, limit)
				if err != nil {
					return err
				}
				if len(convs) == 0 {
					fmt.Fprintln(a.out, "No conversations yet.")
					return nil
				}
				tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tUPDATED")
				for _, c := range convs {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, c.Title, c.MessageCount, humanize.Time(c.UpdatedAt))
				}
				tw.Flush()
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows (0 for all)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "search message contents")
	return cmd
}

func roleLabel(r model.Role) string {
	switch r {
	case model.RoleUser:
		return ui.UserStyle.Render("you")
	case model.RoleAssistant:
		return ui.AssistantStyle.Render("assistant")
	case model.RoleTool:
		return ui.DimStyle.Render("tool")
	}
	return ui.DimStyle.Render(string(r))
}

func printMessage(a *app, m model.Message) {
	header := roleLabel(m.Role)
	if m.Role == model.RoleTool && m.Metadata.ToolName != "" {
		header += ui.DimStyle.Render(" " + m.Metadata.ToolName)
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, header)

	switch m.Role {
	case model.RoleAssistant:
		if m.Content != "" {
			fmt.Fprintln(a.out, ui.RenderMarkdown(m.Content, a.width))
		}
		for _, call := range m.Metadata.ToolCalls {
			fmt.Fprintln(a.out, ui.DimStyle.Render("→ "+call.Name))
		}
	case model.RoleTool:
		fmt.Fprintln(a.out, ui.DimStyle.Render(excerpt(m.Content, "", a.width)))
	default:
		fmt.Fprintln(a.out, m.Content)
	}
}

// excerpt returns one line of s around the first occurrence of term.
func excerpt(s, term string, width int) string {
	if width <= 0 {
		width = 80
	}
	s = strings.Join(strings.Fields(s), " ")
	if term != "" {
		if i := strings.Index(strings.ToLower(s), strings.ToLower(term)); i > 0 {
			before := []rune(s[:i])
			if keep := width / 4; len(before) > keep*2 {
				s = "…" + string(before[len(before)-keep:]) + s[i:]
			}
		}
	}
	return runewidth.Truncate(s, width-4, "…")
}
