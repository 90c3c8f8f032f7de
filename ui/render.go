package ui

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"tcode/model"
	"tcode/tools"
)

var mdLinkRegex = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

// RenderMarkdown renders an assistant response for a terminal width.
// Link syntax is reduced to the bare URL so terminals can detect it.
func RenderMarkdown(content string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	if width < minWidth {
		width = minWidth
	}

	content = mdLinkRegex.ReplaceAllString(content, "$2")

	// Autolink off keeps plain URLs as plain text
	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width-4, 0)
	doc := p.Parse([]byte(content))

	return strings.TrimRight(string(gomarkdown.Render(doc, r)), "\n")
}

// ToolPrinter writes one line per tool execution. It implements
// engine.Observer.
type ToolPrinter struct {
	out   io.Writer
	width int
}

func NewToolPrinter(out io.Writer, width int) *ToolPrinter {
	if width <= 0 {
		width = defaultWidth
	}
	return &ToolPrinter{out: out, width: width}
}

// ToolStarted marks calls that change files apart from reads.
func (p *ToolPrinter) ToolStarted(call model.ToolCall) {
	if tools.IsMutationName(call.Name) {
		fmt.Fprintln(p.out, modifyStyle.Render("✎ "+p.describe(call)))
		return
	}
	fmt.Fprintln(p.out, DimStyle.Render("→ "+p.describe(call)))
}

func (p *ToolPrinter) ToolFinished(call model.ToolCall, result string) {
	summary := firstLine(result)
	switch {
	case strings.HasPrefix(result, "Error:"):
		fmt.Fprintln(p.out, ErrorStyle.Render("✗ ")+p.truncate(summary))
	case result == "Cancelled by user" || strings.HasPrefix(result, "Skipped:"):
		fmt.Fprintln(p.out, HelpStyle.Render("- "+p.truncate(summary)))
	default:
		fmt.Fprintln(p.out, SuccessStyle.Render("✓ ")+p.truncate(summary))
	}
}

func (p *ToolPrinter) describe(call model.ToolCall) string {
	parsed, err := tools.Parse(call)
	if err != nil {
		return p.truncate(call.Name)
	}
	target := parsed.Target()
	if target == "" {
		target = "."
	}
	return p.truncate(call.Name + " " + target)
}

func (p *ToolPrinter) truncate(s string) string {
	return runewidth.Truncate(s, p.width-2, "…")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
