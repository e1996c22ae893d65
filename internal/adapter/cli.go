package adapter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
)

// CLIAdapter renders replies on a local terminal. It is output-only: the
// REPL command reads stdin itself and pushes each line through the turn
// handler, so there is nothing to long-poll here.
type CLIAdapter struct {
	out io.Writer

	labelStyle lipgloss.Style
	replyStyle lipgloss.Style
	errStyle   lipgloss.Style
}

func NewCLIAdapter() *CLIAdapter {
	return NewCLIAdapterTo(os.Stdout)
}

func NewCLIAdapterTo(out io.Writer) *CLIAdapter {
	purple := lipgloss.Color("99")
	red := lipgloss.Color("9")

	return &CLIAdapter{
		out: out,
		labelStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true),
		replyStyle: lipgloss.NewStyle().
			PaddingLeft(2),
		errStyle: lipgloss.NewStyle().
			Foreground(red).
			PaddingLeft(2),
	}
}

func (a *CLIAdapter) Name() string {
	return "cli"
}

// Send prints a reply, clearing whatever prompt is on the current line and
// re-printing it afterwards.
func (a *CLIAdapter) Send(ctx context.Context, threadID string, content string) error {
	style := a.replyStyle
	if strings.HasPrefix(content, "Error:") {
		style = a.errStyle
	}

	fmt.Fprint(a.out, "\r\033[K")
	fmt.Fprintln(a.out, a.labelStyle.Render("akindo"))
	fmt.Fprintln(a.out, style.Render(content))
	fmt.Fprint(a.out, "> ")
	return nil
}

func (a *CLIAdapter) Health(ctx context.Context) error {
	return nil
}
