package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/akindolabs/akindo/internal/adapter"
	"github.com/akindolabs/akindo/internal/agent"
	"github.com/akindolabs/akindo/internal/state"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Chat with the agent on this terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		comps, err := buildComponents(cfg)
		if err != nil {
			return err
		}
		if comps.janitor != nil {
			comps.janitor.Start()
			defer comps.janitor.Stop()
		}

		r := &repl{
			agent:    comps.agent,
			out:      adapter.NewCLIAdapter(),
			reader:   bufio.NewReader(os.Stdin),
			threadID: fmt.Sprintf("cli-%d", time.Now().Unix()),
		}
		return r.run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

type repl struct {
	agent    *agent.Agent
	out      *adapter.CLIAdapter
	reader   *bufio.Reader
	threadID string
	userID   string
	mode     state.Mode
}

func (r *repl) run(ctx context.Context) error {
	fmt.Printf("Akindo session %s. Type /help for commands, /exit to quit.\n", r.threadID)
	fmt.Print("> ")

	for {
		line, err := r.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			fmt.Print("> ")
			continue
		}

		if strings.HasPrefix(line, "/") {
			msg, exit := r.command(line)
			if exit {
				return nil
			}
			r.send(ctx, msg)
			continue
		}

		r.turn(ctx, line)
	}
}

func (r *repl) turn(ctx context.Context, text string) {
	reply, err := r.agent.Execute(ctx, text, agent.ExecContext{
		ThreadID: r.threadID,
		UserID:   r.userID,
		Mode:     r.mode,
	}, agent.Options{})
	if err != nil {
		r.send(ctx, "Error: "+err.Error())
		return
	}
	r.send(ctx, reply.Text)
}

func (r *repl) send(ctx context.Context, content string) {
	if content == "" {
		fmt.Print("> ")
		return
	}
	r.out.Send(ctx, r.threadID, content)
}

// command dispatches one slash command and returns the text to show.
func (r *repl) command(input string) (string, bool) {
	parts, err := shlex.Split(input)
	if err != nil {
		parts = strings.Fields(input)
	}
	if len(parts) == 0 {
		return "", false
	}

	switch parts[0] {
	case "/exit":
		return "", true
	case "/help":
		return r.helpText(), false
	case "/auth":
		if len(parts) < 2 {
			return "Usage: /auth <user-id>", false
		}
		r.userID = parts[1]
		return "Signed in as " + r.userID + ".", false
	case "/mode":
		if len(parts) < 2 {
			return "Usage: /mode <b2c|b2b>", false
		}
		switch parts[1] {
		case "b2c":
			r.mode = state.ModeB2C
		case "b2b":
			r.mode = state.ModeB2B
		default:
			return "Unknown mode: " + parts[1], false
		}
		return "Mode preference set to " + parts[1] + "; it applies while the conversation has not settled on a mode.", false
	case "/new":
		r.threadID = fmt.Sprintf("cli-%d", time.Now().Unix())
		return "Started a fresh conversation: " + r.threadID, false
	case "/cart":
		return r.cartText(), false
	case "/actions":
		return r.actionsText(), false
	default:
		return "Unknown command: " + parts[0], false
	}
}

func (r *repl) helpText() string {
	return strings.Join([]string{
		"/auth <user-id>   sign in (unlocks order tracking and tax exemption)",
		"/mode <b2c|b2b>   set the buying mode preference",
		"/cart             show the current cart",
		"/actions          show which actions are available right now",
		"/new              start a fresh conversation",
		"/exit             quit",
	}, "\n")
}

func (r *repl) cartText() string {
	s := r.agent.Session(r.threadID)
	if s == nil || s.Cart.IsEmpty() {
		return "Your cart is empty."
	}

	var b strings.Builder
	for _, item := range s.Cart.Items {
		fmt.Fprintf(&b, "%d x %s at $%.2f\n", item.Quantity, item.Name, item.UnitPrice)
	}
	fmt.Fprintf(&b, "Total: $%.2f", s.Cart.Total)
	return b.String()
}

func (r *repl) actionsText() string {
	s := r.agent.Session(r.threadID)
	if s == nil {
		return "No conversation yet; say something first."
	}

	var b strings.Builder
	b.WriteString("Enabled: " + strings.Join(s.AvailableActions.Enabled, ", "))
	if len(s.AvailableActions.Disabled) > 0 {
		b.WriteString("\nDisabled: " + strings.Join(s.AvailableActions.Disabled, ", "))
	}
	if len(s.AvailableActions.Suggested) > 0 {
		b.WriteString("\nSuggested: " + strings.Join(s.AvailableActions.Suggested, ", "))
	}
	return b.String()
}
