package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/srg/blelink/internal/groutine"
	"github.com/srg/blelink/pkg/lifecycle"
)

func newShellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Send lifecycle triggers interactively",
		Long: `Starts a lifecycle machine and reads commands from a prompt. Transitions are
printed as they happen. Type 'help' for the list of commands.`,
		Args: cobra.NoArgs,
		RunE: runShell,
	}
	addSessionFlags(cmd)
	return cmd
}

func runShell(cmd *cobra.Command, _ []string) error {
	s, _, err := setupSession(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "blelink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    shellCompleter(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	noColor, _ := cmd.Flags().GetBool("no-color")
	r := newRenderer(rl.Stdout(), s.cfg.OutputFormat, !noColor && isTerminal(cmd.OutOrStdout()))
	sh := &shell{session: s, out: rl.Stdout(), render: r}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if err := sh.start(ctx); err != nil {
		return err
	}
	defer sh.stop()

	sh.help()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			fmt.Fprintln(sh.out, "Exiting...")
			return nil
		}
		if quit := sh.exec(ctx, line); quit {
			return nil
		}
	}
}

func shellCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(shellCommands))
	for _, c := range shellCommands {
		items = append(items, readline.PcItem(c.name))
	}
	return readline.NewPrefixCompleter(items...)
}

var shellCommands = []struct {
	name string
	help string
}{
	{"request", "select a device (from Init, Rejected or Disconnected)"},
	{"connect", "retrieve services again for the held device"},
	{"disconnect", "disconnect the connected device"},
	{"reset", "return to Init"},
	{"status", "show state, held device, services and reasons"},
	{"history", "show transitions recorded since the last history"},
	{"help", "show this help"},
	{"exit", "stop the machine and leave"},
}

// shell executes prompt commands against a session.
type shell struct {
	session *session
	out     io.Writer
	render  *renderer

	printed <-chan struct{}
}

// start runs the machine and prints its transitions until stop.
func (sh *shell) start(ctx context.Context) error {
	feed, _ := sh.session.machine.Subscribe()
	if err := sh.session.start(ctx); err != nil {
		return err
	}
	sh.printed = groutine.GoDone(ctx, "shell-transitions", func(context.Context) {
		for tr := range feed {
			sh.render.transition(tr)
		}
	})
	return nil
}

func (sh *shell) stop() {
	sh.session.close()
	if sh.printed != nil {
		<-sh.printed
	}
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false
	}

	switch name := strings.ToLower(fields[0]); name {
	case "help", "?":
		sh.help()
	case "status":
		sh.render.status(sh.session.machine)
	case "history":
		sh.render.history(sh.session.machine.Journal().Drain())
	case "exit", "quit", "q":
		fmt.Fprintln(sh.out, "Exiting...")
		return true
	default:
		trigger, err := lifecycle.ParseTrigger(name)
		if err != nil {
			fmt.Fprintf(sh.out, "Unknown command: %s (type 'help' for commands)\n", name)
			return false
		}
		if err := sh.session.send(ctx, trigger); err != nil {
			fmt.Fprintf(sh.out, "ERROR: %s\n", FormatUserError(err))
		}
	}
	return false
}

func (sh *shell) help() {
	fmt.Fprintln(sh.out, "Commands:")
	for _, c := range shellCommands {
		fmt.Fprintf(sh.out, "  %-11s - %s\n", c.name, c.help)
	}
}
