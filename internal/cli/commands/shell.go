package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/xlbridge/internal/cli/output"
	"github.com/leapstack-labs/xlbridge/internal/script"
	"github.com/leapstack-labs/xlbridge/internal/tree"
)

const shellPrompt = "xlbridge> "

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell over the running target",
		Long: `Start an interactive shell that resolves and drives elements of the
configured worksheet window. Type help for commands, quit to exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd)
		},
	}
}

func runShell(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	sh := newShell(cc)

	// History lives beside the scripts database when its directory exists.
	historyFile := ""
	if dir := filepath.Dir(cc.Cfg.ScriptsDB); dirExists(dir) {
		historyFile = filepath.Join(dir, "shell_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    shellCompleter(sh.mgr.Properties().PropertyNames()),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sh.mgr.StartSession(false)
	defer sh.mgr.StopSession()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "xlbridge shell (endpoint: %s)\n", cc.Cfg.Endpoint)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type help for commands, quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := sh.exec(line)
		if err != nil {
			cc.Renderer.Error(err.Error())
		}
		if quit {
			return nil
		}
	}
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func shellCompleter(props []string) *readline.PrefixCompleter {
	propItems := make([]readline.PrefixCompleterInterface, len(props))
	for i, p := range props {
		propItems[i] = readline.PcItem(p)
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("point"),
		readline.PcItem("focused"),
		readline.PcItem("window"),
		readline.PcItem("get"),
		readline.PcItem("set"),
		readline.PcItem("focus"),
		readline.PcItem("scroll"),
		readline.PcItem("props", propItems...),
		readline.PcItem("release"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// shell executes one line at a time against a tree manager.
type shell struct {
	cc     *CommandContext
	mgr    *tree.Manager
	player *script.Player
	last   *tree.Node
}

func newShell(cc *CommandContext) *shell {
	mgr := cc.Manager()
	return &shell{cc: cc, mgr: mgr, player: cc.Player(mgr)}
}

// resolve resolves a descriptor path, or the last shown element for ".".
func (s *shell) resolve(path string) (*tree.Node, error) {
	if path == "." {
		if s.last == nil {
			return nil, fmt.Errorf("no element selected")
		}
		return s.last, nil
	}
	n, err := s.player.Resolve(path)
	if err != nil {
		return nil, err
	}
	s.last = n
	return n, nil
}

func (s *shell) show(n *tree.Node, err error) error {
	if err != nil {
		return err
	}
	s.last = n
	info, err := describe(s.mgr, n)
	if err != nil {
		return err
	}
	return renderNode(s.cc.Renderer, info)
}

// exec runs one shell line. It reports whether the shell should exit.
func (s *shell) exec(line string) (bool, error) {
	args, err := splitArgs(line)
	if err != nil || len(args) == 0 {
		return false, err
	}
	r := s.cc.Renderer
	cmd, args := strings.ToLower(args[0]), args[1:]

	need := func(n int, usage string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}

	switch cmd {
	case "quit", "exit":
		return true, nil

	case "help":
		printShellHelp(r)
		return false, nil

	case "point":
		if err := need(2, "point X Y"); err != nil {
			return false, err
		}
		x, errX := strconv.Atoi(args[0])
		y, errY := strconv.Atoi(args[1])
		if errX != nil || errY != nil {
			return false, fmt.Errorf("point needs integer coordinates")
		}
		return false, s.show(s.mgr.ElementFromPoint(x, y))

	case "focused":
		return false, s.show(s.mgr.FocusedElement(s.cc.Window()))

	case "window":
		return false, s.show(s.mgr.ElementFromWindowHandle(s.cc.Window()))

	case "get":
		if err := need(2, "get PATH PROPERTY"); err != nil {
			return false, err
		}
		n, err := s.resolve(args[0])
		if err != nil {
			return false, err
		}
		name, value, err := getProperty(s.mgr, n, args[1])
		if err != nil {
			return false, err
		}
		return false, renderProperty(r, propertyResult{Target: args[0], Property: name, Value: value})

	case "set":
		if err := need(3, "set PATH PROPERTY VALUE"); err != nil {
			return false, err
		}
		n, err := s.resolve(args[0])
		if err != nil {
			return false, err
		}
		return false, s.mgr.Properties().SetPropertyValue(n, args[1], args[2])

	case "focus", "scroll":
		if err := need(1, cmd+" PATH"); err != nil {
			return false, err
		}
		n, err := s.resolve(args[0])
		if err != nil {
			return false, err
		}
		if cmd == "focus" {
			return false, n.SetFocus()
		}
		return false, n.ScrollIntoView()

	case "props":
		props := s.mgr.Properties()
		rows := [][]string{}
		for _, name := range props.PropertyNames() {
			if len(args) > 0 && !strings.EqualFold(args[0], name) {
				continue
			}
			pd, _ := props.PropertyDescriptor(name)
			rows = append(rows, []string{pd.Name, pd.Type.String(), strconv.FormatBool(pd.CanWrite())})
		}
		r.Table([]string{"Property", "Type", "Writable"}, rows)
		return false, nil

	case "release":
		if s.last != nil {
			s.mgr.Release(s.last)
			s.last = nil
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type help for commands)", cmd)
	}
}

func printShellHelp(r *output.Renderer) {
	r.Table([]string{"Command", "Description"}, [][]string{
		{"point X Y", "Show the element under a screen point"},
		{"focused", "Show the active cell"},
		{"window", "Show the worksheet window"},
		{"get PATH PROPERTY", "Read a cell property"},
		{"set PATH PROPERTY VALUE", "Write a cell property"},
		{"focus PATH", "Activate a cell"},
		{"scroll PATH", "Scroll a cell into view"},
		{"props [NAME]", "List cell properties"},
		{"release", "Forget the selected element"},
		{"quit", "Exit the shell"},
	})
	r.Println(`PATH may be "." for the last element shown or resolved.`)
}

// splitArgs splits a line on spaces, keeping double-quoted runs together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case (r == ' ' || r == '\t') && !quoted:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
